package kctx

// TaskContext is a task's opaque stack+saved-state pair (spec §3, §4.B).
// There is no real machine stack to save here — the "stack" is the Go
// runtime's own goroutine stack, and the "saved state" is simply that the
// goroutine is parked receiving on baton. Ownership of a TaskContext
// belongs to the TCB that embeds it (spec §3's "execution context").
//
// Deliberately absent from this type: any notion of the critical section.
// A switch's matching enter_critical/exit_critical pair (spec §4.B) is
// scoped to the scheduler bookkeeping that decides to switch, not to the
// goroutine handoff itself — see Switch below for why spanning the two
// would deadlock the tick driver.
type TaskContext struct {
	baton chan struct{}
}

// NewTaskContext allocates a TaskContext. The goroutine backing it is not
// started until Spawn is called — this mirrors init_task_context building
// an initial saved state without yet running anything.
func NewTaskContext() *TaskContext {
	return &TaskContext{baton: make(chan struct{})}
}

// Spawn starts the task's goroutine (spec §4.B init_task_context). The
// goroutine immediately parks waiting for its first resume; once resumed it
// runs entry(arg) and, on return, calls onReturn so the scheduler can mark
// the task TERMINATED and switch to whatever runs next (spec §4.B, §4.C).
//
// The caller must have already released any critical section it held
// before handing control to this context (via StartFirst or Switch) — on
// real hardware, interrupts are only masked for the brief window around the
// register save/restore itself, not for however long the outgoing task
// stays parked, and Spawn's trampoline mirrors that by not touching the
// critical section at all.
func Spawn(ctx *TaskContext, entry func(arg interface{}), arg interface{}, onReturn func()) {
	go func() {
		<-ctx.baton
		entry(arg)
		onReturn()
	}()
}

// Switch suspends from and resumes to, returning once from is resumed again
// by some later Switch or StartFirst call elsewhere in the kernel. Callers
// sequence this as: enter the critical section, do bookkeeping, exit the
// critical section, then call Switch — never spanning the critical section
// across the blocking handoff itself (see package doc and Spawn).
func Switch(from, to *TaskContext) {
	to.baton <- struct{}{}
	<-from.baton
}

// Finish performs a one-way handoff to to, without waiting to be resumed
// again. It is the last thing a terminated task's trampoline-driven
// goroutine ever does — spec §4.B's "on return, marks the task TERMINATED
// and yields to the scheduler," where yielding here can never return
// because nothing will ever send on this context's baton again.
func Finish(to *TaskContext) {
	to.baton <- struct{}{}
}

// StartFirst jumps directly into to's initial context (spec §4.B). Used
// exactly once, when the scheduler starts; the caller should treat the
// call as if it does not return, the same way the spec's non-returning
// start_first_task does not return to kernel boot code.
func StartFirst(to *TaskContext) {
	to.baton <- struct{}{}
}
