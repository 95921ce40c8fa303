// Package kctx implements the kernel's execution-context machinery
// (spec §4.B): scoped re-entrant critical sections and a cooperative
// context-switch primitive.
//
// The spec allows "fibers, generator-like continuations, or OS threads
// coordinated via a single 'kernel lock' turnstile" (spec §9). This
// implementation takes the last option: every task runs on its own
// goroutine that is parked on an unbuffered baton channel except while it
// is the one task the scheduler has chosen to run, which mirrors the
// teacher's own habit of using a small, explicit synchronization primitive
// rather than a generic executor (compare sim/timing/serialengine.go's
// pauseLock/isPausedLock pair, which gates the whole engine the same way
// this gates a single task).
package kctx

import "sync"

// State is the "prev_state" spec §4.B's enter_critical/exit_critical pair
// exchanges: whether the critical section was already held by the caller
// when it called Enter. Only the outermost Exit (the one whose matching
// Enter observed State(false)) actually releases the section.
type State bool

// CriticalSection is a nest-counted mutual-exclusion guard over kernel data
// structures (ready/blocked/suspended lists, IPC state, TCB fields). It
// fences task code against the tick handler running on its own goroutine,
// exactly as spec §5 requires ("the tick handler must not preempt a task
// while that task holds the critical section").
type CriticalSection struct {
	gate    sync.Mutex
	depthMu sync.Mutex
	depth   int
}

// NewCriticalSection creates an unheld critical section.
func NewCriticalSection() *CriticalSection {
	return &CriticalSection{}
}

// Enter acquires the section if it is not already held by the current
// logical flow, or simply increments the nesting depth if it is. Returns
// the state to later pass to Exit.
func (cs *CriticalSection) Enter() State {
	cs.depthMu.Lock()
	alreadyHeld := cs.depth > 0
	cs.depthMu.Unlock()

	if !alreadyHeld {
		cs.gate.Lock()
	}

	cs.depthMu.Lock()
	cs.depth++
	cs.depthMu.Unlock()

	return State(alreadyHeld)
}

// Exit releases one level of nesting, releasing the section entirely once
// depth returns to zero.
func (cs *CriticalSection) Exit(_ State) {
	cs.depthMu.Lock()
	cs.depth--

	if cs.depth < 0 {
		cs.depthMu.Unlock()
		panic("exit_critical called without a matching enter_critical")
	}

	releaseGate := cs.depth == 0
	cs.depthMu.Unlock()

	if releaseGate {
		cs.gate.Unlock()
	}
}

// Depth reports the current nesting depth. Used by tests and by
// Scheduler.Lock/Unlock's pending-switch re-check.
func (cs *CriticalSection) Depth() int {
	cs.depthMu.Lock()
	defer cs.depthMu.Unlock()

	return cs.depth
}
