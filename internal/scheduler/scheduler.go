// Package scheduler implements task scheduling (spec §4.D): the
// ready/blocked/suspended lists, the selection policies that pick what runs
// next, tick-driven bookkeeping, and the context-switch orchestration that
// drives kctx.
//
// Scheduler owns every list a TCB can be linked into and is the only
// component that calls into kctx — task.Registry never imports kctx beyond
// holding a *kctx.TaskContext field, exactly the layering ipc later builds
// on (ipc imports scheduler, never the other way around), which is how this
// package resolves the task-registry/scheduler mutual dependency spec §2
// describes without an actual Go import cycle.
//
// The list bookkeeping here is grounded on the teacher's container/list
// usage in sim/eventqueue.go; the lock()/unlock() nest-guard is grounded on
// sim/timing/serialengine.go's Pause/Continue pair, which defers an engine
// action until a matching Continue brings its own nesting counter back to
// zero, the same shape this package's scheduler-lock uses to defer a
// pending reschedule.
package scheduler

import (
	"container/list"
	"errors"
	"fmt"

	"rtoskernel/internal/hooking"
	"rtoskernel/internal/kctx"
	"rtoskernel/internal/klog"
	"rtoskernel/internal/task"
	"rtoskernel/internal/ticktime"
)

// Hook positions an observer (the web dashboard, the sqlite trace sink) can
// register against, grounded on the teacher's sim.HookPosBeforeEvent/
// AfterEvent pair (sim/hook.go) and their InvokeHook call sites in
// sim/serialengine.go's event loop. Every hook fires with cs already
// released, the same way serialengine.go invokes its hooks inside the
// pauseLock region but never while the engine's own event-dispatch
// bookkeeping is mid-update.
var (
	HookPosTaskCreated     = &hooking.HookPos{Name: "TaskCreated"}
	HookPosTaskTerminated  = &hooking.HookPos{Name: "TaskTerminated"}
	HookPosContextSwitch   = &hooking.HookPos{Name: "ContextSwitch"}
	HookPosDeadlineMiss    = &hooking.HookPos{Name: "DeadlineMiss"}
	HookPosPeriodicRelease = &hooking.HookPos{Name: "PeriodicRelease"}
)

// Policy selects which ready task context_switch picks next (spec §4.D,
// grounded on original_source's SCHEDULING_POLICY_* constants).
type Policy int

// Policy values.
const (
	PolicyPriority Policy = iota
	PolicyRoundRobin
	PolicyEDF
	PolicyRMS
)

func (p Policy) String() string {
	switch p {
	case PolicyPriority:
		return "PRIORITY"
	case PolicyRoundRobin:
		return "ROUND_ROBIN"
	case PolicyEDF:
		return "EDF"
	case PolicyRMS:
		return "RMS"
	default:
		return "UNKNOWN"
	}
}

// RunState is whether the scheduler has been started.
type RunState int

// RunState values.
const (
	Stopped RunState = iota
	Running
)

// Sentinel errors for the scheduler's error kinds (spec §7).
var (
	ErrInvalidArgument = errors.New("scheduler: invalid argument")
	ErrNotRunning      = errors.New("scheduler: not running")
	ErrAlreadyRunning  = errors.New("scheduler: already running")
	ErrNoReadyTask     = errors.New("scheduler: no ready task")
)

// Stats mirrors original_source's scheduler_stats_t field-for-field; spec.md
// itself only gestures at "scheduler statistics," and the original header is
// what pins down exactly which counters exist.
type Stats struct {
	ContextSwitches      uint64
	TasksCreated         uint64
	TasksDeleted         uint64
	SchedulerInvocations uint64
	IdleTime             ticktime.Tick
	SystemTime           ticktime.Tick
	DeadlineMisses       uint64
}

// CPULoad derives the 0.0-1.0 load factor original_source stores as a
// precomputed field; this package computes it on read instead of keeping it
// continuously up to date, since it is purely a function of the two tick
// counters already being tracked.
func (s Stats) CPULoad() float64 {
	if s.SystemTime == 0 {
		return 0
	}

	busy := s.SystemTime - s.IdleTime

	return float64(busy) / float64(s.SystemTime)
}

// Scheduler is the task-scheduling component (spec §4.D). All list
// manipulation happens under cs; Scheduler never locks anything else of its
// own, per spec §5's "kernel tables are accessed exclusively inside the
// critical section."
type Scheduler struct {
	hooking.HookableBase

	cs       *kctx.CriticalSection
	logger   klog.Logger
	registry *task.Registry
	tickBase *ticktime.Base

	pMax   int
	policy Policy

	ready     []*list.List
	blocked   *list.List
	suspended *list.List

	lockDepth     int
	pendingSwitch bool

	state RunState
	stats Stats
}

// New creates a Scheduler. cs and tickBase are shared with the rest of the
// kernel façade (spec §9's single Kernel value); registry is the task table
// this scheduler schedules over, consumed through Registry.All() for the
// whole-table scans periodic release and check_deadlines need (spec §9 Open
// Question ii).
func New(cs *kctx.CriticalSection, registry *task.Registry, tickBase *ticktime.Base, pMax int, policy Policy, logger klog.Logger) *Scheduler {
	s := &Scheduler{
		cs:        cs,
		logger:    logger,
		registry:  registry,
		tickBase:  tickBase,
		pMax:      pMax,
		policy:    policy,
		blocked:   list.New(),
		suspended: list.New(),
	}

	s.ready = make([]*list.List, pMax)
	for i := range s.ready {
		s.ready[i] = list.New()
	}

	tickBase.SetHandler(s)

	return s
}

// Policy returns the active selection policy.
func (s *Scheduler) Policy() Policy {
	prev := s.cs.Enter()
	defer s.cs.Exit(prev)

	return s.policy
}

// SetPolicy changes the active selection policy. Safe to call at any time;
// it only affects the next selection decision.
func (s *Scheduler) SetPolicy(p Policy) {
	prev := s.cs.Enter()
	s.policy = p
	s.cs.Exit(prev)
}

// State reports whether the scheduler has been started.
func (s *Scheduler) State() RunState {
	prev := s.cs.Enter()
	defer s.cs.Exit(prev)

	return s.state
}

// Stats returns a snapshot of the scheduler's counters.
func (s *Scheduler) Stats() Stats {
	prev := s.cs.Enter()
	defer s.cs.Exit(prev)

	return s.stats
}

// ResetStats zeroes every counter (spec §4.D task_reset_stats' scheduler
// counterpart).
func (s *Scheduler) ResetStats() {
	prev := s.cs.Enter()
	s.stats = Stats{}
	s.cs.Exit(prev)
}

// AddTask links a freshly created TCB into the scheduler's ready queue
// (spec §4.D add_task). The task must be in state task.Ready; callers
// arrange that by constructing it with task.Registry.Create, which already
// defaults new TCBs to Ready.
func (s *Scheduler) AddTask(t *task.TCB) error {
	if t == nil {
		return fmt.Errorf("%w: nil task", ErrInvalidArgument)
	}

	prev := s.cs.Enter()

	if t.Priority < 0 || t.Priority >= s.pMax {
		s.cs.Exit(prev)

		return fmt.Errorf("%w: priority %d out of [0,%d)", ErrInvalidArgument, t.Priority, s.pMax)
	}

	t.Link(s.ready[t.Priority])
	s.stats.TasksCreated++
	s.cs.Exit(prev)

	s.InvokeHook(hooking.HookCtx{Domain: s, Pos: HookPosTaskCreated, Item: t})

	return nil
}

// RemoveTask unlinks a task from whatever list it currently sits in (spec
// §4.D remove_task), used by task_delete once the registry has already
// rejected deleting the current or idle task.
func (s *Scheduler) RemoveTask(t *task.TCB) {
	prev := s.cs.Enter()
	t.Unlink()
	s.stats.TasksDeleted++
	s.cs.Exit(prev)
}

// UpdateTaskState moves t from whatever list it is linked into (if any) to
// the list matching its new state, and records the new state. Used for
// suspend/resume; BlockTask and UnblockTask do their own relinking
// (spec §4.D update_task_state).
func (s *Scheduler) UpdateTaskState(t *task.TCB, newState task.State) {
	prev := s.cs.Enter()
	s.relinkLocked(t, newState)
	s.cs.Exit(prev)
}

func (s *Scheduler) relinkLocked(t *task.TCB, newState task.State) {
	t.Unlink()
	t.State = newState

	switch newState {
	case task.Ready:
		t.Link(s.ready[t.Priority])
	case task.Blocked:
		t.Link(s.blocked)
	case task.Suspended:
		t.Link(s.suspended)
	case task.Running, task.Terminated:
		// not linked into any list
	}
}

// BlockTask moves t to Blocked with the given reason/object/predicate and
// wake deadline (spec §4.D block_task), used by the IPC primitives and by
// task_delay. delayUntil should be task.NoTimeout for an unbounded wait. It
// does not by itself trigger a context switch — the caller decides when to
// call ContextSwitch, since some callers (e.g. a semaphore post that
// unblocks a higher-priority waiter) need to finish several list operations
// first.
func (s *Scheduler) BlockTask(t *task.TCB, reason task.BlockReason, obj interface{}, pred task.WaitPredicate, delayUntil ticktime.Tick) {
	prev := s.cs.Enter()
	t.Unlink()
	t.State = task.Blocked
	t.BlockReason = reason
	t.BlockObject = obj
	t.WaitPredicate = pred
	t.DelayUntil = delayUntil
	t.WokeByTimeout = false
	t.Link(s.blocked)
	s.cs.Exit(prev)
}

// UnblockTask moves t from Blocked back to Ready, clearing its block
// reason (spec §4.D unblock_task). It shares its wake path (wakeLocked)
// with tick-driven delay expiry and with the IPC wake helpers
// (WakeWaiter, PopHighestPriorityWaiter, PopWaiterByReason).
func (s *Scheduler) UnblockTask(t *task.TCB) {
	prev := s.cs.Enter()
	s.wakeLocked(t)
	s.cs.Exit(prev)
}

func (s *Scheduler) wakeLocked(t *task.TCB) {
	t.Unlink()
	t.State = task.Ready
	t.BlockReason = task.BlockNone
	t.BlockObject = nil
	t.WaitPredicate = task.WaitPredicate{}
	t.TimeSliceRemaining = t.TimeSlice
	t.Link(s.ready[t.Priority])
}

// PopWaiterByReason is PopHighestPriorityWaiter narrowed to waiters blocked
// for a specific reason. Queue needs this because senders and receivers
// share the same BlockObject (the queue itself) but must never be woken by
// each other's fast path.
func (s *Scheduler) PopWaiterByReason(obj interface{}, reason task.BlockReason) *task.TCB {
	prev := s.cs.Enter()
	defer s.cs.Exit(prev)

	var best *task.TCB
	for e := s.blocked.Front(); e != nil; e = e.Next() {
		t := e.Value.(*task.TCB)
		if t.BlockObject != obj || t.BlockReason != reason {
			continue
		}

		if best == nil || t.Priority < best.Priority {
			best = t
		}
	}

	if best != nil {
		s.wakeLocked(best)
	}

	return best
}

// SetPriority changes a task's priority, relinking it into the
// corresponding ready level if it is currently Ready (spec §4.C
// task_set_priority; also used by ipc.Mutex to apply and undo priority
// inheritance).
func (s *Scheduler) SetPriority(t *task.TCB, newPriority int) {
	prev := s.cs.Enter()

	if t.State == task.Ready {
		t.Unlink()
		t.Priority = newPriority
		t.Link(s.ready[newPriority])
	} else {
		t.Priority = newPriority
	}

	s.cs.Exit(prev)
}

// PopHighestPriorityWaiter finds the highest-priority task blocked on obj
// (ties broken FIFO by blocked-list order), wakes it, and returns it; nil
// if nothing is waiting. Used by the IPC primitives to hand a resource
// straight to the next eligible waiter (spec §4.E semaphore_give,
// mutex_unlock; Queue uses PopWaiterByReason instead).
func (s *Scheduler) PopHighestPriorityWaiter(obj interface{}) *task.TCB {
	prev := s.cs.Enter()
	defer s.cs.Exit(prev)

	var best *task.TCB
	for e := s.blocked.Front(); e != nil; e = e.Next() {
		t := e.Value.(*task.TCB)
		if t.BlockObject != obj {
			continue
		}

		if best == nil || t.Priority < best.Priority {
			best = t
		}
	}

	if best != nil {
		s.wakeLocked(best)
	}

	return best
}

// WaitersOn returns every task currently blocked on obj, in blocked-list
// (FIFO) order. Used by EventGroup, which must test every waiter's
// predicate rather than waking only the single best one.
func (s *Scheduler) WaitersOn(obj interface{}) []*task.TCB {
	prev := s.cs.Enter()
	defer s.cs.Exit(prev)

	var out []*task.TCB
	for e := s.blocked.Front(); e != nil; e = e.Next() {
		t := e.Value.(*task.TCB)
		if t.BlockObject == obj {
			out = append(out, t)
		}
	}

	return out
}

// WakeWaiter unblocks a specific task that is currently blocked, used when
// the caller has already decided (e.g. by testing an event-group
// predicate) which waiter to wake rather than letting priority decide.
func (s *Scheduler) WakeWaiter(t *task.TCB) {
	prev := s.cs.Enter()
	s.wakeLocked(t)
	s.cs.Exit(prev)
}

// Lock defers the effect of any pending context switch until a matching
// Unlock brings the nest depth back to zero (spec §4.D scheduler_lock).
// This is independent of the kernel's critical section: the critical
// section fences data structure access against the tick handler, while the
// scheduler lock fences scheduling *decisions* against a task that is in
// the middle of a sequence of operations it needs treated as atomic from
// the scheduler's point of view.
func (s *Scheduler) Lock() {
	prev := s.cs.Enter()
	s.lockDepth++
	s.cs.Exit(prev)
}

// Unlock decrements the scheduler-lock nesting, and performs any switch
// that was deferred while locked once the depth returns to zero (spec §4.D
// scheduler_unlock).
func (s *Scheduler) Unlock() {
	prev := s.cs.Enter()
	if s.lockDepth == 0 {
		s.cs.Exit(prev)
		panic("scheduler: Unlock called without a matching Lock")
	}

	s.lockDepth--
	runSwitch := s.lockDepth == 0 && s.pendingSwitch
	if runSwitch {
		s.pendingSwitch = false
	}
	s.cs.Exit(prev)

	if runSwitch {
		s.ContextSwitch()
	}
}

// Yield voluntarily gives up the remainder of the current task's time slice
// and asks the scheduler to pick again (spec §4.D, reached through
// task_yield). It is exactly ContextSwitch with the current task requeued
// at the back of its ready level first, the round-robin rotation point.
func (s *Scheduler) Yield() {
	prev := s.cs.Enter()
	if cur := s.registry.Current(); cur != nil && cur.State == task.Running {
		cur.TimeSliceRemaining = cur.TimeSlice
	}
	s.cs.Exit(prev)

	s.ContextSwitch()
}

// ContextSwitch picks the next task to run per the active policy and, if it
// differs from the current task, performs the goroutine handoff (spec
// §4.D context_switch). If the scheduler is locked, the switch is recorded
// as pending and carried out once Unlock reaches depth zero. Does nothing
// while the scheduler is not running (before Start or after Stop). Safe to
// call with no task yet running (the very first call, from Start).
func (s *Scheduler) ContextSwitch() {
	prev := s.cs.Enter()

	if s.lockDepth > 0 {
		s.pendingSwitch = true
		s.cs.Exit(prev)
		return
	}

	if s.state != Running {
		s.cs.Exit(prev)
		return
	}

	s.stats.SchedulerInvocations++

	from := s.registry.Current()
	next := s.selectNextLocked()

	if next == nil {
		s.cs.Exit(prev)
		return
	}

	if from == next {
		s.cs.Exit(prev)
		return
	}

	now := s.tickBase.Now()

	if from != nil && from.State == task.Running {
		s.accountBurstLocked(from, now)
		from.State = task.Ready
		from.Link(s.ready[from.Priority])
	}

	next.Unlink()
	next.State = task.Running
	next.Stats.ActivationCount++
	next.Stats.LastStartTime = now

	s.registry.SetCurrent(next)
	s.stats.ContextSwitches++

	s.cs.Exit(prev)

	s.InvokeHook(hooking.HookCtx{Domain: s, Pos: HookPosContextSwitch, Item: next, Detail: from})

	if from == nil {
		kctx.StartFirst(next.Context)
		return
	}

	kctx.Switch(from.Context, next.Context)
}

// accountBurstLocked folds the burst a task just finished running into its
// TotalRuntime and MaxBurst stats, mirroring scheduler_context_switch's own
// runtime bookkeeping in original_source (it computes the same
// now-minus-last_start_time burst and tracks the longest one seen). Must be
// called with cs held, with t still State == Running.
func (s *Scheduler) accountBurstLocked(t *task.TCB, now ticktime.Tick) {
	burst := now - t.Stats.LastStartTime
	t.Stats.TotalRuntime += burst
	if burst > t.Stats.MaxBurst {
		t.Stats.MaxBurst = burst
	}
}

// selectNextLocked picks the next task to run per the active policy. Must
// be called with cs held. Falls back to the idle task when no other task
// is ready, and returns nil only if even the idle task has not been
// created yet (the scheduler has not finished Start's bootstrap).
func (s *Scheduler) selectNextLocked() *task.TCB {
	var next *task.TCB

	switch s.policy {
	case PolicyEDF:
		next = s.selectEDFLocked()
	case PolicyRoundRobin, PolicyPriority, PolicyRMS:
		next = s.selectHighestPriorityLocked()
	default:
		next = s.selectHighestPriorityLocked()
	}

	if next != nil {
		return next
	}

	return s.registry.Idle()
}

// selectHighestPriorityLocked returns the task at the front of the
// highest-priority non-empty ready queue. This serves PolicyPriority
// directly, and also PolicyRoundRobin (rotation happens in Yield/Tick by
// moving the outgoing task to the back of its own level rather than in
// selection itself) and PolicyRMS (the caller assigns priorities by rate;
// setting a task's period does not change its priority, so selection is
// identical to plain priority order).
func (s *Scheduler) selectHighestPriorityLocked() *task.TCB {
	for pri := 0; pri < s.pMax; pri++ {
		if front := s.ready[pri].Front(); front != nil {
			return front.Value.(*task.TCB)
		}
	}

	return nil
}

// selectEDFLocked scans every ready level for the task with the nearest
// absolute deadline, per spec §4.D's EDF policy description. Non-periodic
// ready tasks (AbsoluteDeadline never set) are only chosen if no periodic
// ready task exists, since they carry no deadline to compare against.
func (s *Scheduler) selectEDFLocked() *task.TCB {
	var best *task.TCB

	for pri := 0; pri < s.pMax; pri++ {
		for e := s.ready[pri].Front(); e != nil; e = e.Next() {
			t := e.Value.(*task.TCB)

			if !t.Periodic.Enabled {
				if best == nil {
					best = t
				}

				continue
			}

			if best == nil || !best.Periodic.Enabled || ticktime.Before(t.Periodic.AbsoluteDeadline, best.Periodic.AbsoluteDeadline) {
				best = t
			}
		}
	}

	return best
}

// OnTick implements ticktime.TickHandler (spec §4.A/§4.D tick): release due
// periodic jobs, expire delays, decrement the running task's round-robin
// slice, and account for missed deadlines. Any task actually unblocked this
// tick (by delay expiry or periodic release) triggers a context switch
// unconditionally, independent of policy, since an unblocked task may now
// outrank whatever is running — this is the tick-driven preemption path,
// the one case OnTick itself decides to switch rather than leaving it to
// the task's next cooperative entry into the kernel.
func (s *Scheduler) OnTick(now ticktime.Tick) {
	prev := s.cs.Enter()

	s.stats.SystemTime++

	cur := s.registry.Current()
	if cur != nil && cur == s.registry.Idle() {
		s.stats.IdleTime++
	}

	delayExpired := s.expireDelaysLocked(now)
	released, periodicUnblocked := s.releasePeriodicLocked(now)
	missed := s.checkDeadlinesLocked(now)

	sliceExpired := false
	if cur != nil && cur.TimeSlice > 0 && cur.State == task.Running {
		if cur.TimeSliceRemaining > 0 {
			cur.TimeSliceRemaining--
		}

		if cur.TimeSliceRemaining == 0 {
			cur.TimeSliceRemaining = cur.TimeSlice
			sliceExpired = true
		}
	}

	s.cs.Exit(prev)

	for _, t := range released {
		s.InvokeHook(hooking.HookCtx{Domain: s, Pos: HookPosPeriodicRelease, Item: t, Detail: now})
	}

	for _, t := range missed {
		s.InvokeHook(hooking.HookCtx{Domain: s, Pos: HookPosDeadlineMiss, Item: t, Detail: now})
	}

	unblocked := delayExpired || periodicUnblocked

	// RMS runs the same selection shape as plain priority (spec §4.D's
	// policy table) and so never evicts on slice expiry the way RR does.
	if unblocked || (sliceExpired && s.policy == PolicyRoundRobin) {
		s.ContextSwitch()
	}
}

// expireDelaysLocked moves every Blocked task whose DelayUntil has passed
// back to Ready, regardless of why it is blocked: task_delay sets
// BlockDelay specifically, but a semaphore/mutex/queue/event wait with a
// finite timeout reaches this same path once its wait deadline passes
// without the resource becoming available. WokeByTimeout distinguishes the
// two outcomes for whichever IPC call resumes — the uniform self-removal
// spec §9 Open Question (iii) asks for, implemented once here rather than
// once per primitive. Must be called with cs held. Returns whether any task
// was unblocked, so OnTick knows whether to switch.
func (s *Scheduler) expireDelaysLocked(now ticktime.Tick) bool {
	var expired []*task.TCB

	for e := s.blocked.Front(); e != nil; e = e.Next() {
		t := e.Value.(*task.TCB)
		if t.DelayUntil != task.NoTimeout && ticktime.AtOrBefore(t.DelayUntil, now) {
			expired = append(expired, t)
		}
	}

	for _, t := range expired {
		timedOut := t.BlockReason != task.BlockDelay
		s.wakeLocked(t)
		t.WokeByTimeout = timedOut
	}

	return len(expired) > 0
}

// releasePeriodicLocked scans the whole registry (spec §9 Open Question ii)
// for periodic tasks whose NextRelease has arrived, records a deadline miss
// if the previous job was still outstanding, and arms the next release. It
// returns every task released this tick, so OnTick can fire
// HookPosPeriodicRelease once cs has been released. Must be called with cs
// held. Besides the released list, it reports whether any of them were
// actually unblocked (moved out of Blocked into Ready) rather than merely
// re-armed while already Ready/Running/Suspended/Terminated, so OnTick
// knows whether to switch.
func (s *Scheduler) releasePeriodicLocked(now ticktime.Tick) ([]*task.TCB, bool) {
	var released []*task.TCB
	unblocked := false

	for _, t := range s.registry.All() {
		if !t.Periodic.Enabled || ticktime.Before(now, t.Periodic.NextRelease) {
			continue
		}

		if t.Periodic.JobOutstanding {
			t.Stats.DeadlineMisses++
			s.stats.DeadlineMisses++
		}

		t.Periodic.JobOutstanding = true
		t.Periodic.AbsoluteDeadline = t.Periodic.NextRelease + t.Periodic.Deadline
		t.Periodic.NextRelease += t.Periodic.Period
		released = append(released, t)

		if t.State == task.Suspended || t.State == task.Terminated {
			continue
		}

		if t.State != task.Ready && t.State != task.Running {
			t.Unlink()
			t.State = task.Ready
			t.Link(s.ready[t.Priority])
			unblocked = true
		}
	}

	return released, unblocked
}

// checkDeadlinesLocked implements spec §4.D check_deadlines: any periodic
// task that has not terminated and whose absolute deadline has already
// passed without its job having been explicitly completed is counted as a
// miss exactly once per release, via JobOutstanding. Returns every task whose deadline
// was missed this tick, for OnTick to hook once cs has been released. Must
// be called with cs held.
func (s *Scheduler) checkDeadlinesLocked(now ticktime.Tick) []*task.TCB {
	var missed []*task.TCB

	for _, t := range s.registry.All() {
		if !t.Periodic.Enabled || !t.Periodic.JobOutstanding || t.State == task.Terminated {
			continue
		}

		if ticktime.Before(t.Periodic.AbsoluteDeadline, now) {
			t.Stats.DeadlineMisses++
			s.stats.DeadlineMisses++
			t.Periodic.JobOutstanding = false
			missed = append(missed, t)
		}
	}

	return missed
}

// CompleteJob clears a periodic task's outstanding-job flag (spec §4.D,
// reached through task_set_periodic's job-completion signal), so
// checkDeadlinesLocked does not double-count a job the task itself finished
// in time.
func (s *Scheduler) CompleteJob(t *task.TCB) {
	prev := s.cs.Enter()
	t.Periodic.JobOutstanding = false
	s.cs.Exit(prev)
}

// Terminate marks t Terminated, selects the next task to run, and performs
// a one-way handoff into it via kctx.Finish (spec §4.B: "on return, marks
// the task TERMINATED and yields to the scheduler"). Callers invoke this as
// a task's onReturn callback (see kctx.Spawn), so it always runs on that
// task's own goroutine — never on behalf of a task other than the one
// currently RUNNING.
func (s *Scheduler) Terminate(t *task.TCB) {
	prev := s.cs.Enter()

	now := s.tickBase.Now()
	s.accountBurstLocked(t, now)
	t.Unlink()
	t.State = task.Terminated
	s.stats.TasksDeleted++

	next := s.selectNextLocked()

	if next != nil {
		next.Unlink()
		next.State = task.Running
		next.Stats.ActivationCount++
		next.Stats.LastStartTime = now
		s.registry.SetCurrent(next)
		s.stats.ContextSwitches++
	}

	s.cs.Exit(prev)

	s.InvokeHook(hooking.HookCtx{Domain: s, Pos: HookPosTaskTerminated, Item: t})

	if next != nil {
		kctx.Finish(next.Context)
	}
}

// Start picks the first task to run (highest priority ready, or idle) and
// jumps into it via kctx.StartFirst (spec §4.D scheduler_start). Must be
// called exactly once, with at least the idle task already added.
func (s *Scheduler) Start() error {
	prev := s.cs.Enter()

	if s.state == Running {
		s.cs.Exit(prev)
		return ErrAlreadyRunning
	}

	s.state = Running
	s.cs.Exit(prev)

	s.ContextSwitch()

	return nil
}

// Stop marks the scheduler stopped. It does not and cannot unwind the
// goroutines already parked mid-switch — stopping a live kernel is a
// host-process-teardown concern, not something scheduler_stop needs to
// reverse cleanly (spec's Non-goals exclude graceful kernel shutdown).
func (s *Scheduler) Stop() error {
	prev := s.cs.Enter()
	defer s.cs.Exit(prev)

	if s.state != Running {
		return ErrNotRunning
	}

	s.state = Stopped

	return nil
}
