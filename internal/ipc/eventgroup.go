package ipc

import (
	"rtoskernel/internal/kctx"
	"rtoskernel/internal/klog"
	"rtoskernel/internal/naming"
	"rtoskernel/internal/scheduler"
	"rtoskernel/internal/task"
	"rtoskernel/internal/ticktime"
)

// EventGroup is a 32-bit set of event flags with ALL/ANY wait semantics and
// an optional auto-clear-on-satisfy option (spec §4.E
// event_group_create/set/clear/wait).
type EventGroup struct {
	naming.NamedBase

	cs     *kctx.CriticalSection
	sched  *scheduler.Scheduler
	logger klog.Logger

	flags uint32
}

// NewEventGroup creates an event group with all flags initially clear.
func NewEventGroup(cs *kctx.CriticalSection, sched *scheduler.Scheduler, logger klog.Logger, name string) *EventGroup {
	e := &EventGroup{cs: cs, sched: sched, logger: logger}
	e.NamedBase = naming.MakeNamedBase(name)

	return e
}

// Get returns the current flag bits.
func (e *EventGroup) Get() uint32 {
	prev := e.cs.Enter()
	defer e.cs.Exit(prev)

	return e.flags
}

// Set ORs bits into the flag set and wakes every waiter whose predicate is
// now satisfied (spec §4.E event_group_set). Waking any waiter triggers a
// context switch immediately, so a higher-priority waiter preempts the
// setter rather than waiting for some later cooperative switch point.
func (e *EventGroup) Set(bits uint32) {
	prev := e.cs.Enter()
	e.flags |= bits
	woke := e.wakeSatisfiedLocked()
	e.cs.Exit(prev)

	if woke {
		e.sched.ContextSwitch()
	}
}

// Clear ANDs bits out of the flag set (spec §4.E event_group_clear).
func (e *EventGroup) Clear(bits uint32) {
	prev := e.cs.Enter()
	e.flags &^= bits
	e.cs.Exit(prev)
}

func (e *EventGroup) satisfiedLocked(mask uint32, waitAll bool) bool {
	if waitAll {
		return e.flags&mask == mask
	}

	return e.flags&mask != 0
}

// wakeSatisfiedLocked wakes every currently-blocked waiter whose mask/
// WaitAll predicate the flag set now satisfies, stashing each one's
// observed result bits in WaitPredicate.PendingMsg for Wait to read back
// once it resumes. Must be called with cs held. Returns whether it woke
// anyone.
func (e *EventGroup) wakeSatisfiedLocked() bool {
	woke := false

	for _, t := range e.sched.WaitersOn(e) {
		mask := t.WaitPredicate.EventMask
		opts := t.WaitPredicate.EventOptions

		if !e.satisfiedLocked(mask, opts.WaitAll) {
			continue
		}

		result := e.flags & mask
		if opts.Clear {
			e.flags &^= mask
		}

		e.sched.WakeWaiter(t)
		t.WaitPredicate.PendingMsg = result
		woke = true
	}

	return woke
}

// Wait blocks t until mask is satisfied per opts.WaitAll, or timeoutTicks
// elapses (spec §4.E event_group_wait). Returns the flag bits observed at
// the moment the wait was satisfied.
func (e *EventGroup) Wait(t *task.TCB, mask uint32, opts task.EventOptions, timeoutTicks, now ticktime.Tick) (uint32, error) {
	prev := e.cs.Enter()

	if e.satisfiedLocked(mask, opts.WaitAll) {
		result := e.flags & mask
		if opts.Clear {
			e.flags &^= mask
		}

		e.cs.Exit(prev)

		return result, nil
	}

	if timeoutTicks == 0 {
		e.cs.Exit(prev)

		return 0, ErrWouldBlock
	}

	wake := deadline(timeoutTicks, now)
	e.cs.Exit(prev)

	e.sched.BlockTask(t, task.BlockEvent, e, task.WaitPredicate{EventMask: mask, EventOptions: opts}, wake)
	e.sched.ContextSwitch()

	if t.WokeByTimeout {
		return 0, ErrTimeout
	}

	result, _ := t.WaitPredicate.PendingMsg.(uint32)

	return result, nil
}

// Delete unblocks every waiter with a timeout-like wake (spec §4.E
// event_group_delete / §7 error kind 6 "destroy-with-waiters"). The event
// group must not be used after Delete returns.
func (e *EventGroup) Delete() {
	prev := e.cs.Enter()
	waiters := e.sched.WaitersOn(e)
	e.cs.Exit(prev)

	for _, w := range waiters {
		e.sched.WakeWaiter(w)
		w.WokeByTimeout = true
		e.logger.Warnf("event group %s: deleted while %s was waiting", e.Name(), w.Name())
	}
}
