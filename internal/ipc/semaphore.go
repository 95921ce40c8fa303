package ipc

import (
	"fmt"

	"rtoskernel/internal/kctx"
	"rtoskernel/internal/klog"
	"rtoskernel/internal/naming"
	"rtoskernel/internal/scheduler"
	"rtoskernel/internal/task"
	"rtoskernel/internal/ticktime"
)

// Semaphore is a counting semaphore (spec §4.E semaphore_create/take/give).
type Semaphore struct {
	naming.NamedBase

	cs     *kctx.CriticalSection
	sched  *scheduler.Scheduler
	logger klog.Logger

	count int
	max   int
}

// NewSemaphore creates a semaphore with the given initial count and
// capacity. Fails if initial is out of [0, max] or max is non-positive.
func NewSemaphore(cs *kctx.CriticalSection, sched *scheduler.Scheduler, logger klog.Logger, name string, initial, max int) (*Semaphore, error) {
	if max <= 0 || initial < 0 || initial > max {
		return nil, fmt.Errorf("%w: initial=%d max=%d", ErrInvalidArgument, initial, max)
	}

	s := &Semaphore{cs: cs, sched: sched, logger: logger, count: initial, max: max}
	s.NamedBase = naming.MakeNamedBase(name)

	return s, nil
}

// Count returns the current available count.
func (s *Semaphore) Count() int {
	prev := s.cs.Enter()
	defer s.cs.Exit(prev)

	return s.count
}

// Take acquires one unit, blocking t (whose own goroutine must be the
// caller) for up to timeoutTicks if none is available. task.NoTimeout
// waits forever; zero returns ErrWouldBlock immediately instead of
// blocking (spec §4.E semaphore_take's timeout contract).
func (s *Semaphore) Take(t *task.TCB, timeoutTicks, now ticktime.Tick) error {
	prev := s.cs.Enter()

	if s.count > 0 {
		s.count--
		s.cs.Exit(prev)

		return nil
	}

	if timeoutTicks == 0 {
		s.cs.Exit(prev)

		return ErrWouldBlock
	}

	wake := deadline(timeoutTicks, now)
	s.cs.Exit(prev)

	s.sched.BlockTask(t, task.BlockSemaphore, s, task.WaitPredicate{}, wake)
	s.sched.ContextSwitch()

	if t.WokeByTimeout {
		s.logger.Debugf("semaphore %s: take by %s timed out", s.Name(), t.Name())

		return ErrTimeout
	}

	return nil
}

// Give releases one unit, handing it straight to the highest-priority
// waiter if one exists rather than incrementing the count (spec §4.E
// semaphore_give). Returns ErrCapacity if giving would exceed max and
// nothing is waiting to receive it. A released waiter triggers a context
// switch immediately, so a higher-priority task preempts the giver rather
// than waiting for some later cooperative switch point.
func (s *Semaphore) Give() error {
	prev := s.cs.Enter()

	if woken := s.sched.PopHighestPriorityWaiter(s); woken != nil {
		s.cs.Exit(prev)
		s.sched.ContextSwitch()

		return nil
	}

	if s.count >= s.max {
		s.cs.Exit(prev)

		return ErrCapacity
	}

	s.count++
	s.cs.Exit(prev)

	return nil
}

// Delete unblocks every waiter with a timeout-like wake and frees the slot
// (spec §4.E semaphore_delete / §7 error kind 6 "destroy-with-waiters"). The
// semaphore must not be used after Delete returns.
func (s *Semaphore) Delete() {
	prev := s.cs.Enter()
	waiters := s.sched.WaitersOn(s)
	s.cs.Exit(prev)

	for _, w := range waiters {
		s.sched.WakeWaiter(w)
		w.WokeByTimeout = true
		s.logger.Warnf("semaphore %s: deleted while %s was waiting", s.Name(), w.Name())
	}
}
