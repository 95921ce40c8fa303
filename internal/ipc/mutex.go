package ipc

import (
	"rtoskernel/internal/kctx"
	"rtoskernel/internal/klog"
	"rtoskernel/internal/naming"
	"rtoskernel/internal/scheduler"
	"rtoskernel/internal/task"
	"rtoskernel/internal/ticktime"
)

// Mutex is a non-recursive, priority-inheriting mutual-exclusion lock (spec
// §4.E mutex_create/lock/unlock: "if the caller is already the owner, fail
// (non-recursive)"). Only the owner is tracked per lock, not a full
// inheritance chain: Unlock restores the owner's OriginalPriority, so no
// boosted-priority field is kept — original_source's mutex_t has no
// chain-of-owners bookkeeping either.
type Mutex struct {
	naming.NamedBase

	cs     *kctx.CriticalSection
	sched  *scheduler.Scheduler
	logger klog.Logger

	owner *task.TCB
}

// NewMutex creates an unlocked mutex.
func NewMutex(cs *kctx.CriticalSection, sched *scheduler.Scheduler, logger klog.Logger, name string) *Mutex {
	m := &Mutex{cs: cs, sched: sched, logger: logger}
	m.NamedBase = naming.MakeNamedBase(name)

	return m
}

// Owner returns the task currently holding the mutex, or nil.
func (m *Mutex) Owner() *task.TCB {
	prev := m.cs.Enter()
	defer m.cs.Exit(prev)

	return m.owner
}

// IsLocked reports whether the mutex is currently held (spec §4.E
// mutex_is_locked).
func (m *Mutex) IsLocked() bool {
	prev := m.cs.Enter()
	defer m.cs.Exit(prev)

	return m.owner != nil
}

// Lock acquires the mutex. Fails immediately if the caller already owns it
// (non-recursive, spec §4.E). If another task owns it, t's priority is lent
// to the owner (spec §4.E's priority inheritance) and stays lent until
// Unlock, even if t's wait times out first.
func (m *Mutex) Lock(t *task.TCB, timeoutTicks, now ticktime.Tick) error {
	prev := m.cs.Enter()

	if m.owner == nil {
		m.owner = t
		m.cs.Exit(prev)

		return nil
	}

	if m.owner == t {
		m.cs.Exit(prev)
		m.logger.Warnf("mutex %s: %s attempted to lock a mutex it already owns", m.Name(), t.Name())

		return ErrAlreadyOwner
	}

	if timeoutTicks == 0 {
		m.cs.Exit(prev)

		return ErrWouldBlock
	}

	boost := t.Priority < m.owner.Priority
	owner := m.owner
	wake := deadline(timeoutTicks, now)
	m.cs.Exit(prev)

	if boost {
		m.logger.Debugf("mutex %s: boosting owner %s to priority %d for waiter %s", m.Name(), owner.Name(), t.Priority, t.Name())
		m.sched.SetPriority(owner, t.Priority)
	}

	m.sched.BlockTask(t, task.BlockMutex, m, task.WaitPredicate{}, wake)
	m.sched.ContextSwitch()

	if t.WokeByTimeout {
		return ErrTimeout
	}

	return nil
}

// Unlock releases the mutex. The owner's priority is restored if it had
// been boosted, and the lock is handed directly to the highest-priority
// waiter, if any, rather than going through an intermediate unlocked state
// (spec §4.E mutex_unlock). Handing the lock to a waiter triggers a context
// switch immediately, so a higher-priority task preempts the unlocker
// rather than waiting for some later cooperative switch point.
func (m *Mutex) Unlock(t *task.TCB) error {
	prev := m.cs.Enter()

	if m.owner != t {
		m.cs.Exit(prev)

		return ErrNotOwner
	}

	restore := t.Priority != t.OriginalPriority
	original := t.OriginalPriority
	next := m.sched.PopHighestPriorityWaiter(m)

	if next != nil {
		m.owner = next
	} else {
		m.owner = nil
	}

	m.cs.Exit(prev)

	if restore {
		m.sched.SetPriority(t, original)
	}

	if next != nil {
		m.sched.ContextSwitch()
	}

	return nil
}

// Delete unblocks every waiter with a timeout-like wake and restores the
// owner's priority if it had been boosted (spec §4.E mutex_delete / §7 error
// kind 6 "destroy-with-waiters"). The mutex must not be used after Delete
// returns.
func (m *Mutex) Delete() {
	prev := m.cs.Enter()

	owner := m.owner
	restore := owner != nil && owner.Priority != owner.OriginalPriority
	original := 0
	if owner != nil {
		original = owner.OriginalPriority
	}

	waiters := m.sched.WaitersOn(m)
	m.owner = nil
	m.cs.Exit(prev)

	for _, w := range waiters {
		m.sched.WakeWaiter(w)
		w.WokeByTimeout = true
		m.logger.Warnf("mutex %s: deleted while %s was waiting", m.Name(), w.Name())
	}

	if restore {
		m.sched.SetPriority(owner, original)
	}
}
