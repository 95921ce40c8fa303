// Package ipc implements the kernel's inter-task communication primitives
// (spec §4.E): counting semaphores, priority-inheritance mutexes, bounded
// message queues with a rendezvous fast path, and event flag groups.
//
// Every primitive blocks and wakes tasks through scheduler.Scheduler rather
// than keeping a waiter list of its own — a blocked task is linked into
// exactly one list at a time (spec §3 invariant I1), and that list is
// always scheduler's shared blocked list. A primitive finds "its" waiters
// by scanning that list for a matching BlockObject (see
// Scheduler.PopHighestPriorityWaiter/PopWaiterByReason/WaitersOn), the same
// linear-scan-by-tag shape original_source's fixed-size wait tables use.
package ipc

import (
	"errors"

	"rtoskernel/internal/task"
	"rtoskernel/internal/ticktime"
)

// Sentinel errors for the IPC primitives' error kinds (spec §7).
var (
	ErrInvalidArgument = errors.New("ipc: invalid argument")
	ErrWouldBlock       = errors.New("ipc: would block")
	ErrTimeout          = errors.New("ipc: timed out waiting")
	ErrCapacity         = errors.New("ipc: at capacity")
	ErrNotOwner         = errors.New("ipc: caller does not own this mutex")
	ErrAlreadyOwner     = errors.New("ipc: caller already owns this mutex")
)

// deadline turns a relative timeout into an absolute wake tick, preserving
// task.NoTimeout as "wait forever" rather than doing arithmetic on it.
func deadline(timeoutTicks, now ticktime.Tick) ticktime.Tick {
	if timeoutTicks == task.NoTimeout {
		return task.NoTimeout
	}

	return now + timeoutTicks
}
