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

// Queue is a bounded FIFO message queue (spec §4.E queue_create/send/
// receive). Send hands a message straight to an already-waiting receiver
// (and Receive straight to an already-waiting sender) rather than always
// round-tripping through the ring buffer — the rendezvous fast path spec
// §3's WaitPredicate.PendingMsg field exists for.
type Queue struct {
	naming.NamedBase

	cs     *kctx.CriticalSection
	sched  *scheduler.Scheduler
	logger klog.Logger

	buf      []interface{}
	head     int
	count    int
	capacity int
}

// NewQueue creates an empty bounded queue of the given capacity.
func NewQueue(cs *kctx.CriticalSection, sched *scheduler.Scheduler, logger klog.Logger, name string, capacity int) (*Queue, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidArgument, capacity)
	}

	q := &Queue{cs: cs, sched: sched, logger: logger, buf: make([]interface{}, capacity), capacity: capacity}
	q.NamedBase = naming.MakeNamedBase(name)

	return q, nil
}

// Len returns the number of messages currently buffered (not counting
// messages held by blocked senders awaiting a rendezvous).
func (q *Queue) Len() int {
	prev := q.cs.Enter()
	defer q.cs.Exit(prev)

	return q.count
}

func (q *Queue) pushLocked(msg interface{}) {
	idx := (q.head + q.count) % q.capacity
	q.buf[idx] = msg
	q.count++
}

func (q *Queue) popLocked() interface{} {
	msg := q.buf[q.head]
	q.buf[q.head] = nil
	q.head = (q.head + 1) % q.capacity
	q.count--

	return msg
}

// Send enqueues msg, blocking t for up to timeoutTicks if the queue is
// full and no receiver is waiting (spec §4.E queue_send). Handing msg
// straight to a waiting receiver triggers a context switch immediately, so
// a higher-priority receiver preempts the sender rather than waiting for
// some later cooperative switch point.
func (q *Queue) Send(t *task.TCB, msg interface{}, timeoutTicks, now ticktime.Tick) error {
	prev := q.cs.Enter()

	if receiver := q.sched.PopWaiterByReason(q, task.BlockQueueEmpty); receiver != nil {
		receiver.WaitPredicate.PendingMsg = msg
		q.cs.Exit(prev)
		q.sched.ContextSwitch()

		return nil
	}

	if q.count < q.capacity {
		q.pushLocked(msg)
		q.cs.Exit(prev)

		return nil
	}

	if timeoutTicks == 0 {
		q.cs.Exit(prev)

		return ErrWouldBlock
	}

	wake := deadline(timeoutTicks, now)
	q.cs.Exit(prev)

	q.sched.BlockTask(t, task.BlockQueueFull, q, task.WaitPredicate{PendingMsg: msg}, wake)
	q.sched.ContextSwitch()

	if t.WokeByTimeout {
		return ErrTimeout
	}

	return nil
}

// Receive dequeues the oldest message, blocking t for up to timeoutTicks
// if the queue is empty and no sender is waiting (spec §4.E
// queue_receive). Waking a blocked sender (either to refill the slot just
// vacated, or via the empty-queue rendezvous fast path) triggers a context
// switch immediately, so a higher-priority sender preempts the receiver
// rather than waiting for some later cooperative switch point.
func (q *Queue) Receive(t *task.TCB, timeoutTicks, now ticktime.Tick) (interface{}, error) {
	prev := q.cs.Enter()

	if q.count > 0 {
		msg := q.popLocked()

		sender := q.sched.PopWaiterByReason(q, task.BlockQueueFull)
		if sender != nil {
			q.pushLocked(sender.WaitPredicate.PendingMsg)
		}

		q.cs.Exit(prev)

		if sender != nil {
			q.sched.ContextSwitch()
		}

		return msg, nil
	}

	if sender := q.sched.PopWaiterByReason(q, task.BlockQueueFull); sender != nil {
		msg := sender.WaitPredicate.PendingMsg
		q.cs.Exit(prev)
		q.sched.ContextSwitch()

		return msg, nil
	}

	if timeoutTicks == 0 {
		q.cs.Exit(prev)

		return nil, ErrWouldBlock
	}

	wake := deadline(timeoutTicks, now)
	q.cs.Exit(prev)

	q.sched.BlockTask(t, task.BlockQueueEmpty, q, task.WaitPredicate{}, wake)
	q.sched.ContextSwitch()

	if t.WokeByTimeout {
		return nil, ErrTimeout
	}

	return t.WaitPredicate.PendingMsg, nil
}

// Peek returns the head message without removing it (spec §4.E
// queue_peek). Fails with ErrWouldBlock if the queue is empty.
func (q *Queue) Peek() (interface{}, error) {
	prev := q.cs.Enter()
	defer q.cs.Exit(prev)

	if q.count == 0 {
		return nil, ErrWouldBlock
	}

	return q.buf[q.head], nil
}

// Delete unblocks every sender and receiver waiting on the queue with a
// timeout-like wake and frees the backing buffer (spec §4.E queue_delete /
// §7 error kind 6 "destroy-with-waiters"). The queue must not be used after
// Delete returns.
func (q *Queue) Delete() {
	prev := q.cs.Enter()
	waiters := q.sched.WaitersOn(q)
	q.buf = nil
	q.count = 0
	q.head = 0
	q.cs.Exit(prev)

	for _, w := range waiters {
		q.sched.WakeWaiter(w)
		w.WokeByTimeout = true
		q.logger.Warnf("queue %s: deleted while %s was waiting", q.Name(), w.Name())
	}
}
