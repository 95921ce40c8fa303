package ipc_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"rtoskernel/internal/ipc"
	"rtoskernel/internal/klog"
	"rtoskernel/internal/scheduler"
	"rtoskernel/internal/task"
)

var _ = Describe("Queue", func() {
	It("buffers a send and returns it from a later receive", func() {
		h := newHarness(scheduler.PolicyPriority)
		q, err := ipc.NewQueue(h.cs, h.sched, klog.NewNop(), "q", 2)
		Expect(err).NotTo(HaveOccurred())

		result := make(chan interface{}, 1)
		_, done := h.spawn("user", 0, func(t *task.TCB) {
			Expect(q.Send(t, "hello", task.NoTimeout, 0)).To(Succeed())
			Expect(q.Len()).To(Equal(1))

			msg, err := q.Receive(t, task.NoTimeout, 0)
			Expect(err).NotTo(HaveOccurred())
			result <- msg
		})

		h.start()

		Eventually(done).Should(BeClosed())
		Expect(<-result).To(Equal("hello"))
	})

	It("rendezvous-delivers a send directly to an already-waiting receiver", func() {
		h := newHarness(scheduler.PolicyPriority)
		q, err := ipc.NewQueue(h.cs, h.sched, klog.NewNop(), "q", 1)
		Expect(err).NotTo(HaveOccurred())

		received := make(chan interface{}, 1)
		_, receiverDone := h.spawn("receiver", 0, func(t *task.TCB) {
			msg, err := q.Receive(t, task.NoTimeout, 0)
			Expect(err).NotTo(HaveOccurred())
			received <- msg
		})

		_, senderDone := h.spawn("sender", 1, func(t *task.TCB) {
			h.sched.Yield()
			Expect(q.Send(t, "direct", task.NoTimeout, 0)).To(Succeed())
			Expect(q.Len()).To(Equal(0))
		})

		h.start()

		Eventually(receiverDone).Should(BeClosed())
		Eventually(senderDone).Should(BeClosed())
		Expect(<-received).To(Equal("direct"))
	})

	It("blocks a sender when the queue is full and admits it once a slot frees", func() {
		h := newHarness(scheduler.PolicyPriority)
		q, err := ipc.NewQueue(h.cs, h.sched, klog.NewNop(), "q", 1)
		Expect(err).NotTo(HaveOccurred())

		sendResult := make(chan error, 1)
		_, senderDone := h.spawn("sender", 0, func(t *task.TCB) {
			Expect(q.Send(t, "first", task.NoTimeout, 0)).To(Succeed())
			sendResult <- q.Send(t, "second", task.NoTimeout, 0)
		})

		_, receiverDone := h.spawn("receiver", 1, func(t *task.TCB) {
			h.sched.Yield()
			msg, err := q.Receive(t, task.NoTimeout, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(msg).To(Equal("first"))
		})

		h.start()

		Eventually(senderDone).Should(BeClosed())
		Eventually(receiverDone).Should(BeClosed())
		Expect(<-sendResult).NotTo(HaveOccurred())
	})

	It("rejects a non-positive capacity", func() {
		h := newHarness(scheduler.PolicyPriority)
		_, err := ipc.NewQueue(h.cs, h.sched, klog.NewNop(), "q", 0)
		Expect(err).To(MatchError(ipc.ErrInvalidArgument))
	})

	It("peeks the head message without removing it", func() {
		h := newHarness(scheduler.PolicyPriority)
		q, err := ipc.NewQueue(h.cs, h.sched, klog.NewNop(), "q", 2)
		Expect(err).NotTo(HaveOccurred())

		_, err = q.Peek()
		Expect(err).To(MatchError(ipc.ErrWouldBlock))

		result := make(chan interface{}, 2)
		_, done := h.spawn("user", 0, func(t *task.TCB) {
			Expect(q.Send(t, "hello", task.NoTimeout, 0)).To(Succeed())

			peeked, err := q.Peek()
			Expect(err).NotTo(HaveOccurred())
			result <- peeked

			Expect(q.Len()).To(Equal(1))

			msg, err := q.Receive(t, task.NoTimeout, 0)
			Expect(err).NotTo(HaveOccurred())
			result <- msg
		})

		h.start()

		Eventually(done).Should(BeClosed())
		Expect(<-result).To(Equal("hello"))
		Expect(<-result).To(Equal("hello"))
	})

	It("wakes a blocked sender with a timeout error when deleted", func() {
		h := newHarness(scheduler.PolicyPriority)
		q, err := ipc.NewQueue(h.cs, h.sched, klog.NewNop(), "q", 1)
		Expect(err).NotTo(HaveOccurred())

		sendResult := make(chan error, 1)
		_, done := h.spawn("sender", 0, func(t *task.TCB) {
			Expect(q.Send(t, "first", task.NoTimeout, 0)).To(Succeed())
			sendResult <- q.Send(t, "second", task.NoTimeout, 0)
		})

		_, deleterDone := h.spawn("deleter", 1, func(t *task.TCB) {
			h.sched.Yield()
			q.Delete()
		})

		h.start()

		Eventually(done).Should(BeClosed())
		Eventually(deleterDone).Should(BeClosed())
		Expect(<-sendResult).To(MatchError(ipc.ErrTimeout))
	})
})
