package ipc_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"rtoskernel/internal/ipc"
	"rtoskernel/internal/klog"
	"rtoskernel/internal/scheduler"
	"rtoskernel/internal/task"
)

var _ = Describe("Semaphore", func() {
	It("takes immediately when a unit is available", func() {
		h := newHarness(scheduler.PolicyPriority)
		sem, err := ipc.NewSemaphore(h.cs, h.sched, klog.NewNop(), "sem", 1, 1)
		Expect(err).NotTo(HaveOccurred())

		taken := make(chan error, 1)
		_, done := h.spawn("taker", 0, func(t *task.TCB) {
			taken <- sem.Take(t, task.NoTimeout, 0)
		})

		h.start()

		Eventually(done).Should(BeClosed())
		Expect(<-taken).NotTo(HaveOccurred())
		Expect(sem.Count()).To(Equal(0))
	})

	It("blocks a taker until Give wakes it", func() {
		h := newHarness(scheduler.PolicyPriority)
		sem, err := ipc.NewSemaphore(h.cs, h.sched, klog.NewNop(), "sem", 0, 1)
		Expect(err).NotTo(HaveOccurred())

		result := make(chan error, 1)
		_, takerDone := h.spawn("taker", 0, func(t *task.TCB) {
			result <- sem.Take(t, task.NoTimeout, 0)
		})

		_, giverDone := h.spawn("giver", 1, func(t *task.TCB) {
			h.sched.Yield()
			Expect(sem.Give()).To(Succeed())
		})

		h.start()

		Eventually(takerDone).Should(BeClosed())
		Eventually(giverDone).Should(BeClosed())
		Expect(<-result).NotTo(HaveOccurred())
		Expect(sem.Count()).To(Equal(0))
	})

	It("returns ErrWouldBlock on a zero-timeout take against an empty semaphore", func() {
		h := newHarness(scheduler.PolicyPriority)
		sem, err := ipc.NewSemaphore(h.cs, h.sched, klog.NewNop(), "sem", 0, 1)
		Expect(err).NotTo(HaveOccurred())

		result := make(chan error, 1)
		_, done := h.spawn("taker", 0, func(t *task.TCB) {
			result <- sem.Take(t, 0, 0)
		})

		h.start()

		Eventually(done).Should(BeClosed())
		Expect(<-result).To(MatchError(ipc.ErrWouldBlock))
	})

	It("rejects an out-of-range initial count", func() {
		h := newHarness(scheduler.PolicyPriority)
		_, err := ipc.NewSemaphore(h.cs, h.sched, klog.NewNop(), "sem", 2, 1)
		Expect(err).To(MatchError(ipc.ErrInvalidArgument))
	})

	It("wakes waiters with a timeout error when deleted", func() {
		h := newHarness(scheduler.PolicyPriority)
		sem, err := ipc.NewSemaphore(h.cs, h.sched, klog.NewNop(), "sem", 0, 1)
		Expect(err).NotTo(HaveOccurred())

		result := make(chan error, 1)
		_, done := h.spawn("taker", 0, func(t *task.TCB) {
			result <- sem.Take(t, task.NoTimeout, 0)
		})

		_, deleterDone := h.spawn("deleter", 1, func(t *task.TCB) {
			h.sched.Yield()
			sem.Delete()
		})

		h.start()

		Eventually(done).Should(BeClosed())
		Eventually(deleterDone).Should(BeClosed())
		Expect(<-result).To(MatchError(ipc.ErrTimeout))
	})
})
