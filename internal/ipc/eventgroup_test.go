package ipc_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"rtoskernel/internal/ipc"
	"rtoskernel/internal/klog"
	"rtoskernel/internal/scheduler"
	"rtoskernel/internal/task"
)

var _ = Describe("EventGroup", func() {
	It("returns immediately when the mask is already satisfied", func() {
		h := newHarness(scheduler.PolicyPriority)
		e := ipc.NewEventGroup(h.cs, h.sched, klog.NewNop(), "eg")
		e.Set(0x3)

		result := make(chan uint32, 1)
		_, done := h.spawn("waiter", 0, func(t *task.TCB) {
			bits, err := e.Wait(t, 0x1, task.EventOptions{}, task.NoTimeout, 0)
			Expect(err).NotTo(HaveOccurred())
			result <- bits
		})

		h.start()

		Eventually(done).Should(BeClosed())
		Expect(<-result).To(Equal(uint32(0x1)))
		Expect(e.Get()).To(Equal(uint32(0x3)))
	})

	It("clears the observed bits when WaitAny is given the Clear option", func() {
		h := newHarness(scheduler.PolicyPriority)
		e := ipc.NewEventGroup(h.cs, h.sched, klog.NewNop(), "eg")
		e.Set(0x3)

		_, done := h.spawn("waiter", 0, func(t *task.TCB) {
			_, err := e.Wait(t, 0x1, task.EventOptions{Clear: true}, task.NoTimeout, 0)
			Expect(err).NotTo(HaveOccurred())
		})

		h.start()

		Eventually(done).Should(BeClosed())
		Expect(e.Get()).To(Equal(uint32(0x2)))
	})

	It("blocks on WaitAll until every bit arrives, then wakes with the full mask", func() {
		h := newHarness(scheduler.PolicyPriority)
		e := ipc.NewEventGroup(h.cs, h.sched, klog.NewNop(), "eg")

		result := make(chan uint32, 1)
		_, waiterDone := h.spawn("waiter", 0, func(t *task.TCB) {
			bits, err := e.Wait(t, 0x3, task.EventOptions{WaitAll: true}, task.NoTimeout, 0)
			Expect(err).NotTo(HaveOccurred())
			result <- bits
		})

		_, setterDone := h.spawn("setter", 1, func(t *task.TCB) {
			h.sched.Yield()
			e.Set(0x1)
			h.sched.Yield()
			e.Set(0x2)
		})

		h.start()

		Eventually(waiterDone).Should(BeClosed())
		Eventually(setterDone).Should(BeClosed())
		Expect(<-result).To(Equal(uint32(0x3)))
	})

	It("times out a wait whose mask never arrives", func() {
		h := newHarness(scheduler.PolicyPriority)
		e := ipc.NewEventGroup(h.cs, h.sched, klog.NewNop(), "eg")

		result := make(chan error, 1)
		_, done := h.spawn("waiter", 0, func(t *task.TCB) {
			_, err := e.Wait(t, 0x1, task.EventOptions{}, 3, 0)
			result <- err
		})

		h.start()
		for i := 0; i < 5; i++ {
			h.base.Tick()
		}

		Eventually(done).Should(BeClosed())
		Expect(<-result).To(MatchError(ipc.ErrTimeout))
	})

	It("wakes a blocked waiter with a timeout error when deleted", func() {
		h := newHarness(scheduler.PolicyPriority)
		e := ipc.NewEventGroup(h.cs, h.sched, klog.NewNop(), "eg")

		result := make(chan error, 1)
		_, waiterDone := h.spawn("waiter", 0, func(t *task.TCB) {
			_, err := e.Wait(t, 0x1, task.EventOptions{}, task.NoTimeout, 0)
			result <- err
		})

		_, deleterDone := h.spawn("deleter", 1, func(t *task.TCB) {
			h.sched.Yield()
			e.Delete()
		})

		h.start()

		Eventually(waiterDone).Should(BeClosed())
		Eventually(deleterDone).Should(BeClosed())
		Expect(<-result).To(MatchError(ipc.ErrTimeout))
	})
})
