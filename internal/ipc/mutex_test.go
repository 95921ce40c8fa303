package ipc_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"rtoskernel/internal/ipc"
	"rtoskernel/internal/klog"
	"rtoskernel/internal/scheduler"
	"rtoskernel/internal/task"
)

var _ = Describe("Mutex", func() {
	It("refuses a second lock by the same owner (non-recursive)", func() {
		h := newHarness(scheduler.PolicyPriority)
		m := ipc.NewMutex(h.cs, h.sched, klog.NewNop(), "m")

		result := make(chan error, 3)
		_, done := h.spawn("owner", 0, func(t *task.TCB) {
			result <- m.Lock(t, task.NoTimeout, 0)
			result <- m.Lock(t, task.NoTimeout, 0)
			result <- m.Unlock(t)
		})

		h.start()

		Eventually(done).Should(BeClosed())
		Expect(<-result).NotTo(HaveOccurred())
		Expect(<-result).To(MatchError(ipc.ErrAlreadyOwner))
		Expect(<-result).NotTo(HaveOccurred())
	})

	It("boosts the owner's priority while a higher-priority task waits, and restores it on unlock", func() {
		h := newHarness(scheduler.PolicyPriority)
		m := ipc.NewMutex(h.cs, h.sched, klog.NewNop(), "m")

		observedBoost := make(chan int, 1)
		waiterResult := make(chan error, 1)

		// owner locks first, while it is the only non-idle ready task, then
		// brings the higher-priority waiter into existence itself — under
		// strict PRIORITY scheduling a pri-0 waiter created up front would
		// always win the very first selection and lock an uncontended mutex
		// before owner ever ran.
		_, ownerDone := h.spawn("owner", 3, func(t *task.TCB) {
			Expect(m.Lock(t, task.NoTimeout, 0)).To(Succeed())

			h.spawn("waiter", 0, func(wt *task.TCB) {
				waiterResult <- m.Lock(wt, task.NoTimeout, 0)
				Expect(m.Unlock(wt)).To(Succeed())
			})

			h.sched.Yield()
			observedBoost <- t.Priority
			Expect(m.Unlock(t)).To(Succeed())
		})

		h.start()

		Eventually(ownerDone).Should(BeClosed())

		Expect(<-observedBoost).To(Equal(0))
		Expect(<-waiterResult).NotTo(HaveOccurred())
	})

	It("rejects Unlock from a task that does not own the mutex", func() {
		h := newHarness(scheduler.PolicyPriority)
		m := ipc.NewMutex(h.cs, h.sched, klog.NewNop(), "m")

		result := make(chan error, 1)
		_, done := h.spawn("bystander", 0, func(t *task.TCB) {
			result <- m.Unlock(t)
		})

		h.start()

		Eventually(done).Should(BeClosed())
		Expect(<-result).To(MatchError(ipc.ErrNotOwner))
	})

	It("reports IsLocked accurately across lock/unlock", func() {
		h := newHarness(scheduler.PolicyPriority)
		m := ipc.NewMutex(h.cs, h.sched, klog.NewNop(), "m")
		Expect(m.IsLocked()).To(BeFalse())

		locked := make(chan bool, 1)
		unlocked := make(chan bool, 1)
		_, done := h.spawn("owner", 0, func(t *task.TCB) {
			Expect(m.Lock(t, task.NoTimeout, 0)).To(Succeed())
			locked <- m.IsLocked()
			Expect(m.Unlock(t)).To(Succeed())
			unlocked <- m.IsLocked()
		})

		h.start()

		Eventually(done).Should(BeClosed())
		Expect(<-locked).To(BeTrue())
		Expect(<-unlocked).To(BeFalse())
	})

	It("wakes a waiter with a timeout error and restores the owner's priority when deleted", func() {
		h := newHarness(scheduler.PolicyPriority)
		m := ipc.NewMutex(h.cs, h.sched, klog.NewNop(), "m")

		waiterResult := make(chan error, 1)
		ownerPriorityAtDelete := make(chan int, 1)

		// Same ordering concern as the boost test above: owner must lock
		// before the higher-priority waiter exists, and the deleter must be
		// brought in after the waiter has actually blocked (and boosted
		// owner), so it is spawned from inside owner's own body too.
		_, ownerDone := h.spawn("owner", 3, func(t *task.TCB) {
			Expect(m.Lock(t, task.NoTimeout, 0)).To(Succeed())

			h.spawn("waiter", 0, func(wt *task.TCB) {
				waiterResult <- m.Lock(wt, task.NoTimeout, 0)
			})

			h.sched.Yield()

			h.spawn("deleter", 1, func(dt *task.TCB) {
				m.Delete()
			})

			h.sched.Yield()
			ownerPriorityAtDelete <- t.Priority
		})

		h.start()

		Eventually(ownerDone).Should(BeClosed())

		Expect(<-waiterResult).To(MatchError(ipc.ErrTimeout))
		Expect(<-ownerPriorityAtDelete).To(Equal(3))
	})
})
