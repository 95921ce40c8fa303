package ipc_test

import (
	. "github.com/onsi/gomega"

	"rtoskernel/internal/kctx"
	"rtoskernel/internal/klog"
	"rtoskernel/internal/scheduler"
	"rtoskernel/internal/task"
	"rtoskernel/internal/ticktime"
)

const testPMax = 4

// harness bundles the kernel collaborators an IPC primitive needs, built
// fresh per test the way scheduler_test's newHarness is.
type harness struct {
	cs    *kctx.CriticalSection
	reg   *task.Registry
	base  *ticktime.Base
	sched *scheduler.Scheduler
	idle  *task.TCB
}

func newHarness(policy scheduler.Policy) *harness {
	cs := kctx.NewCriticalSection()
	reg := task.NewRegistry(32, testPMax)
	base := ticktime.New(ticktime.NewRate(10))
	sched := scheduler.New(cs, reg, base, testPMax, policy, klog.NewNop())

	idle, err := reg.CreateIdle(testPMax-1, func(arg interface{}) {})
	Expect(err).NotTo(HaveOccurred())
	Expect(sched.AddTask(idle)).To(Succeed())

	return &harness{cs: cs, reg: reg, base: base, sched: sched, idle: idle}
}

// spawn creates and links a task at the given priority, then starts its
// goroutine running body; on return the task terminates and done closes.
// The task's own goroutine is what every IPC call in body executes on,
// matching the "caller is the blocked task's own flow" contract the
// scheduler and IPC primitives both assume.
func (h *harness) spawn(name string, priority int, body func(t *task.TCB)) (*task.TCB, <-chan struct{}) {
	t, err := h.reg.Create(name, priority, 5, func(arg interface{}) {}, nil)
	Expect(err).NotTo(HaveOccurred())
	Expect(h.sched.AddTask(t)).To(Succeed())

	done := make(chan struct{})

	kctx.Spawn(t.Context, func(arg interface{}) {
		body(t)
	}, nil, func() {
		h.sched.Terminate(t)
		close(done)
	})

	return t, done
}

// start spawns a bounded idle loop and boots the scheduler. Call once all
// other tasks have been spawned via spawn.
func (h *harness) start() {
	kctx.Spawn(h.idle.Context, func(arg interface{}) {
		for i := 0; i < 100; i++ {
			h.sched.Yield()
		}
	}, nil, func() {})

	Expect(h.sched.Start()).To(Succeed())
}
