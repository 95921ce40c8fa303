package kctx_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"rtoskernel/internal/kctx"
)

var _ = Describe("TaskContext switching", func() {
	It("round-trips control between two contexts and runs the trampoline on return", func() {
		var trace []string
		done := make(chan struct{})

		a := kctx.NewTaskContext()
		b := kctx.NewTaskContext()

		kctx.Spawn(a, func(arg interface{}) {
			trace = append(trace, "a-start")
			kctx.Switch(a, b)
			trace = append(trace, "a-resumed")
		}, nil, func() {
			trace = append(trace, "a-return")
			close(done)
		})

		kctx.Spawn(b, func(arg interface{}) {
			trace = append(trace, "b-start")
			kctx.Finish(a)
		}, nil, func() {})

		kctx.StartFirst(a)
		<-done

		Expect(trace).To(Equal([]string{"a-start", "b-start", "a-resumed", "a-return"}))
	})
})
