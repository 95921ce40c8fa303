package kctx_test

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"rtoskernel/internal/kctx"
)

var _ = Describe("CriticalSection", func() {
	It("nests without releasing the gate early", func() {
		cs := kctx.NewCriticalSection()

		s1 := cs.Enter()
		Expect(cs.Depth()).To(Equal(1))

		s2 := cs.Enter()
		Expect(cs.Depth()).To(Equal(2))
		Expect(bool(s2)).To(BeTrue())

		cs.Exit(s2)
		Expect(cs.Depth()).To(Equal(1))

		cs.Exit(s1)
		Expect(cs.Depth()).To(Equal(0))
	})

	It("panics on an unmatched exit", func() {
		cs := kctx.NewCriticalSection()
		Expect(func() { cs.Exit(kctx.State(false)) }).To(Panic())
	})

	It("fences a concurrent entrant until the holder exits", func() {
		cs := kctx.NewCriticalSection()
		var order []string
		var mu sync.Mutex

		prev := cs.Enter()

		var wg sync.WaitGroup
		wg.Add(1)

		go func() {
			defer wg.Done()

			p := cs.Enter()
			mu.Lock()
			order = append(order, "second")
			mu.Unlock()
			cs.Exit(p)
		}()

		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		order = append(order, "first")
		mu.Unlock()

		cs.Exit(prev)
		wg.Wait()

		Expect(order).To(Equal([]string{"first", "second"}))
	})
})
