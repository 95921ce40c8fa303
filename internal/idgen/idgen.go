// Package idgen generates the opaque handles the kernel hands out for TCBs
// and IPC objects (spec §3: "an implementation-assigned opaque handle stable
// for the TCB's lifetime"). A Go pointer already satisfies that contract for
// in-process use, but an explicit generator is kept so any kernel-external
// consumer (the web dashboard, the sqlite trace sink) gets a stable string
// key that survives beyond the lifetime of the Go value it was minted for.
package idgen

import (
	"strconv"
	"sync/atomic"

	"github.com/rs/xid"
)

// Generator mints opaque handle strings.
type Generator interface {
	Generate() string
}

// NewSequential returns a Generator that produces small, monotonically
// increasing decimal IDs. Deterministic; task.NewRegistry does not use it
// (registries mint handles with NewXID).
func NewSequential() Generator {
	return &sequentialGenerator{}
}

type sequentialGenerator struct {
	next uint64
}

func (g *sequentialGenerator) Generate() string {
	n := atomic.AddUint64(&g.next, 1)

	return strconv.FormatUint(n, 10)
}

// NewXID returns a Generator backed by github.com/rs/xid. IDs are globally
// unique and safe to mint concurrently without a shared counter, which
// matters once the kernel's trace sink or web dashboard runs in its own
// goroutine alongside the scheduler's turnstile.
func NewXID() Generator {
	return &xidGenerator{}
}

type xidGenerator struct{}

func (xidGenerator) Generate() string {
	return xid.New().String()
}
