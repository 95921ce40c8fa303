// Package ticktime implements the kernel's time base (spec §4.A): a
// monotonic tick counter, ms<->tick conversion, and tick-event delivery to
// whatever is registered to receive it (the scheduler, in practice).
//
// The counter and its wraparound-safe comparison are grounded on the
// teacher's VTimeInSec/Freq pair (sim/freq.go, sim/ticker.go): the same
// split between "a monotonic clock value" and "a frequency that knows how
// to convert between clock values and wall units" shows up here as Tick and
// Rate.
package ticktime

import "sync/atomic"

// Tick is the kernel's quantum of time: a 32-bit count of SYSTEM_TICK_MS
// periods since boot. It wraps at 2^32 the way a C uint32_t would; all
// deadline comparisons in this package and in the scheduler use signed
// difference arithmetic so a wrap is invisible within one wrap-period
// (spec §4.A).
type Tick uint32

// Before reports whether a happens strictly before b, tolerant of 32-bit
// wraparound. This is the "(a − b) as a signed difference" rule spec §4.A
// requires at every deadline site.
func Before(a, b Tick) bool {
	return int32(a-b) < 0
}

// AtOrBefore reports whether a happens at or before b, wraparound safe.
func AtOrBefore(a, b Tick) bool {
	return int32(a-b) <= 0
}

// Rate converts between ticks and milliseconds for a fixed tick period.
type Rate struct {
	periodMS uint32
}

// NewRate returns a Rate for the given tick period in milliseconds. Panics
// if periodMS is zero, mirroring the teacher's Freq.Period guard against a
// zero frequency (sim/freq.go).
func NewRate(periodMS uint32) Rate {
	if periodMS == 0 {
		panic("tick period must not be zero")
	}

	return Rate{periodMS: periodMS}
}

// MSToTicks converts a millisecond duration to a tick count, rounding up so
// a caller asking for "at least N ms" never gets fewer ticks than that.
func (r Rate) MSToTicks(ms uint32) Tick {
	return Tick((ms + r.periodMS - 1) / r.periodMS)
}

// TicksToMS converts a tick count to milliseconds.
func (r Rate) TicksToMS(t Tick) uint32 {
	return uint32(t) * r.periodMS
}

// PeriodMS returns the configured tick period in milliseconds.
func (r Rate) PeriodMS() uint32 {
	return r.periodMS
}

// TickHandler receives the tick() callback delivered by an external driver
// once per tick period (spec §4.A, §6's "monotonic tick source" contract).
type TickHandler interface {
	OnTick(now Tick)
}

// Base is the kernel's time base: an atomically-updated tick counter plus
// the handler it notifies on every tick() call.
type Base struct {
	rate    Rate
	now     uint32 // atomic
	handler TickHandler
}

// New creates a time base at the given tick rate. The handler is normally
// the scheduler; it may be nil during construction and wired in later via
// SetHandler, since the scheduler and the time base are constructed
// together by the kernel façade (spec §9's single Kernel value).
func New(rate Rate) *Base {
	return &Base{rate: rate}
}

// SetHandler registers the object notified on every tick.
func (b *Base) SetHandler(h TickHandler) {
	b.handler = h
}

// Rate returns the configured tick rate.
func (b *Base) Rate() Rate {
	return b.rate
}

// Now returns the current tick count. Monotonic non-decreasing, per spec
// §4.A.
func (b *Base) Now() Tick {
	return Tick(atomic.LoadUint32(&b.now))
}

// MSToTicks converts ms to ticks at this base's configured rate.
func (b *Base) MSToTicks(ms uint32) Tick {
	return b.rate.MSToTicks(ms)
}

// TicksToMS converts ticks to ms at this base's configured rate.
func (b *Base) TicksToMS(t Tick) uint32 {
	return b.rate.TicksToMS(t)
}

// Tick is the entry point an external driver calls once per tick period.
// It atomically increments the counter, then invokes the registered
// handler's OnTick — synchronously, so the handler observes a consistent
// Now() for the whole tick (spec §4.A: "tick() atomically increments the
// counter and invokes the scheduler's tick hook").
func (b *Base) Tick() {
	now := atomic.AddUint32(&b.now, 1)

	if b.handler != nil {
		b.handler.OnTick(Tick(now))
	}
}
