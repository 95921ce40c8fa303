// Package task implements the task control block and the task registry
// (spec §3, §4.C): the per-task record, its lifecycle, and the table that
// owns TCB storage.
//
// The TCB's shape is grounded on the teacher's ComponentBase pattern
// (sim/hardware/component.go): a small embeddable base (naming.NamedBase
// here) plus the extra state a concrete kind of object needs, and a
// pointer-based, non-owning relationship to whatever list it is currently
// linked into (sim/eventqueue.go's InsertionQueue is the teacher's own
// container/list-based queue; the TCB here plays the analogous role of an
// element that belongs to at most one such list at a time — spec §3
// invariant I1).
package task

import (
	"container/list"

	"rtoskernel/internal/idgen"
	"rtoskernel/internal/kctx"
	"rtoskernel/internal/naming"
	"rtoskernel/internal/ticktime"
)

// NoTimeout marks a blocked task as willing to wait forever, mirroring
// original_source's MAX_TIMEOUT sentinel (0xFFFFFFFF) rather than adding a
// separate boolean alongside DelayUntil.
const NoTimeout ticktime.Tick = ^ticktime.Tick(0)

// State is a task's scheduling state (spec §3).
type State int

// State values.
const (
	Ready State = iota
	Running
	Blocked
	Suspended
	Terminated
)

func (s State) String() string {
	switch s {
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	case Blocked:
		return "BLOCKED"
	case Suspended:
		return "SUSPENDED"
	case Terminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// BlockReason explains why a BLOCKED task is blocked (spec §3).
type BlockReason int

// BlockReason values.
const (
	BlockNone BlockReason = iota
	BlockDelay
	BlockSemaphore
	BlockQueueFull
	BlockQueueEmpty
	BlockEvent
	BlockMutex
)

func (r BlockReason) String() string {
	switch r {
	case BlockNone:
		return "NONE"
	case BlockDelay:
		return "DELAY"
	case BlockSemaphore:
		return "SEMAPHORE"
	case BlockQueueFull:
		return "QUEUE_FULL"
	case BlockQueueEmpty:
		return "QUEUE_EMPTY"
	case BlockEvent:
		return "EVENT"
	case BlockMutex:
		return "MUTEX"
	default:
		return "UNKNOWN"
	}
}

// EventOptions packs the ALL/ANY/CLEAR bits an event-group wait is
// registered with. Spec §9 explicitly forbids packing the wait predicate
// into a pointer-sized slot of block_object; WaitPredicate below keeps the
// mask and these options as ordinary struct fields instead.
type EventOptions struct {
	WaitAll bool
	Clear   bool
}

// WaitPredicate is the explicit, tagged payload a BLOCKED task carries
// alongside BlockObject, replacing the source's block_object pointer
// packing (spec §9 "Option-packing in block_object"). Only the fields
// relevant to the current BlockReason are meaningful.
type WaitPredicate struct {
	EventMask    uint32
	EventOptions EventOptions
	// PendingMsg is the message a task blocked with BlockQueueFull is
	// trying to send; the queue's rendezvous fast path (spec §4.E) reads
	// it directly out of the blocked sender instead of routing through
	// the ring buffer.
	PendingMsg interface{}
}

// Stats are the per-task runtime statistics spec §3 describes.
type Stats struct {
	TotalRuntime    ticktime.Tick
	LastStartTime   ticktime.Tick
	ActivationCount uint32
	DeadlineMisses  uint32
	MaxBurst        ticktime.Tick
}

// Periodic holds a periodic task's release/deadline configuration (spec
// §4.C task_set_periodic).
type Periodic struct {
	Enabled         bool
	Period          ticktime.Tick
	Deadline        ticktime.Tick
	NextRelease     ticktime.Tick
	AbsoluteDeadline ticktime.Tick
	// JobOutstanding tracks whether the job released at NextRelease-Period
	// has not yet been accounted for by check_deadlines/the tick handler
	// (spec §4.D tick: "deadline-miss accounting performed first if the
	// previous job was still outstanding").
	JobOutstanding bool
}

// TCB is a task control block (spec §3).
type TCB struct {
	naming.NamedBase

	Handle string // opaque, stable for the TCB's lifetime (spec §3)

	State             State
	Priority          int
	OriginalPriority  int
	TimeSlice         uint32
	TimeSliceRemaining uint32

	Context *kctx.TaskContext

	Entry func(arg interface{})
	Arg   interface{}

	BlockReason   BlockReason
	BlockObject   interface{}
	WaitPredicate WaitPredicate
	// DelayUntil is the tick at which a blocked task should be woken
	// regardless of whether the resource it is waiting on ever becomes
	// available. NoTimeout means "wait forever" (spec's MAX_TIMEOUT).
	DelayUntil ticktime.Tick
	// WokeByTimeout is set by the scheduler immediately before relinking a
	// task whose DelayUntil expired without its wait being satisfied (and
	// by the IPC Delete paths when they wake every waiter), and cleared by
	// BlockTask at the start of every wait, so a wake that satisfies the
	// wait leaves it false. The woken task's own goroutine reads it right after resuming to decide
	// whether to report a timeout — this is the "uniform self-removal"
	// spec §9 Open Question (iii) asks a re-implementation to settle on.
	WokeByTimeout bool

	Periodic Periodic

	Stats Stats

	// ownerList/listElem are non-nil iff this TCB is linked into exactly one
	// of: a priority ready queue, the blocked list, or the suspended list
	// (spec §3 invariant I1). IPC primitives keep no waiter list of their
	// own; a waiting task sits on the blocked list. Keeping the
	// owning list alongside the element lets Unlink remove the TCB without
	// its caller having to remember which list it last saw the task in.
	ownerList *list.List
	listElem  *list.Element
}

// New creates a TCB. The caller (the registry) is responsible for
// generating the handle, validating the priority range, and wiring up the
// execution context; New only assembles the value.
func New(name string, handle string, priority int, timeSlice uint32, entry func(arg interface{}), arg interface{}) *TCB {
	t := &TCB{
		Handle:             handle,
		State:              Ready,
		Priority:           priority,
		OriginalPriority:   priority,
		TimeSlice:          timeSlice,
		TimeSliceRemaining: timeSlice,
		Entry:              entry,
		Arg:                arg,
	}
	t.NamedBase = naming.MakeNamedBase(name)

	return t
}

// Linked reports whether this TCB currently sits in some list.
func (t *TCB) Linked() bool {
	return t.ownerList != nil
}

// Link appends the TCB to l, recording l as the owner so a later Unlink
// needs no help remembering which list to remove it from. Panics if the
// TCB is already linked somewhere else, since a task may only ever belong
// to one list at a time (spec §3 invariant I1).
func (t *TCB) Link(l *list.List) {
	if t.ownerList != nil {
		panic("task: Link called on a TCB already linked into a list")
	}

	t.ownerList = l
	t.listElem = l.PushBack(t)
}

// Unlink removes the TCB from whichever list it is currently linked into.
// A no-op if the TCB is not linked into anything.
func (t *TCB) Unlink() {
	if t.ownerList == nil {
		return
	}

	t.ownerList.Remove(t.listElem)
	t.ownerList = nil
	t.listElem = nil
}

// IDGenForHandles is the default handle generator new registries use
// (spec §3's "implementation-assigned opaque handle"), grounded on the
// teacher's own commented-out xid-backed generator (sim/idgenerator.go).
func IDGenForHandles() idgen.Generator {
	return idgen.NewXID()
}
