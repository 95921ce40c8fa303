package task

import (
	"errors"
	"fmt"
	"sync"

	"rtoskernel/internal/idgen"
	"rtoskernel/internal/kctx"
	"rtoskernel/internal/naming"
)

// Sentinel errors for the registry's error kinds (spec §7 kinds 1-3).
var (
	ErrInvalidArgument = errors.New("task: invalid argument")
	ErrCapacity        = errors.New("task: registry at capacity")
	ErrNotFound        = errors.New("task: not found")
	ErrProtocol        = errors.New("task: protocol violation")
)

// Registry is the task control block table (spec §4.C): it owns TCB
// storage and the handle-to-TCB mapping, and enforces the lifecycle rules
// that do not require scheduler cooperation. Scheduler-affecting
// consequences of these operations (queue membership, context switches)
// are the caller's responsibility — see kernel.Kernel, which sequences
// Registry calls with scheduler.Scheduler calls the way spec §9's "single
// Kernel value" describes.
type Registry struct {
	mu       sync.Mutex
	maxTasks int
	pMax     int
	byHandle map[string]*TCB
	byName   map[string]*TCB
	idGen    idgen.Generator

	idle    *TCB
	current *TCB
}

// NewRegistry creates an empty registry with the given capacity and
// priority-level count (spec §6 MAX_TASKS, P_MAX).
func NewRegistry(maxTasks, pMax int) *Registry {
	return &Registry{
		maxTasks: maxTasks,
		pMax:     pMax,
		byHandle: make(map[string]*TCB),
		byName:   make(map[string]*TCB),
		idGen:    idgen.NewXID(),
	}
}

// Len returns the number of live (non-deleted) TCBs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.byHandle)
}

// Create allocates a TCB. It fails with ErrCapacity if the registry is
// full, and ErrInvalidArgument if priority is out of [0, P_MAX) or name is
// empty (spec §4.C task_create contract). It does not start the task's
// goroutine or add it to any scheduler list — callers do that via
// kctx.Spawn and scheduler.Scheduler.AddTask once Create returns.
func (r *Registry) Create(
	name string,
	priority int,
	timeSlice uint32,
	entry func(arg interface{}),
	arg interface{},
) (*TCB, error) {
	if entry == nil {
		return nil, fmt.Errorf("%w: entry function must not be nil", ErrInvalidArgument)
	}

	if priority < 0 || priority >= r.pMax {
		return nil, fmt.Errorf("%w: priority %d out of [0,%d)", ErrInvalidArgument, priority, r.pMax)
	}

	name = naming.Truncate(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name must not be empty", ErrInvalidArgument)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.byHandle) >= r.maxTasks {
		return nil, ErrCapacity
	}

	if _, exists := r.byName[name]; exists {
		return nil, fmt.Errorf("%w: name %q already in use", ErrInvalidArgument, name)
	}

	handle := r.idGen.Generate()
	t := New(name, handle, priority, timeSlice, entry, arg)
	t.Context = kctx.NewTaskContext()

	r.byHandle[handle] = t
	r.byName[name] = t

	return t, nil
}

// CreateIdle registers the implementation-created idle task (spec §4.C).
// It goes through Create, so it occupies one MAX_TASKS slot like any other
// task, and it exists for the whole kernel lifetime (spec invariant I2).
func (r *Registry) CreateIdle(priority int, entry func(arg interface{})) (*TCB, error) {
	r.mu.Lock()
	if r.idle != nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: idle task already created", ErrProtocol)
	}
	r.mu.Unlock()

	t, err := r.Create("idle", priority, 0, entry, nil)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.idle = t
	r.mu.Unlock()

	return t, nil
}

// Idle returns the idle task.
func (r *Registry) Idle() *TCB {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.idle
}

// Current returns the task the registry believes is RUNNING, or nil
// before the scheduler has started.
func (r *Registry) Current() *TCB {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.current
}

// SetCurrent records which task is RUNNING. Called exclusively by the
// scheduler's context_switch (spec §4.D).
func (r *Registry) SetCurrent(t *TCB) {
	r.mu.Lock()
	r.current = t
	r.mu.Unlock()
}

// Delete removes a TCB from the registry. Refuses to delete the RUNNING
// task or the idle task (spec §4.C task_delete contract); "RUNNING" here
// means the task last recorded by SetCurrent, since Registry doesn't track
// scheduler-level RUNNING beyond the Current() pointer it's told about.
func (r *Registry) Delete(t *TCB) error {
	if t == nil {
		return fmt.Errorf("%w: nil task", ErrInvalidArgument)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if t == r.idle {
		return fmt.Errorf("%w: cannot delete the idle task", ErrProtocol)
	}

	if t == r.current {
		return fmt.Errorf("%w: cannot delete the current task", ErrProtocol)
	}

	if _, ok := r.byHandle[t.Handle]; !ok {
		return ErrNotFound
	}

	delete(r.byHandle, t.Handle)
	delete(r.byName, t.Name())

	return nil
}

// ByName looks up a task by name (spec §4.C task_get_by_name).
func (r *Registry) ByName(name string) *TCB {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.byName[name]
}

// ByHandle looks up a task by its opaque handle.
func (r *Registry) ByHandle(handle string) *TCB {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.byHandle[handle]
}

// All returns every live TCB including the idle task, in an unspecified
// order. This is the "iterator over the registry" spec §9 Open Question
// (ii) says a re-implementation must expose deliberately, since the tick
// handler needs to scan periodic tasks across the whole registry, not
// just whatever list they currently sit in.
func (r *Registry) All() []*TCB {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*TCB, 0, len(r.byHandle))
	for _, t := range r.byHandle {
		out = append(out, t)
	}

	return out
}
