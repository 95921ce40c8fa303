// Package kernel assembles the time base, critical section, task registry,
// and scheduler into the single process-wide value spec §9's "Global
// mutable state" section asks for: "[t]he registry table, idle task,
// ready/blocked/suspended lists, and IPC pools are process-wide state. They
// should be encapsulated in a single Kernel value constructed at init and
// torn down at shutdown, with all entry points operating through it."
//
// Kernel itself holds no scheduling logic — it sequences calls into
// internal/task, internal/scheduler, and internal/ipc (New constructs the
// critical section, task registry, time base and scheduler, in that order),
// and is the one place that knows the layering between those packages well
// enough to wire them together.
package kernel

import (
	"errors"
	"fmt"

	"rtoskernel/internal/ipc"
	"rtoskernel/internal/kctx"
	"rtoskernel/internal/klog"
	"rtoskernel/internal/scheduler"
	"rtoskernel/internal/task"
	"rtoskernel/internal/ticktime"
)

// Sentinel errors the façade adds on top of the ones its collaborator
// packages already define (spec §7).
var (
	ErrInvalidArgument = errors.New("kernel: invalid argument")
	ErrProtocol        = errors.New("kernel: protocol violation")
	ErrCapacity        = errors.New("kernel: at capacity")
)

// Config collects the tunable constants spec §6's table lists, plus the
// SPEC_FULL supplement (DebugLevel, from original_source's DEBUG_LEVEL).
type Config struct {
	MaxTasks      int
	PMax          int
	MaxSyncObjects int // caps semaphores + mutexes + event groups combined (original's MAX_SEMAPHORES)
	MaxQueues     int
	TickPeriodMS  uint32
	DefaultTimeSlice uint32
	Policy        scheduler.Policy
	DebugLevel    klog.Level
}

// DefaultConfig returns the spec §6 defaults, with DebugLevel set to
// LevelInfo (original_source's DEBUG_LEVEL default of 2, INFO, per
// include/utils/logger.h's level numbering).
func DefaultConfig() Config {
	return Config{
		MaxTasks:         32,
		PMax:             16,
		MaxSyncObjects:   16,
		MaxQueues:        16,
		TickPeriodMS:     10,
		DefaultTimeSlice: 10,
		Policy:           scheduler.PolicyPriority,
		DebugLevel:       klog.LevelInfo,
	}
}

// Kernel is the single façade value spec §9 asks a re-implementation to
// build all entry points around.
type Kernel struct {
	cfg Config

	cs       *kctx.CriticalSection
	registry *task.Registry
	tickBase *ticktime.Base
	sched    *scheduler.Scheduler
	logger   klog.Logger

	idle *task.TCB

	syncObjectCount int
	queueCount      int
}

// New constructs a Kernel: time base, critical section, task registry, and
// scheduler, then creates and schedules the idle task (spec §4.C: "an
// implementation-created task at priority P_MAX−1 whose entry loops forever
// yielding"). The kernel is not running yet — call Start once any
// additional tasks have been created.
func New(cfg Config, logger klog.Logger) (*Kernel, error) {
	if cfg.PMax <= 0 {
		return nil, fmt.Errorf("%w: PMax must be positive, got %d", ErrInvalidArgument, cfg.PMax)
	}

	if cfg.MaxTasks <= 0 {
		return nil, fmt.Errorf("%w: MaxTasks must be positive, got %d", ErrInvalidArgument, cfg.MaxTasks)
	}

	if logger == nil {
		logger = klog.New(cfg.DebugLevel)
	}

	cs := kctx.NewCriticalSection()
	registry := task.NewRegistry(cfg.MaxTasks, cfg.PMax)
	tickBase := ticktime.New(ticktime.NewRate(cfg.TickPeriodMS))
	sched := scheduler.New(cs, registry, tickBase, cfg.PMax, cfg.Policy, logger)

	k := &Kernel{
		cfg:      cfg,
		cs:       cs,
		registry: registry,
		tickBase: tickBase,
		sched:    sched,
		logger:   logger,
	}

	idle, err := registry.CreateIdle(cfg.PMax-1, func(interface{}) {
		for {
			k.sched.Yield()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("kernel: failed to create idle task: %w", err)
	}

	if err := sched.AddTask(idle); err != nil {
		return nil, fmt.Errorf("kernel: failed to schedule idle task: %w", err)
	}

	kctx.Spawn(idle.Context, idle.Entry, idle.Arg, func() {
		sched.Terminate(idle)
	})

	k.idle = idle

	return k, nil
}

// Scheduler exposes the underlying scheduler, for collaborators (webstatus,
// tracesink) that need to register hooks (scheduler.HookPos*) or read Stats
// directly rather than through Snapshot.
func (k *Kernel) Scheduler() *scheduler.Scheduler {
	return k.sched
}

// Registry exposes the underlying task registry, for task_get_by_name-style
// lookups from outside the core.
func (k *Kernel) Registry() *task.Registry {
	return k.registry
}

// TickBase exposes the time base, so an external driver (cmd/rtoskernel's
// run loop) can call Tick() at the configured period.
func (k *Kernel) TickBase() *ticktime.Base {
	return k.tickBase
}

// Logger returns the kernel's logger collaborator.
func (k *Kernel) Logger() klog.Logger {
	return k.logger
}

// Start begins scheduling (spec §4.D scheduler_start). Must be called
// exactly once, after every task that should be READY at boot has been
// created with CreateTask.
func (k *Kernel) Start() error {
	return k.sched.Start()
}

// Tick delivers one tick() call to the time base (spec §4.A), which in turn
// drives the scheduler's periodic-release/delay-expiry/deadline-accounting
// pass and, on round-robin slice expiry, a context switch.
func (k *Kernel) Tick() {
	k.tickBase.Tick()
}

// CreateTask implements task_create (spec §4.C): allocates a TCB, spawns
// its goroutine, and adds it to the scheduler's ready queue. entry receives
// arg when the task first runs.
func (k *Kernel) CreateTask(name string, priority int, entry func(arg interface{}), arg interface{}) (*task.TCB, error) {
	return k.createTask(name, priority, k.cfg.DefaultTimeSlice, entry, arg)
}

// CreateTaskWithTimeSlice is CreateTask with an explicit round-robin time
// slice in ticks, for callers that want a slice other than
// Config.DefaultTimeSlice (0 disables round-robin eviction for this task
// regardless of policy).
func (k *Kernel) CreateTaskWithTimeSlice(name string, priority int, timeSlice uint32, entry func(arg interface{}), arg interface{}) (*task.TCB, error) {
	return k.createTask(name, priority, timeSlice, entry, arg)
}

func (k *Kernel) createTask(name string, priority int, timeSlice uint32, entry func(arg interface{}), arg interface{}) (*task.TCB, error) {
	t, err := k.registry.Create(name, priority, timeSlice, entry, arg)
	if err != nil {
		return nil, err
	}

	if err := k.sched.AddTask(t); err != nil {
		return nil, err
	}

	kctx.Spawn(t.Context, t.Entry, t.Arg, func() {
		k.sched.Terminate(t)
	})

	return t, nil
}

// DeleteTask implements task_delete (spec §4.C): refuses to delete the
// current or idle task, removes the TCB from whatever scheduler list it
// sits in, and drops it from the registry.
func (k *Kernel) DeleteTask(t *task.TCB) error {
	if t == k.registry.Current() {
		return fmt.Errorf("%w: cannot delete the current task", ErrProtocol)
	}

	if err := k.registry.Delete(t); err != nil {
		return err
	}

	k.sched.RemoveTask(t)

	return nil
}

// CurrentTask implements task_get_current (spec §4.C). Returns nil before
// Start.
func (k *Kernel) CurrentTask() *task.TCB {
	return k.registry.Current()
}

// TaskByName implements task_get_by_name (spec §4.C).
func (k *Kernel) TaskByName(name string) *task.TCB {
	return k.registry.ByName(name)
}

// SetPriority implements task_set_priority (spec §4.C): updates both the
// task's current and original priority, expressing caller intent rather
// than an inheritance boost, and re-queues it with the scheduler.
func (k *Kernel) SetPriority(t *task.TCB, priority int) error {
	if priority < 0 || priority >= k.cfg.PMax {
		return fmt.Errorf("%w: priority %d out of [0,%d)", ErrInvalidArgument, priority, k.cfg.PMax)
	}

	t.OriginalPriority = priority
	k.sched.SetPriority(t, priority)

	return nil
}

// Priority implements task_get_priority.
func (k *Kernel) Priority(t *task.TCB) int {
	return t.Priority
}

// Suspend implements task_suspend (spec §4.C): refuses to suspend the idle
// task; suspending the current task additionally yields.
func (k *Kernel) Suspend(t *task.TCB) error {
	if t == k.idle {
		return fmt.Errorf("%w: cannot suspend the idle task", ErrProtocol)
	}

	wasCurrent := t == k.registry.Current()

	k.sched.UpdateTaskState(t, task.Suspended)

	if wasCurrent {
		k.sched.ContextSwitch()
	}

	return nil
}

// Resume implements task_resume (spec §4.C): a no-op, logged as a warning,
// if t is not currently SUSPENDED.
func (k *Kernel) Resume(t *task.TCB) {
	if t.State != task.Suspended {
		k.logger.Warnf("task %s: resume called on a task that is not suspended (state %s)", t.Name(), t.State)

		return
	}

	k.sched.UpdateTaskState(t, task.Ready)
}

// Yield implements task_yield (spec §4.D).
func (k *Kernel) Yield() {
	k.sched.Yield()
}

// Delay implements task_delay (spec §4.C): task_delay(0) is equivalent to
// Yield; otherwise the calling task blocks with reason DELAY until
// ticks have elapsed.
func (k *Kernel) Delay(t *task.TCB, ticks ticktime.Tick) {
	if ticks == 0 {
		k.sched.Yield()

		return
	}

	now := k.tickBase.Now()
	k.sched.BlockTask(t, task.BlockDelay, nil, task.WaitPredicate{}, now+ticks)
	k.sched.ContextSwitch()
}

// DelayUntil implements task_delay_until (spec §4.C): equivalent to Yield
// if until has already passed.
func (k *Kernel) DelayUntil(t *task.TCB, until ticktime.Tick) {
	now := k.tickBase.Now()
	if ticktime.AtOrBefore(until, now) {
		k.sched.Yield()

		return
	}

	k.sched.BlockTask(t, task.BlockDelay, nil, task.WaitPredicate{}, until)
	k.sched.ContextSwitch()
}

// SetPeriodic implements task_set_periodic (spec §4.C): period == 0 is
// invalid; deadline == 0 means the relative deadline equals the period.
func (k *Kernel) SetPeriodic(t *task.TCB, period, deadline ticktime.Tick) error {
	if period == 0 {
		return fmt.Errorf("%w: period must be nonzero", ErrInvalidArgument)
	}

	if deadline == 0 {
		deadline = period
	}

	now := k.tickBase.Now()

	t.Periodic.Enabled = true
	t.Periodic.Period = period
	t.Periodic.Deadline = deadline
	t.Periodic.NextRelease = now + period
	t.Periodic.AbsoluteDeadline = t.Periodic.NextRelease + deadline
	t.Periodic.JobOutstanding = false

	return nil
}

// CompleteJob signals that t's current periodic job has finished, clearing
// the outstanding-job flag checkDeadlines uses to detect a miss.
func (k *Kernel) CompleteJob(t *task.TCB) {
	k.sched.CompleteJob(t)
}

// Stats implements task_get_stats (spec §4.C).
func (k *Kernel) Stats(t *task.TCB) task.Stats {
	return t.Stats
}

// ResetStats implements task_reset_stats (spec §4.C).
func (k *Kernel) ResetStats(t *task.TCB) {
	t.Stats = task.Stats{}
}

// SchedulerStats returns the scheduler's own counters (spec §4.D).
func (k *Kernel) SchedulerStats() scheduler.Stats {
	return k.sched.Stats()
}

// SetPolicy changes the active scheduling policy.
func (k *Kernel) SetPolicy(p scheduler.Policy) {
	k.sched.SetPolicy(p)
}

func (k *Kernel) checkSyncObjectCapacity() error {
	if k.syncObjectCount >= k.cfg.MaxSyncObjects {
		return fmt.Errorf("%w: sync object pool (semaphores+mutexes+event groups) exhausted", ErrCapacity)
	}

	k.syncObjectCount++

	return nil
}

// CreateSemaphore implements semaphore_create (spec §4.E), enforcing the
// combined semaphore/mutex/event-group pool capacity original_source's
// MAX_SEMAPHORES applies to all three.
func (k *Kernel) CreateSemaphore(name string, initial, max int) (*ipc.Semaphore, error) {
	if err := k.checkSyncObjectCapacity(); err != nil {
		return nil, err
	}

	return ipc.NewSemaphore(k.cs, k.sched, k.logger, name, initial, max)
}

// CreateMutex implements mutex_create (spec §4.E).
func (k *Kernel) CreateMutex(name string) (*ipc.Mutex, error) {
	if err := k.checkSyncObjectCapacity(); err != nil {
		return nil, err
	}

	return ipc.NewMutex(k.cs, k.sched, k.logger, name), nil
}

// CreateEventGroup implements event_group_create (spec §4.E).
func (k *Kernel) CreateEventGroup(name string) (*ipc.EventGroup, error) {
	if err := k.checkSyncObjectCapacity(); err != nil {
		return nil, err
	}

	return ipc.NewEventGroup(k.cs, k.sched, k.logger, name), nil
}

// CreateQueue implements queue_create (spec §4.E), enforcing
// original_source's MAX_QUEUES pool limit independently of the
// semaphore/mutex/event-group pool.
func (k *Kernel) CreateQueue(name string, capacity int) (*ipc.Queue, error) {
	if k.queueCount >= k.cfg.MaxQueues {
		return nil, fmt.Errorf("%w: queue pool exhausted", ErrCapacity)
	}

	q, err := ipc.NewQueue(k.cs, k.sched, k.logger, name, capacity)
	if err != nil {
		return nil, err
	}

	k.queueCount++

	return q, nil
}
