package kernel

import (
	"io"

	"github.com/syifan/goseth"

	"rtoskernel/internal/scheduler"
	"rtoskernel/internal/task"
	"rtoskernel/internal/ticktime"
)

// TaskSnapshot is a point-in-time, serialization-friendly view of one task,
// flattening the fields webstatus's dashboard and cmd/rtoskernel's stats
// subcommand both want to render (spec §3's per-task state plus §4.C's
// stats block).
type TaskSnapshot struct {
	Name             string       `json:"name"`
	Handle           string       `json:"handle"`
	State            string       `json:"state"`
	Priority         int          `json:"priority"`
	OriginalPriority int          `json:"original_priority"`
	BlockReason      string       `json:"block_reason,omitempty"`
	TotalRuntime     ticktime.Tick `json:"total_runtime"`
	MaxBurst         ticktime.Tick `json:"max_burst"`
	ActivationCount  uint32       `json:"activation_count"`
	DeadlineMisses   uint32       `json:"deadline_misses"`
	Periodic         bool         `json:"periodic"`
	Period           ticktime.Tick `json:"period,omitempty"`
	NextRelease      ticktime.Tick `json:"next_release,omitempty"`
}

// Snapshot is the whole-kernel view goseth serializes for the web dashboard
// (webstatus); the CLI (`cmd/rtoskernel stats`) prints its fields as a
// table without going through goseth. Grounded on the
// teacher's own "serialize the thing the caller asked to see" shape in
// monitoring/monitor.go's listComponentDetails handler.
type Snapshot struct {
	Now            ticktime.Tick    `json:"now"`
	Policy         string           `json:"policy"`
	SchedulerState string           `json:"scheduler_state"`
	Stats          scheduler.Stats  `json:"scheduler_stats"`
	CPULoad        float64          `json:"cpu_load"`
	Tasks          []TaskSnapshot   `json:"tasks"`
}

func snapshotTask(t *task.TCB) TaskSnapshot {
	s := TaskSnapshot{
		Name:             t.Name(),
		Handle:           t.Handle,
		State:            t.State.String(),
		Priority:         t.Priority,
		OriginalPriority: t.OriginalPriority,
		TotalRuntime:     t.Stats.TotalRuntime,
		MaxBurst:         t.Stats.MaxBurst,
		ActivationCount:  t.Stats.ActivationCount,
		DeadlineMisses:   t.Stats.DeadlineMisses,
		Periodic:         t.Periodic.Enabled,
	}

	if t.State == task.Blocked {
		s.BlockReason = t.BlockReason.String()
	}

	if t.Periodic.Enabled {
		s.Period = t.Periodic.Period
		s.NextRelease = t.Periodic.NextRelease
	}

	return s
}

// Snapshot assembles a Snapshot of the whole kernel's current state.
func (k *Kernel) Snapshot() Snapshot {
	all := k.registry.All()
	tasks := make([]TaskSnapshot, 0, len(all))
	for _, t := range all {
		tasks = append(tasks, snapshotTask(t))
	}

	stats := k.sched.Stats()

	return Snapshot{
		Now:            k.tickBase.Now(),
		Policy:         k.sched.Policy().String(),
		SchedulerState: schedulerStateString(k.sched.State()),
		Stats:          stats,
		CPULoad:        stats.CPULoad(),
		Tasks:          tasks,
	}
}

func schedulerStateString(s scheduler.RunState) string {
	if s == scheduler.Running {
		return "RUNNING"
	}

	return "STOPPED"
}

// WriteSnapshot serializes a Snapshot of the kernel's current state to w,
// using goseth the same way monitoring/monitor.go serializes a component:
// SetRoot the value to be inspected, cap the walk depth, and let the
// serializer handle field discovery rather than hand-writing JSON.
func (k *Kernel) WriteSnapshot(w io.Writer) error {
	snap := k.Snapshot()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&snap)
	serializer.SetMaxDepth(3)

	return serializer.Serialize(w)
}
