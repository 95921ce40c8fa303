// Package tracesink persists an external trace of scheduler events —
// periodic releases, deadline misses, and task terminations — to a SQLite
// database for offline inspection. It is grounded on the teacher's
// tracing.SQLiteTraceWriter (tracing/sqlite.go): a batched writer over
// github.com/mattn/go-sqlite3, flushed on process exit via
// github.com/tebeka/atexit, with row IDs minted by github.com/rs/xid.
//
// This is a trace of what happened, not a save/restore mechanism for
// Kernel state — the kernel runs identically whether or not a Writer is
// registered (spec's Non-goal on kernel-state persistence, see
// SPEC_FULL.md).
package tracesink

import (
	"database/sql"
	"fmt"

	// Registers the "sqlite3" database/sql driver.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"rtoskernel/internal/hooking"
	"rtoskernel/internal/klog"
	"rtoskernel/internal/scheduler"
	"rtoskernel/internal/task"
)

// Event is one row the Writer buffers before a flush: a periodic release,
// a deadline miss, or a task termination, tagged by Kind.
type Event struct {
	ID       string
	Kind     string
	TaskName string
	Tick     int64
	Detail   string
}

const (
	// KindPeriodicRelease tags a scheduler.HookPosPeriodicRelease event.
	KindPeriodicRelease = "periodic_release"
	// KindDeadlineMiss tags a scheduler.HookPosDeadlineMiss event.
	KindDeadlineMiss = "deadline_miss"
	// KindTaskTerminated tags a scheduler.HookPosTaskTerminated event.
	KindTaskTerminated = "task_terminated"
)

// Writer batches Events and flushes them to a SQLite database, the same
// buffer-then-batch-insert shape as tracing.SQLiteTraceWriter.Write/Flush.
type Writer struct {
	db        *sql.DB
	statement *sql.Stmt
	logger    klog.Logger

	buffered  []Event
	batchSize int
}

// NewWriter opens (creating if absent) a SQLite database at path and
// prepares its trace table. It registers an atexit hook that flushes any
// buffered events on process exit, exactly as
// tracing.NewSQLiteTraceWriter does.
func NewWriter(path string, logger klog.Logger) (*Writer, error) {
	if logger == nil {
		logger = klog.NewNop()
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("tracesink: open %s: %w", path, err)
	}

	w := &Writer{db: db, logger: logger, batchSize: 500}

	if err := w.createTable(); err != nil {
		_ = db.Close()

		return nil, err
	}

	if err := w.prepareStatement(); err != nil {
		_ = db.Close()

		return nil, err
	}

	atexit.Register(func() { w.Flush() })

	return w, nil
}

func (w *Writer) createTable() error {
	_, err := w.db.Exec(`
		CREATE TABLE IF NOT EXISTS trace (
			event_id  VARCHAR(200) NOT NULL,
			kind      VARCHAR(32)  NOT NULL,
			task_name VARCHAR(64)  NOT NULL,
			tick      INTEGER      NOT NULL,
			detail    TEXT
		);
	`)
	if err != nil {
		return fmt.Errorf("tracesink: create table: %w", err)
	}

	_, err = w.db.Exec(`CREATE INDEX IF NOT EXISTS trace_kind_index ON trace (kind);`)
	if err != nil {
		return fmt.Errorf("tracesink: create index: %w", err)
	}

	return nil
}

func (w *Writer) prepareStatement() error {
	stmt, err := w.db.Prepare(
		`INSERT INTO trace (event_id, kind, task_name, tick, detail) VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("tracesink: prepare insert: %w", err)
	}

	w.statement = stmt

	return nil
}

// Write buffers ev, flushing automatically once the batch fills.
func (w *Writer) Write(ev Event) {
	if ev.ID == "" {
		ev.ID = xid.New().String()
	}

	w.buffered = append(w.buffered, ev)
	if len(w.buffered) >= w.batchSize {
		w.Flush()
	}
}

// Flush writes every buffered event to the database in one transaction.
func (w *Writer) Flush() {
	if len(w.buffered) == 0 {
		return
	}

	tx, err := w.db.Begin()
	if err != nil {
		w.logger.Errorf("tracesink: begin transaction: %v", err)

		return
	}

	stmt := tx.Stmt(w.statement)
	for _, ev := range w.buffered {
		if _, err := stmt.Exec(ev.ID, ev.Kind, ev.TaskName, ev.Tick, ev.Detail); err != nil {
			w.logger.Errorf("tracesink: insert event %s: %v", ev.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		w.logger.Errorf("tracesink: commit transaction: %v", err)
	}

	w.buffered = nil
}

// Close flushes any remaining events and closes the database connection.
func (w *Writer) Close() error {
	w.Flush()

	return w.db.Close()
}

// RegisterHooks attaches w to sched's periodic-release, deadline-miss, and
// task-terminated hook positions, the same "register an observer against a
// HookPos" pattern scheduler.go's doc comment describes for the web
// dashboard and this trace sink.
func RegisterHooks(sched *scheduler.Scheduler, w *Writer) {
	sched.AcceptHook(deadlineMissHook{w})
	sched.AcceptHook(periodicReleaseHook{w})
	sched.AcceptHook(taskTerminatedHook{w})
}

type deadlineMissHook struct{ w *Writer }

func (h deadlineMissHook) Func(ctx hooking.HookCtx) {
	if ctx.Pos != scheduler.HookPosDeadlineMiss {
		return
	}

	t, ok := ctx.Item.(*task.TCB)
	if !ok {
		return
	}

	h.w.Write(Event{Kind: KindDeadlineMiss, TaskName: t.Name(), Detail: fmt.Sprintf("%v", ctx.Detail)})
}

type periodicReleaseHook struct{ w *Writer }

func (h periodicReleaseHook) Func(ctx hooking.HookCtx) {
	if ctx.Pos != scheduler.HookPosPeriodicRelease {
		return
	}

	t, ok := ctx.Item.(*task.TCB)
	if !ok {
		return
	}

	h.w.Write(Event{Kind: KindPeriodicRelease, TaskName: t.Name(), Detail: fmt.Sprintf("%v", ctx.Detail)})
}

type taskTerminatedHook struct{ w *Writer }

func (h taskTerminatedHook) Func(ctx hooking.HookCtx) {
	if ctx.Pos != scheduler.HookPosTaskTerminated {
		return
	}

	t, ok := ctx.Item.(*task.TCB)
	if !ok {
		return
	}

	h.w.Write(Event{Kind: KindTaskTerminated, TaskName: t.Name()})
}
