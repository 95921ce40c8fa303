// Package klog implements the kernel's external logger collaborator
// (spec §6): a leveled, non-blocking diagnostic sink used only for
// observability. It never influences kernel state or control flow.
package klog

import (
	"log"
	"os"
)

// Level filters which records reach the underlying writer.
type Level int

// Level values, ordered least to most severe.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	// LevelOff disables all emission.
	LevelOff
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "OFF"
	}
}

// Logger is the interface every kernel subsystem logs through. It is
// satisfied by *Default, and has a go.uber.org/mock mock for this
// package's own tests (see mock_klog_test.go, generated by the directive in
// log_test.go).
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Default is the stdlib-backed Logger, the kernel's default collaborator.
// It mirrors the teacher's habit of reaching for "log" directly rather than
// a structured logging library (see sim/freq.go, sim/timing/serialengine.go).
type Default struct {
	level Level
	out   *log.Logger
}

// New creates a Default logger writing to os.Stderr at the given level.
func New(level Level) *Default {
	return &Default{
		level: level,
		out:   log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds),
	}
}

// NewNop creates a Default logger with emission disabled, for tests and
// for embedding in examples that don't want console noise.
func NewNop() *Default {
	return New(LevelOff)
}

// SetLevel changes the minimum level emitted.
func (d *Default) SetLevel(level Level) {
	d.level = level
}

func (d *Default) emit(level Level, format string, args ...interface{}) {
	if level < d.level {
		return
	}

	d.out.Printf("["+level.String()+"] "+format, args...)
}

// Debugf logs at LevelDebug.
func (d *Default) Debugf(format string, args ...interface{}) {
	d.emit(LevelDebug, format, args...)
}

// Infof logs at LevelInfo.
func (d *Default) Infof(format string, args ...interface{}) {
	d.emit(LevelInfo, format, args...)
}

// Warnf logs at LevelWarn.
func (d *Default) Warnf(format string, args ...interface{}) {
	d.emit(LevelWarn, format, args...)
}

// Errorf logs at LevelError.
func (d *Default) Errorf(format string, args ...interface{}) {
	d.emit(LevelError, format, args...)
}
