// Package naming provides the small Named/NamedBase pair shared by every
// kernel object that carries a human-readable name (tasks, semaphores,
// mutexes, queues, event groups).
package naming

import "fmt"

// MaxNameLen is the maximum length of a kernel object name, including the
// terminating NUL a C implementation would reserve. A name longer than
// MaxNameLen-1 runes is truncated by Truncate.
const MaxNameLen = 16

// Named describes an object that has a name.
type Named interface {
	Name() string
}

// NamedBase is a base implementation of Named.
type NamedBase struct {
	name string
}

// MakeNamedBase creates a new NamedBase, truncating name to MaxNameLen-1
// runes the way the kernel's fixed-size char[MAX_TASK_NAME_LEN] buffers do.
func MakeNamedBase(name string) NamedBase {
	return NamedBase{name: Truncate(name)}
}

// Name returns the object's name.
func (b *NamedBase) Name() string {
	return b.name
}

// Truncate clips name to MaxNameLen-1 runes, reserving room for the NUL a
// fixed char[MAX_TASK_NAME_LEN] buffer would need.
func Truncate(name string) string {
	r := []rune(name)
	if len(r) > MaxNameLen-1 {
		r = r[:MaxNameLen-1]
	}

	return string(r)
}

// MustBeValid panics if name is empty. Kernel object names must be
// non-empty; callers that can fail gracefully should check beforehand
// instead of relying on the panic.
func MustBeValid(name string) {
	if name == "" {
		panic(fmt.Sprintf("name %q is not valid: must not be empty", name))
	}
}
