// Package hooking provides a minimal observer hook mechanism, used by the
// scheduler to let an observability layer (the sqlite trace sink) watch
// kernel events without being compiled into the core.
package hooking

// HookPos names a site in the kernel where a hook can be invoked.
type HookPos struct {
	Name string
}

// HookCtx carries the information about the site a hook fired at.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Item   interface{}
	Detail interface{}
}

// Hookable is an object that accepts hooks.
type Hookable interface {
	AcceptHook(hook Hook)
	NumHooks() int
	Hooks() []Hook
}

// Hook is invoked by a Hookable at a HookPos.
type Hook interface {
	Func(ctx HookCtx)
}

// HookableBase implements Hookable; embed it to get hook support for free.
type HookableBase struct {
	hookList []Hook
}

// NumHooks returns how many hooks are registered.
func (h *HookableBase) NumHooks() int {
	return len(h.hookList)
}

// Hooks returns the registered hooks.
func (h *HookableBase) Hooks() []Hook {
	return h.hookList
}

// AcceptHook registers a hook, panicking on duplicate registration.
func (h *HookableBase) AcceptHook(hook Hook) {
	for _, existing := range h.hookList {
		if existing == hook {
			panic("duplicated hook")
		}
	}

	h.hookList = append(h.hookList, hook)
}

// InvokeHook calls every registered hook with ctx.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.hookList {
		hook.Func(ctx)
	}
}
