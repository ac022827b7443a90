package nn

import (
	"github.com/born-ml/prune/internal/tensor"
)

// ForwardHook runs after a module's Forward. A non-nil return value replaces the
// module's output for the remaining hooks and the caller.
type ForwardHook[B tensor.Backend] func(m Module[B], input, output *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

type hookEntry[B tensor.Backend] struct {
	id   int
	hook ForwardHook[B]
}

// HookHandle detaches a registered hook.
type HookHandle struct {
	remove func()
}

// Remove detaches the hook. Calling it more than once is a no-op.
func (h *HookHandle) Remove() {
	if h == nil || h.remove == nil {
		return
	}
	h.remove()
	h.remove = nil
}

// RegisterForwardHook appends hook to the module's forward hooks. Hooks run in
// registration order.
func (b *Base[B]) RegisterForwardHook(hook ForwardHook[B]) *HookHandle {
	id := b.nextHookID
	b.nextHookID++
	b.hooks = append(b.hooks, &hookEntry[B]{id: id, hook: hook})

	return &HookHandle{remove: func() {
		for i, e := range b.hooks {
			if e.id == id {
				b.hooks = append(b.hooks[:i], b.hooks[i+1:]...)
				return
			}
		}
	}}
}

// NumForwardHooks returns the number of registered forward hooks.
func (b *Base[B]) NumForwardHooks() int {
	return len(b.hooks)
}

// Call runs m.Forward and then m's forward hooks, in order.
//
// Containers call their children through Call, so hooks on nested modules run
// during a model's forward pass.
func Call[B tensor.Backend](m Module[B], input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	output := m.Forward(input)

	base := m.ModuleBase()
	hooks := make([]*hookEntry[B], len(base.hooks))
	copy(hooks, base.hooks)
	for _, e := range hooks {
		if replaced := e.hook(m, input, output); replaced != nil {
			output = replaced
		}
	}

	return output
}
