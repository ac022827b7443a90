// Package nn implements the module tree the pruner operates on.
//
// This package provides:
//   - Module interface and Base: named children, parameter and buffer namespaces
//   - Forward hooks run by Call after a module's own Forward
//   - Parametrizations: transformations applied on every read of a parameter
//   - Path resolution between modules and dotted fully-qualified names
//   - Layers: Linear, Conv2D, BatchNorm2D, ReLU, Flatten, Sequential
//
// Design inspired by PyTorch's nn.Module but adapted for Go generics.
package nn

import (
	"fmt"

	"github.com/born-ml/prune/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Every module embeds a Base, which carries the extension points used by the
// pruning machinery (parameters, buffers, children, hooks, parametrizations).
//
//	model := nn.NewSequential[Backend](
//	    nn.NewLinear(784, 128, backend),
//	    nn.NewReLU[Backend](),
//	    nn.NewLinear(128, 10, backend),
//	)
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module. Hooks are not run; use Call.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all trainable parameters, including nested modules'.
	Parameters() []*Parameter[B]

	// ModuleBase returns the module's registry.
	ModuleBase() *Base[B]
}

// NamedModule pairs a module with its name (or path) inside its parent.
type NamedModule[B tensor.Backend] struct {
	Name   string
	Module Module[B]
}

// Base holds the per-module registries. Embed it by value in every module.
//
// Parameters and buffers live in distinct namespaces: a name may be registered in
// at most one of them. A parameter slot may hold nil (a registered but absent
// parameter, e.g. a bias that was detached).
type Base[B tensor.Backend] struct {
	params           orderedMap[*Parameter[B]]
	buffers          orderedMap[*tensor.RawTensor]
	children         []NamedModule[B]
	hooks            []*hookEntry[B]
	nextHookID       int
	parametrizations map[string]*ParametrizationList[B]
}

// ModuleBase returns b itself, so embedding types satisfy Module.
func (b *Base[B]) ModuleBase() *Base[B] {
	return b
}

// RegisterParameter sets the parameter slot name. p may be nil.
// Panics if name is already a buffer.
func (b *Base[B]) RegisterParameter(name string, p *Parameter[B]) {
	if b.buffers.has(name) {
		panic(fmt.Sprintf("nn: parameter %q collides with an existing buffer", name))
	}
	b.params.set(name, p)
}

// Parameter returns the parameter registered under name, or nil if the slot is
// absent or empty.
func (b *Base[B]) Parameter(name string) *Parameter[B] {
	p, _ := b.params.get(name)
	return p
}

// HasParameter reports whether a parameter slot named name exists.
func (b *Base[B]) HasParameter(name string) bool {
	return b.params.has(name)
}

// DeleteParameter removes the parameter slot and reports whether it existed.
func (b *Base[B]) DeleteParameter(name string) bool {
	return b.params.delete(name)
}

// ParameterNames returns parameter slot names in registration order.
func (b *Base[B]) ParameterNames() []string {
	return b.params.keys()
}

// RegisterBuffer stores a non-trainable tensor under name.
// Panics if name is already a parameter.
func (b *Base[B]) RegisterBuffer(name string, t *tensor.RawTensor) {
	if b.params.has(name) {
		panic(fmt.Sprintf("nn: buffer %q collides with an existing parameter", name))
	}
	b.buffers.set(name, t)
}

// Buffer returns the buffer registered under name, or nil.
func (b *Base[B]) Buffer(name string) *tensor.RawTensor {
	t, _ := b.buffers.get(name)
	return t
}

// HasBuffer reports whether a buffer named name exists.
func (b *Base[B]) HasBuffer(name string) bool {
	return b.buffers.has(name)
}

// DeleteBuffer removes the buffer and reports whether it existed.
func (b *Base[B]) DeleteBuffer(name string) bool {
	return b.buffers.delete(name)
}

// BufferNames returns buffer names in registration order.
func (b *Base[B]) BufferNames() []string {
	return b.buffers.keys()
}

// AddChild registers m as a child module. Panics on duplicate names.
func (b *Base[B]) AddChild(name string, m Module[B]) {
	for _, c := range b.children {
		if c.Name == name {
			panic(fmt.Sprintf("nn: duplicate child module %q", name))
		}
	}
	b.children = append(b.children, NamedModule[B]{Name: name, Module: m})
}

// NamedChildren returns the direct children in registration order.
func (b *Base[B]) NamedChildren() []NamedModule[B] {
	out := make([]NamedModule[B], len(b.children))
	copy(out, b.children)
	return out
}

// Tensor returns the effective value of the parameter name: the output of its
// parametrizations if any are registered, otherwise the stored tensor. Returns
// nil if there is no such parameter.
func (b *Base[B]) Tensor(name string) *tensor.Tensor[float32, B] {
	if list, ok := b.parametrizations[name]; ok {
		return list.apply()
	}
	if p := b.Parameter(name); p != nil {
		return p.Tensor()
	}
	return nil
}

// ownParameters returns the non-empty parameter slots of this module only.
func (b *Base[B]) ownParameters() []*Parameter[B] {
	var out []*Parameter[B]
	for _, name := range b.params.keys() {
		if p := b.Parameter(name); p != nil {
			out = append(out, p)
		}
	}
	return out
}

// orderedMap is a string-keyed map that remembers insertion order.
type orderedMap[V any] struct {
	order  []string
	values map[string]V
}

func (m *orderedMap[V]) set(key string, v V) {
	if m.values == nil {
		m.values = make(map[string]V)
	}
	if _, ok := m.values[key]; !ok {
		m.order = append(m.order, key)
	}
	m.values[key] = v
}

func (m *orderedMap[V]) get(key string) (V, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *orderedMap[V]) has(key string) bool {
	_, ok := m.values[key]
	return ok
}

func (m *orderedMap[V]) delete(key string) bool {
	if _, ok := m.values[key]; !ok {
		return false
	}
	delete(m.values, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

func (m *orderedMap[V]) keys() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}
