package nn

import (
	"errors"
	"fmt"

	"github.com/born-ml/prune/internal/tensor"
)

// Registry errors.
var (
	ErrNoSuchParameter = errors.New("no such parameter")
	ErrNotParametrized = errors.New("parameter is not parametrized")
)

// Parametrization computes a parameter's effective value from its stored value.
// It runs on every read of the parameter through Base.Tensor.
type Parametrization[B tensor.Backend] interface {
	Apply(original *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]
}

// ParametrizationList is the chain of parametrizations registered on one
// parameter, together with the stored original value.
type ParametrizationList[B tensor.Backend] struct {
	original *Parameter[B]
	chain    []Parametrization[B]
}

// Original returns the stored, untransformed parameter.
func (l *ParametrizationList[B]) Original() *Parameter[B] {
	return l.original
}

// At returns the i-th parametrization in the chain.
func (l *ParametrizationList[B]) At(i int) Parametrization[B] {
	return l.chain[i]
}

// Len returns the chain length.
func (l *ParametrizationList[B]) Len() int {
	return len(l.chain)
}

func (l *ParametrizationList[B]) apply() *tensor.Tensor[float32, B] {
	out := l.original.Tensor()
	for _, p := range l.chain {
		out = p.Apply(out)
	}
	return out
}

// RegisterParametrization attaches p to parameter name of m. Afterwards reads via
// Base.Tensor(name) return p's output; the original value stays stored and keeps
// being reported by Parameters.
//
// Parametrizations may change the shape of the value (e.g. drop rows). Registering
// on an already parametrized parameter appends p to the chain.
func RegisterParametrization[B tensor.Backend](m Module[B], name string, p Parametrization[B]) error {
	base := m.ModuleBase()
	if base.parametrizations == nil {
		base.parametrizations = make(map[string]*ParametrizationList[B])
	}

	if list, ok := base.parametrizations[name]; ok {
		list.chain = append(list.chain, p)
		return nil
	}

	original := base.Parameter(name)
	if original == nil {
		return fmt.Errorf("register parametrization on %q: %w", name, ErrNoSuchParameter)
	}
	base.parametrizations[name] = &ParametrizationList[B]{
		original: original,
		chain:    []Parametrization[B]{p},
	}
	return nil
}

// RemoveParametrizations detaches every parametrization from parameter name.
//
// With leaveParametrized the current transformed value becomes the stored
// parameter; otherwise the original value is kept.
func RemoveParametrizations[B tensor.Backend](m Module[B], name string, leaveParametrized bool) error {
	base := m.ModuleBase()
	list, ok := base.parametrizations[name]
	if !ok {
		return fmt.Errorf("remove parametrizations of %q: %w", name, ErrNotParametrized)
	}

	if leaveParametrized {
		value := list.apply()
		if value.Raw() == list.original.Tensor().Raw() {
			value = value.Clone()
		}
		base.params.set(name, NewParameter(name, value))
	} else {
		base.params.set(name, list.original)
	}

	delete(base.parametrizations, name)
	return nil
}

// IsParametrized reports whether every named parameter of m has
// parametrizations. With no names it reports whether any parameter of m is
// parametrized.
func IsParametrized[B tensor.Backend](m Module[B], names ...string) bool {
	base := m.ModuleBase()
	if len(names) == 0 {
		return len(base.parametrizations) > 0
	}
	for _, name := range names {
		if _, ok := base.parametrizations[name]; !ok {
			return false
		}
	}
	return true
}

// ParametrizationsOf returns the chain registered on parameter name, or nil.
func ParametrizationsOf[B tensor.Backend](m Module[B], name string) *ParametrizationList[B] {
	return m.ModuleBase().parametrizations[name]
}

// OriginalTensor returns the stored value of parameter name, bypassing any
// parametrization. Returns nil if there is no such parameter.
func OriginalTensor[B tensor.Backend](m Module[B], name string) *tensor.Tensor[float32, B] {
	if list := ParametrizationsOf(m, name); list != nil {
		return list.original.Tensor()
	}
	if p := m.ModuleBase().Parameter(name); p != nil {
		return p.Tensor()
	}
	return nil
}
