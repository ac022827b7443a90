package nn

import (
	"strconv"

	"github.com/born-ml/prune/internal/tensor"
)

// Sequential is a container module that chains multiple modules together.
//
// Children are registered under their position ("0", "1", ...), so the
// second layer's weight has the path "1.weight".
//
// Example:
//
//	model := nn.NewSequential[Backend](
//	    nn.NewLinear(784, 128, backend),
//	    nn.NewReLU[Backend](),
//	    nn.NewLinear(128, 10, backend),
//	)
//
//	output := nn.Call[Backend](model, input)
type Sequential[B tensor.Backend] struct {
	Base[B]
}

// NewSequential creates a new Sequential container.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	s := &Sequential[B]{}
	for _, m := range modules {
		s.Add(m)
	}
	return s
}

// Add appends a module to the sequence.
func (s *Sequential[B]) Add(module Module[B]) {
	s.AddChild(strconv.Itoa(len(s.children)), module)
}

// Forward runs the children in order through Call, so their hooks apply.
func (s *Sequential[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	output := input
	for _, c := range s.children {
		output = Call(c.Module, output)
	}
	return output
}

// Parameters returns all parameters of all children.
func (s *Sequential[B]) Parameters() []*Parameter[B] {
	params := s.ownParameters()
	for _, c := range s.children {
		params = append(params, c.Module.Parameters()...)
	}
	return params
}

// Len returns the number of modules.
func (s *Sequential[B]) Len() int {
	return len(s.children)
}

// Module returns the module at index i.
func (s *Sequential[B]) Module(i int) Module[B] {
	return s.children[i].Module
}
