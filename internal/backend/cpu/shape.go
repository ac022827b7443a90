package cpu

import (
	"fmt"

	"github.com/born-ml/prune/internal/tensor"
)

// Reshape returns a view of t with a new shape. One dimension may be -1 and is
// inferred from the element count.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	shape := newShape.Clone()
	infer := -1
	known := 1
	for i, dim := range shape {
		if dim == -1 {
			if infer >= 0 {
				panic(fmt.Sprintf("reshape: more than one inferred dimension in %v", newShape))
			}
			infer = i
			continue
		}
		known *= dim
	}
	if infer >= 0 {
		if known == 0 || t.NumElements()%known != 0 {
			panic(fmt.Sprintf("reshape: cannot infer dimension of %v from %v", newShape, t.Shape()))
		}
		shape[infer] = t.NumElements() / known
	}

	view, err := t.WithShape(shape)
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	return view
}

// Transpose permutes the dimensions of t. With no axes, dimensions are reversed.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	ndim := len(shape)

	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}
	if len(axes) != ndim {
		panic(fmt.Sprintf("transpose: expected %d axes, got %d", ndim, len(axes)))
	}

	seen := make([]bool, ndim)
	newShape := make(tensor.Shape, ndim)
	for i, ax := range axes {
		if ax < 0 || ax >= ndim || seen[ax] {
			panic(fmt.Sprintf("transpose: invalid permutation %v", axes))
		}
		seen[ax] = true
		newShape[i] = shape[ax]
	}

	result := tensor.MustRaw(newShape, t.DType(), cpu.device)
	if t.NumElements() == 0 {
		return result
	}

	elem := t.DType().Size()
	src, dst := t.Data(), result.Data()
	oldStrides := t.Strides()
	idx := make([]int, ndim)

	for i := 0; i < result.NumElements(); i++ {
		off := 0
		for d, v := range idx {
			off += v * oldStrides[axes[d]]
		}
		copy(dst[i*elem:(i+1)*elem], src[off*elem:(off+1)*elem])

		for d := ndim - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < newShape[d] {
				break
			}
			idx[d] = 0
		}
	}

	return result
}
