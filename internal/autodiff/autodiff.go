// Package autodiff tracks tensor operations using the decorator pattern.
//
// AutodiffBackend wraps any Backend (CPU, ...) and records every operation on a
// GradientTape while the tape is recording. NoGrad suspends recording for a
// scope, which is how mask updates stay out of the training graph.
//
// Usage:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//
//	y := x.Mul(x) // recorded
//
//	restore := autodiff.NoGrad(backend.Tape())
//	z := x.Add(x) // not recorded
//	restore()
package autodiff

import "github.com/born-ml/prune/internal/tensor"

// AutodiffBackend wraps a Backend and records operations on a GradientTape.
type AutodiffBackend[B tensor.Backend] struct {
	inner B
	tape  *GradientTape
}

// New creates an AutodiffBackend wrapping backend.
func New[B tensor.Backend](backend B) *AutodiffBackend[B] {
	return &AutodiffBackend[B]{
		inner: backend,
		tape:  NewGradientTape(),
	}
}

// Tape returns the gradient tape.
func (b *AutodiffBackend[B]) Tape() *GradientTape {
	return b.tape
}

// Inner returns the wrapped backend.
func (b *AutodiffBackend[B]) Inner() B {
	return b.inner
}

// Name returns the backend name.
func (b *AutodiffBackend[B]) Name() string {
	return "Autodiff(" + b.inner.Name() + ")"
}

// Device returns the compute device.
func (b *AutodiffBackend[B]) Device() tensor.Device {
	return b.inner.Device()
}

// Add performs element-wise addition and records the operation.
func (b *AutodiffBackend[B]) Add(x, y *tensor.RawTensor) *tensor.RawTensor {
	return b.record("add", b.inner.Add(x, y), x, y)
}

// Sub performs element-wise subtraction and records the operation.
func (b *AutodiffBackend[B]) Sub(x, y *tensor.RawTensor) *tensor.RawTensor {
	return b.record("sub", b.inner.Sub(x, y), x, y)
}

// Mul performs element-wise multiplication and records the operation.
func (b *AutodiffBackend[B]) Mul(x, y *tensor.RawTensor) *tensor.RawTensor {
	return b.record("mul", b.inner.Mul(x, y), x, y)
}

// MatMul performs matrix multiplication and records the operation.
func (b *AutodiffBackend[B]) MatMul(x, y *tensor.RawTensor) *tensor.RawTensor {
	return b.record("matmul", b.inner.MatMul(x, y), x, y)
}

// Conv2D performs 2D convolution and records the operation.
func (b *AutodiffBackend[B]) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	return b.record("conv2d", b.inner.Conv2D(input, kernel, stride, padding), input, kernel)
}

// Reshape reshapes and records the operation.
func (b *AutodiffBackend[B]) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	return b.record("reshape", b.inner.Reshape(t, newShape), t)
}

// Transpose permutes dimensions and records the operation.
func (b *AutodiffBackend[B]) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	return b.record("transpose", b.inner.Transpose(t, axes...), t)
}

// IndexSelect selects slices and records the operation.
func (b *AutodiffBackend[B]) IndexSelect(x *tensor.RawTensor, dim int, indices []int) *tensor.RawTensor {
	return b.record("index_select", b.inner.IndexSelect(x, dim, indices), x)
}

// IndexFill fills slices and records the operation.
func (b *AutodiffBackend[B]) IndexFill(x *tensor.RawTensor, dim int, indices []int, value float64) *tensor.RawTensor {
	return b.record("index_fill", b.inner.IndexFill(x, dim, indices, value), x)
}

// IndexCopy scatters slices and records the operation.
func (b *AutodiffBackend[B]) IndexCopy(dst *tensor.RawTensor, dim int, indices []int, src *tensor.RawTensor) *tensor.RawTensor {
	return b.record("index_copy", b.inner.IndexCopy(dst, dim, indices, src), dst, src)
}

// ReLU applies max(0, x) when the wrapped backend supports it.
func (b *AutodiffBackend[B]) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	inner, ok := any(b.inner).(interface {
		ReLU(*tensor.RawTensor) *tensor.RawTensor
	})
	if !ok {
		panic("relu: wrapped backend " + b.inner.Name() + " does not implement ReLU")
	}
	return b.record("relu", inner.ReLU(x), x)
}

func (b *AutodiffBackend[B]) record(name string, out *tensor.RawTensor, inputs ...*tensor.RawTensor) *tensor.RawTensor {
	b.tape.Record(Operation{Name: name, Inputs: inputs, Output: out})
	return out
}
