// Package cpu implements the CPU backend, with gonum BLAS for matrix products.
package cpu

import (
	"fmt"

	"github.com/born-ml/prune/internal/parallel"
	"github.com/born-ml/prune/internal/tensor"
)

// CPUBackend implements tensor.Backend on the host CPU.
type CPUBackend struct {
	device        tensor.Device
	batchParallel parallel.Config
}

// New creates a new CPU backend.
func New() *CPUBackend {
	batch := parallel.DefaultConfig()
	batch.MinChunkSize = 1
	return &CPUBackend{device: tensor.CPU, batchParallel: batch}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.elementwise("add", a, b,
		func(x, y float32) float32 { return x + y },
		func(x, y float64) float64 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.elementwise("sub", a, b,
		func(x, y float32) float32 { return x - y },
		func(x, y float64) float64 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.elementwise("mul", a, b,
		func(x, y float32) float32 { return x * y },
		func(x, y float64) float64 { return x * y })
}

func (cpu *CPUBackend) elementwise(
	op string,
	a, b *tensor.RawTensor,
	f32 func(x, y float32) float32,
	f64 func(x, y float64) float64,
) *tensor.RawTensor {
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("%s: dtype mismatch %s vs %s", op, a.DType(), b.DType()))
	}

	outShape, _, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}

	result := tensor.MustRaw(outShape, a.DType(), cpu.device)
	switch a.DType() {
	case tensor.Float32:
		broadcastApply(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), outShape, a.Shape(), b.Shape(), f32)
	case tensor.Float64:
		broadcastApply(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), outShape, a.Shape(), b.Shape(), f64)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", op, a.DType()))
	}

	return result
}

// broadcastApply writes f(x, y) into out, walking out in row-major order and
// mapping each output index back into x and y through broadcast strides.
func broadcastApply[T float32 | float64](out, x, y []T, outShape, xShape, yShape tensor.Shape, f func(T, T) T) {
	if xShape.Equal(yShape) {
		for i := range out {
			out[i] = f(x[i], y[i])
		}
		return
	}

	xStrides := broadcastStrides(xShape, outShape)
	yStrides := broadcastStrides(yShape, outShape)
	idx := make([]int, len(outShape))

	for i := range out {
		xo, yo := 0, 0
		for d, v := range idx {
			xo += v * xStrides[d]
			yo += v * yStrides[d]
		}
		out[i] = f(x[xo], y[yo])

		for d := len(idx) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < outShape[d] {
				break
			}
			idx[d] = 0
		}
	}
}

// broadcastStrides returns strides of in aligned to out, zero on broadcast dims.
func broadcastStrides(in, out tensor.Shape) []int {
	strides := make([]int, len(out))
	inStrides := in.ComputeStrides()
	offset := len(out) - len(in)
	for i, dim := range in {
		if dim != 1 {
			strides[i+offset] = inStrides[i]
		}
	}
	return strides
}

// ReLU applies max(0, x) element-wise.
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	result := x.Clone()
	switch x.DType() {
	case tensor.Float32:
		for i, v := range result.AsFloat32() {
			if v < 0 {
				result.AsFloat32()[i] = 0
			}
		}
	case tensor.Float64:
		for i, v := range result.AsFloat64() {
			if v < 0 {
				result.AsFloat64()[i] = 0
			}
		}
	default:
		panic(fmt.Sprintf("relu: unsupported dtype %s", x.DType()))
	}
	return result
}
