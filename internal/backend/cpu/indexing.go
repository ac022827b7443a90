package cpu

import (
	"fmt"

	"github.com/born-ml/prune/internal/tensor"
)

// IndexSelect keeps the slices of x at indices along dim, in order.
//
// Example: x [4, 3], dim 0, indices {0, 2} → rows 0 and 2, shape [2, 3].
func (cpu *CPUBackend) IndexSelect(x *tensor.RawTensor, dim int, indices []int) *tensor.RawTensor {
	shape := x.Shape()
	checkIndices("index_select", shape, dim, indices)

	outShape := shape.Clone()
	outShape[dim] = len(indices)
	result := tensor.MustRaw(outShape, x.DType(), cpu.device)

	outer, size, chunk := sliceGeometry(shape, dim, x.DType())
	src, dst := x.Data(), result.Data()
	for o := 0; o < outer; o++ {
		for j, idx := range indices {
			from := (o*size + idx) * chunk
			to := (o*len(indices) + j) * chunk
			copy(dst[to:to+chunk], src[from:from+chunk])
		}
	}

	return result
}

// IndexFill returns a copy of x with the slices at indices along dim set to value.
func (cpu *CPUBackend) IndexFill(x *tensor.RawTensor, dim int, indices []int, value float64) *tensor.RawTensor {
	shape := x.Shape()
	checkIndices("index_fill", shape, dim, indices)

	result := x.Clone()
	outer, size, chunk := sliceGeometry(shape, dim, x.DType())
	elems := chunk / x.DType().Size()

	for o := 0; o < outer; o++ {
		for _, idx := range indices {
			start := (o*size + idx) * elems
			fillRange(result, start, start+elems, value)
		}
	}

	return result
}

// IndexCopy returns a copy of dst whose slice indices[i] along dim is slice i of src.
func (cpu *CPUBackend) IndexCopy(dst *tensor.RawTensor, dim int, indices []int, src *tensor.RawTensor) *tensor.RawTensor {
	shape := dst.Shape()
	checkIndices("index_copy", shape, dim, indices)

	if dst.DType() != src.DType() {
		panic(fmt.Sprintf("index_copy: dtype mismatch %s vs %s", dst.DType(), src.DType()))
	}
	expected := shape.Clone()
	expected[dim] = len(indices)
	if !src.Shape().Equal(expected) {
		panic(fmt.Sprintf("index_copy: source shape %v, expected %v", src.Shape(), expected))
	}

	result := dst.Clone()
	outer, size, chunk := sliceGeometry(shape, dim, dst.DType())
	from, to := src.Data(), result.Data()
	for o := 0; o < outer; o++ {
		for j, idx := range indices {
			s := (o*len(indices) + j) * chunk
			d := (o*size + idx) * chunk
			copy(to[d:d+chunk], from[s:s+chunk])
		}
	}

	return result
}

// sliceGeometry splits shape around dim: the number of outer blocks, the size of
// dim, and the byte length of one slice along dim inside a block.
func sliceGeometry(shape tensor.Shape, dim int, dt tensor.DataType) (outer, size, chunk int) {
	outer = shape[:dim].NumElements()
	size = shape[dim]
	chunk = shape[dim+1:].NumElements() * dt.Size()
	return outer, size, chunk
}

func checkIndices(op string, shape tensor.Shape, dim int, indices []int) {
	if dim < 0 || dim >= len(shape) {
		panic(fmt.Sprintf("%s: dim %d out of range for %dD tensor", op, dim, len(shape)))
	}
	for _, idx := range indices {
		if idx < 0 || idx >= shape[dim] {
			panic(fmt.Sprintf("%s: index %d out of bounds for dimension %d (size %d)", op, idx, dim, shape[dim]))
		}
	}
}

func fillRange(t *tensor.RawTensor, start, end int, value float64) {
	switch t.DType() {
	case tensor.Float32:
		data := t.AsFloat32()
		for i := start; i < end; i++ {
			data[i] = float32(value)
		}
	case tensor.Float64:
		data := t.AsFloat64()
		for i := start; i < end; i++ {
			data[i] = value
		}
	case tensor.Int64:
		data := t.AsInt64()
		for i := start; i < end; i++ {
			data[i] = int64(value)
		}
	case tensor.Bool:
		data := t.AsBool()
		for i := start; i < end; i++ {
			data[i] = value != 0
		}
	default:
		panic(fmt.Sprintf("index_fill: unsupported dtype %s", t.DType()))
	}
}
