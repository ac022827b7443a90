package tensor

// Add performs element-wise addition with broadcasting.
//
// Example:
//
//	a := tensor.Ones(tensor.Shape{3, 1}, backend)
//	b := tensor.Ones(tensor.Shape{3, 5}, backend)
//	c := a.Add(b) // [3, 5]
func (t *Tensor[T, B]) Add(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.Add(t.raw, other.raw), t.backend)
}

// Sub performs element-wise subtraction with broadcasting.
func (t *Tensor[T, B]) Sub(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.Sub(t.raw, other.raw), t.backend)
}

// Mul performs element-wise multiplication with broadcasting.
func (t *Tensor[T, B]) Mul(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.Mul(t.raw, other.raw), t.backend)
}

// MatMul performs 2D matrix multiplication: (M, K) @ (K, N) → (M, N).
func (t *Tensor[T, B]) MatMul(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.MatMul(t.raw, other.raw), t.backend)
}

// Reshape returns a tensor with the same elements and a new shape.
func (t *Tensor[T, B]) Reshape(newShape ...int) *Tensor[T, B] {
	return New[T, B](t.backend.Reshape(t.raw, Shape(newShape)), t.backend)
}

// Transpose permutes dimensions. With no axes, all dimensions are reversed.
func (t *Tensor[T, B]) Transpose(axes ...int) *Tensor[T, B] {
	return New[T, B](t.backend.Transpose(t.raw, axes...), t.backend)
}

// T transposes a 2D tensor.
func (t *Tensor[T, B]) T() *Tensor[T, B] {
	if len(t.Shape()) != 2 {
		panic("T() only works for 2D tensors")
	}
	return t.Transpose(1, 0)
}

// IndexSelect keeps the slices at indices along dim.
//
// Example:
//
//	w := tensor.Zeros[float32](tensor.Shape{4, 3}, backend)
//	rows := w.IndexSelect(0, []int{0, 2}) // [2, 3]
func (t *Tensor[T, B]) IndexSelect(dim int, indices []int) *Tensor[T, B] {
	return New[T, B](t.backend.IndexSelect(t.raw, dim, indices), t.backend)
}

// IndexFill returns a copy with the slices at indices along dim set to value.
func (t *Tensor[T, B]) IndexFill(dim int, indices []int, value float64) *Tensor[T, B] {
	return New[T, B](t.backend.IndexFill(t.raw, dim, indices, value), t.backend)
}

// IndexCopy returns a copy of t whose slice indices[i] along dim is slice i of src.
func (t *Tensor[T, B]) IndexCopy(dim int, indices []int, src *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.IndexCopy(t.raw, dim, indices, src.raw), t.backend)
}
