package tensor

// Backend is the set of primitive operations a compute backend provides.
//
// Implementations:
//   - cpu.CPUBackend: pure Go, gonum BLAS for matrix products
//   - autodiff.AutodiffBackend: decorator that records operations on a tape
//
// Backends panic on shape or dtype misuse, mirroring index errors on slices.
type Backend interface {
	// Element-wise binary operations with NumPy-style broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor

	// MatMul multiplies 2D matrices: (M, K) @ (K, N) → (M, N).
	MatMul(a, b *RawTensor) *RawTensor

	// Conv2D convolves [N, C, H, W] input with [F, C, KH, KW] kernel.
	Conv2D(input, kernel *RawTensor, stride, padding int) *RawTensor

	// Shape operations.
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor

	// IndexSelect keeps the slices at indices along dim, in the given order.
	IndexSelect(x *RawTensor, dim int, indices []int) *RawTensor
	// IndexFill returns a copy of x with the slices at indices along dim set to value.
	IndexFill(x *RawTensor, dim int, indices []int, value float64) *RawTensor
	// IndexCopy returns a copy of dst whose slice indices[i] along dim is replaced
	// by slice i of src.
	IndexCopy(dst *RawTensor, dim int, indices []int, src *RawTensor) *RawTensor

	// Metadata.
	Name() string
	Device() Device
}
