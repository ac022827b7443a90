package cpu

import (
	"fmt"

	"github.com/born-ml/prune/internal/parallel"
	"github.com/born-ml/prune/internal/tensor"
)

// Conv2D performs 2D convolution with the im2col algorithm.
//
// Input shape:  [N, C_in, H, W]
// Kernel shape: [C_out, C_in, K_h, K_w]
// Output shape: [N, C_out, H_out, W_out]
//
// Each batch element is unfolded into a [C_in*K_h*K_w, H_out*W_out] column
// matrix and multiplied by the kernel viewed as [C_out, C_in*K_h*K_w].
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	inputShape, kernelShape := input.Shape(), kernel.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv2d: input must be 4D [N,C,H,W], got %dD", len(inputShape)))
	}
	if len(kernelShape) != 4 {
		panic(fmt.Sprintf("conv2d: kernel must be 4D [C_out,C_in,K_h,K_w], got %dD", len(kernelShape)))
	}
	if input.DType() != tensor.Float32 || kernel.DType() != tensor.Float32 {
		panic(fmt.Sprintf("conv2d: only float32 supported, got %s and %s", input.DType(), kernel.DType()))
	}
	if stride <= 0 || padding < 0 {
		panic(fmt.Sprintf("conv2d: invalid stride %d or padding %d", stride, padding))
	}

	n, cIn, h, w := inputShape[0], inputShape[1], inputShape[2], inputShape[3]
	cOut, kIn, kh, kw := kernelShape[0], kernelShape[1], kernelShape[2], kernelShape[3]
	if cIn != kIn {
		panic(fmt.Sprintf("conv2d: input channels %d != kernel channels %d", cIn, kIn))
	}

	outH := (h+2*padding-kh)/stride + 1
	outW := (w+2*padding-kw)/stride + 1
	if outH <= 0 || outW <= 0 {
		panic(fmt.Sprintf("conv2d: kernel %dx%d larger than padded input %dx%d", kh, kw, h+2*padding, w+2*padding))
	}

	result := tensor.MustRaw(tensor.Shape{n, cOut, outH, outW}, tensor.Float32, cpu.device)
	if n == 0 || cOut == 0 || cIn == 0 {
		return result
	}

	in := input.AsFloat32()
	out := result.AsFloat32()
	weights := kernel.AsFloat32()

	rows := cIn * kh * kw
	cols := outH * outW

	// Batch elements write disjoint output slices.
	parallel.For(n, func(b int) {
		col := make([]float32, rows*cols)
		im2col(col, in[b*cIn*h*w:(b+1)*cIn*h*w], cIn, h, w, kh, kw, stride, padding, outH, outW)
		sgemm(out[b*cOut*cols:(b+1)*cOut*cols], weights, col, cOut, rows, cols)
	}, cpu.batchParallel)

	return result
}

// im2col unfolds one [C, H, W] image into col [C*KH*KW, outH*outW].
func im2col(col, img []float32, c, h, w, kh, kw, stride, padding, outH, outW int) {
	cols := outH * outW
	for ch := 0; ch < c; ch++ {
		for ki := 0; ki < kh; ki++ {
			for kj := 0; kj < kw; kj++ {
				row := (ch*kh+ki)*kw + kj
				dst := col[row*cols : (row+1)*cols]
				for oy := 0; oy < outH; oy++ {
					iy := oy*stride - padding + ki
					for ox := 0; ox < outW; ox++ {
						ix := ox*stride - padding + kj
						if iy < 0 || iy >= h || ix < 0 || ix >= w {
							dst[oy*outW+ox] = 0
							continue
						}
						dst[oy*outW+ox] = img[(ch*h+iy)*w+ix]
					}
				}
			}
		}
	}
}
