package nn

import (
	"fmt"

	"github.com/born-ml/prune/internal/tensor"
)

// Conv2D implements a 2D convolutional layer.
//
// Input shape:  [batch, in_channels, height, width]
// Weight shape: [out_channels, in_channels, kernel_h, kernel_w]
// Bias shape:   [out_channels]
// Output shape: [batch, out_channels, out_height, out_width]
//
// where:
//
//	out_height = (height + 2*padding - kernel_h) / stride + 1
//	out_width  = (width + 2*padding - kernel_w) / stride + 1
//
// Example:
//
//	conv := nn.NewConv2D(1, 6, 5, 5, 1, 0, true, backend)
//	output := conv.Forward(input) // [N, 1, 28, 28] -> [N, 6, 24, 24]
type Conv2D[B tensor.Backend] struct {
	Base[B]
	inChannels  int
	outChannels int
	kernelH     int
	kernelW     int
	stride      int
	padding     int
	backend     B
}

// NewConv2D creates a new Conv2D layer.
//
// Parameters:
//   - inChannels: Number of input channels
//   - outChannels: Number of output channels (filters)
//   - kernelH, kernelW: Kernel dimensions
//   - stride: Stride for convolution
//   - padding: Zero padding on each side
//   - useBias: Whether to register a bias parameter
//   - backend: Computation backend
func NewConv2D[B tensor.Backend](
	inChannels, outChannels int,
	kernelH, kernelW int,
	stride, padding int,
	useBias bool,
	backend B,
) *Conv2D[B] {
	c := &Conv2D[B]{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelH:     kernelH,
		kernelW:     kernelW,
		stride:      stride,
		padding:     padding,
		backend:     backend,
	}

	fanIn := inChannels * kernelH * kernelW
	fanOut := outChannels * kernelH * kernelW
	weightShape := tensor.Shape{outChannels, inChannels, kernelH, kernelW}
	c.RegisterParameter("weight", NewParameter("weight", Xavier(fanIn, fanOut, weightShape, backend)))
	if useBias {
		c.RegisterParameter("bias", NewParameter("bias", Zeros(tensor.Shape{outChannels}, backend)))
	}

	return c
}

// Forward computes the convolution with the effective weight.
func (c *Conv2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("Conv2D.Forward: expected 4D input [N,C,H,W], got shape %v", inputShape))
	}
	if inputShape[1] != c.inChannels {
		panic(fmt.Sprintf("Conv2D.Forward: expected %d input channels, got %d", c.inChannels, inputShape[1]))
	}

	w := c.Tensor("weight")
	output := tensor.New[float32, B](c.backend.Conv2D(input.Raw(), w.Raw(), c.stride, c.padding), c.backend)

	if b := c.Tensor("bias"); b != nil {
		output = output.Add(b.Reshape(1, -1, 1, 1))
	}

	return output
}

// Parameters returns the stored parameters of this layer.
func (c *Conv2D[B]) Parameters() []*Parameter[B] {
	return c.ownParameters()
}

// Weight returns the stored weight parameter.
func (c *Conv2D[B]) Weight() *Parameter[B] {
	return c.Parameter("weight")
}

// Bias returns the stored bias parameter, or nil.
func (c *Conv2D[B]) Bias() *Parameter[B] {
	return c.Parameter("bias")
}

// InChannels returns the number of input channels.
func (c *Conv2D[B]) InChannels() int {
	return c.inChannels
}

// OutChannels returns the number of output channels the layer was built with.
func (c *Conv2D[B]) OutChannels() int {
	return c.outChannels
}

// KernelSize returns [kernel_h, kernel_w].
func (c *Conv2D[B]) KernelSize() [2]int {
	return [2]int{c.kernelH, c.kernelW}
}

// Stride returns the convolution stride.
func (c *Conv2D[B]) Stride() int {
	return c.stride
}

// Padding returns the zero padding.
func (c *Conv2D[B]) Padding() int {
	return c.padding
}
