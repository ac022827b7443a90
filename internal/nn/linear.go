package nn

import (
	"fmt"

	"github.com/born-ml/prune/internal/tensor"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = x @ W.T + b
// where:
//   - x is the input tensor with shape [batch_size, in_features]
//   - W is the weight matrix with shape [out_features, in_features]
//   - b is the bias vector with shape [out_features]
//   - y is the output tensor with shape [batch_size, out_features]
//
// Weight and bias are registered as the parameters "weight" and "bias" and are
// read through Base.Tensor, so parametrizations on them take effect in Forward.
//
// Example:
//
//	backend := cpu.New()
//	layer := nn.NewLinear(784, 128, backend)
//	output := layer.Forward(input) // [32, 784] -> [32, 128]
type Linear[B tensor.Backend] struct {
	Base[B]
	inFeatures  int
	outFeatures int
	backend     B
}

// NewLinear creates a new Linear layer with a bias.
//
// Weights are initialized using Xavier/Glorot uniform distribution.
// Biases are initialized to zeros.
//
// Parameters:
//   - inFeatures: Number of input features
//   - outFeatures: Number of output features
//   - backend: Backend to use for tensor operations
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B) *Linear[B] {
	return NewLinearWithBias(inFeatures, outFeatures, true, backend)
}

// NewLinearWithBias creates a Linear layer, with or without a bias.
func NewLinearWithBias[B tensor.Backend](inFeatures, outFeatures int, useBias bool, backend B) *Linear[B] {
	l := &Linear[B]{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		backend:     backend,
	}

	weightShape := tensor.Shape{outFeatures, inFeatures}
	l.RegisterParameter("weight", NewParameter("weight", Xavier(inFeatures, outFeatures, weightShape, backend)))
	if useBias {
		l.RegisterParameter("bias", NewParameter("bias", Zeros(tensor.Shape{outFeatures}, backend)))
	}

	return l
}

// Forward computes y = x @ W.T + b.
//
// Input shape: [batch_size, in_features]
// Output shape: [batch_size, rows of the effective weight]
func (l *Linear[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 2 {
		panic(fmt.Sprintf("Linear.Forward: expected 2D input [batch, features], got shape %v", inputShape))
	}

	w := l.Tensor("weight") // [rows, in_features]
	if inputShape[1] != w.Shape()[1] {
		panic(fmt.Sprintf("Linear.Forward: expected input with %d features, got %d", w.Shape()[1], inputShape[1]))
	}

	output := input.MatMul(w.T())

	if b := l.Tensor("bias"); b != nil {
		output = output.Add(b.Reshape(1, -1))
	}

	return output
}

// Parameters returns the stored parameters of this layer in registration order.
func (l *Linear[B]) Parameters() []*Parameter[B] {
	return l.ownParameters()
}

// Weight returns the stored weight parameter.
func (l *Linear[B]) Weight() *Parameter[B] {
	return l.Parameter("weight")
}

// Bias returns the stored bias parameter, or nil.
func (l *Linear[B]) Bias() *Parameter[B] {
	return l.Parameter("bias")
}

// InFeatures returns the number of input features.
func (l *Linear[B]) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features the layer was built with.
func (l *Linear[B]) OutFeatures() int {
	return l.outFeatures
}
