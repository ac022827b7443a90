package nn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/prune/internal/tensor"
)

// BatchNorm2D normalizes each channel of a [N, C, H, W] input.
//
//	y = (x - mean) / sqrt(var + eps) * weight + bias
//
// In training mode mean and var are the batch statistics and the running
// buffers are updated with momentum; in evaluation mode (the default) the
// running buffers are used.
//
// Registered state:
//   - parameters "weight" (ones) and "bias" (zeros), shape [C]
//   - buffers "running_mean" (zeros) and "running_var" (ones), shape [C]
type BatchNorm2D[B tensor.Backend] struct {
	Base[B]
	numFeatures int
	eps         float64
	momentum    float64
	training    bool
	backend     B
}

// NewBatchNorm2D creates a BatchNorm2D over numFeatures channels with eps 1e-5
// and momentum 0.1.
func NewBatchNorm2D[B tensor.Backend](numFeatures int, backend B) *BatchNorm2D[B] {
	bn := &BatchNorm2D[B]{
		numFeatures: numFeatures,
		eps:         1e-5,
		momentum:    0.1,
		backend:     backend,
	}

	shape := tensor.Shape{numFeatures}
	bn.RegisterParameter("weight", NewParameter("weight", Ones(shape, backend)))
	bn.RegisterParameter("bias", NewParameter("bias", Zeros(shape, backend)))
	bn.RegisterBuffer("running_mean", Zeros(shape, backend).Raw())
	bn.RegisterBuffer("running_var", Ones(shape, backend).Raw())

	return bn
}

// SetTraining switches between batch statistics (true) and running statistics.
func (bn *BatchNorm2D[B]) SetTraining(training bool) {
	bn.training = training
}

// Training reports whether the layer uses batch statistics.
func (bn *BatchNorm2D[B]) Training() bool {
	return bn.training
}

// NumFeatures returns the number of channels.
func (bn *BatchNorm2D[B]) NumFeatures() int {
	return bn.numFeatures
}

// Eps returns the variance epsilon.
func (bn *BatchNorm2D[B]) Eps() float64 {
	return bn.eps
}

// Forward normalizes input per channel.
func (bn *BatchNorm2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("BatchNorm2D.Forward: expected 4D input [N,C,H,W], got shape %v", shape))
	}
	if shape[1] != bn.numFeatures {
		panic(fmt.Sprintf("BatchNorm2D.Forward: expected %d channels, got %d", bn.numFeatures, shape[1]))
	}

	mean, variance := bn.statistics(input)

	w := bn.Tensor("weight")
	if w.NumElements() != bn.numFeatures {
		panic(fmt.Sprintf("BatchNorm2D.Forward: weight has %d entries, expected %d", w.NumElements(), bn.numFeatures))
	}
	wData := w.Data()
	var bData []float32
	if b := bn.Tensor("bias"); b != nil {
		bData = b.Data()
	}

	scale := make([]float32, bn.numFeatures)
	shift := make([]float32, bn.numFeatures)
	for c := range scale {
		s := float64(wData[c]) / math.Sqrt(variance[c]+bn.eps)
		scale[c] = float32(s)
		shift[c] = float32(-mean[c] * s)
		if bData != nil {
			shift[c] += bData[c]
		}
	}

	channelShape := tensor.Shape{1, bn.numFeatures, 1, 1}
	scaleT, err := tensor.FromSlice(scale, channelShape, bn.backend)
	if err != nil {
		panic(err)
	}
	shiftT, err := tensor.FromSlice(shift, channelShape, bn.backend)
	if err != nil {
		panic(err)
	}

	return input.Mul(scaleT).Add(shiftT)
}

// statistics returns the per-channel mean and variance to normalize with,
// updating the running buffers in training mode.
func (bn *BatchNorm2D[B]) statistics(input *tensor.Tensor[float32, B]) (mean, variance []float64) {
	runningMean := bn.Buffer("running_mean").AsFloat32()
	runningVar := bn.Buffer("running_var").AsFloat32()

	mean = make([]float64, bn.numFeatures)
	variance = make([]float64, bn.numFeatures)

	if !bn.training {
		for c := range mean {
			mean[c] = float64(runningMean[c])
			variance[c] = float64(runningVar[c])
		}
		return mean, variance
	}

	shape := input.Shape()
	n, channels, spatial := shape[0], shape[1], shape[2]*shape[3]
	count := n * spatial
	if count == 0 {
		panic("BatchNorm2D.Forward: empty batch in training mode")
	}

	data := input.Data()
	values := make([]float64, count)
	for c := 0; c < channels; c++ {
		for i := 0; i < n; i++ {
			base := (i*channels + c) * spatial
			for j := 0; j < spatial; j++ {
				values[i*spatial+j] = float64(data[base+j])
			}
		}

		mean[c] = floats.Sum(values) / float64(count)
		floats.AddConst(-mean[c], values)
		variance[c] = floats.Dot(values, values) / float64(count)

		unbiased := variance[c]
		if count > 1 {
			unbiased *= float64(count) / float64(count-1)
		}
		runningMean[c] = float32((1-bn.momentum)*float64(runningMean[c]) + bn.momentum*mean[c])
		runningVar[c] = float32((1-bn.momentum)*float64(runningVar[c]) + bn.momentum*unbiased)
	}

	return mean, variance
}

// Parameters returns the stored parameters of this layer.
func (bn *BatchNorm2D[B]) Parameters() []*Parameter[B] {
	return bn.ownParameters()
}

// Weight returns the stored scale parameter.
func (bn *BatchNorm2D[B]) Weight() *Parameter[B] {
	return bn.Parameter("weight")
}

// Bias returns the stored shift parameter, or nil.
func (bn *BatchNorm2D[B]) Bias() *Parameter[B] {
	return bn.Parameter("bias")
}
