package prune

import (
	"fmt"

	"github.com/born-ml/prune/internal/nn"
	"github.com/born-ml/prune/internal/tensor"
)

// MaskParametrization is a parametrization that tracks which output channels of
// its tensor are pruned.
type MaskParametrization[B tensor.Backend] interface {
	nn.Parametrization[B]

	// OriginalOutputs returns the tensor's dimension-0 size at installation.
	OriginalOutputs() int

	// PrunedOutputs returns the live pruned-channel set.
	PrunedOutputs() *IndexSet

	// SetPrunedOutputs replaces the pruned-channel set, sharing s.
	SetPrunedOutputs(s *IndexSet)
}

// ParametrizationFactory builds a MaskParametrization from a module's mask.
type ParametrizationFactory[B tensor.Backend] func(mask *tensor.RawTensor) MaskParametrization[B]

// maskOutputs reads the number of output channels a mask stands for. A 0-D mask
// holds the count itself; otherwise the mask has one entry per channel.
func maskOutputs(mask *tensor.RawTensor) int {
	shape := mask.Shape()
	if len(shape) > 0 {
		return shape[0]
	}

	switch mask.DType() {
	case tensor.Int64:
		return int(mask.AsInt64()[0])
	case tensor.Float32:
		return int(mask.AsFloat32()[0])
	case tensor.Float64:
		return int(mask.AsFloat64()[0])
	default:
		panic(fmt.Sprintf("prune: unsupported mask dtype %s", mask.DType()))
	}
}

type maskState struct {
	originalOutputs int
	pruned          *IndexSet
}

func newMaskState(mask *tensor.RawTensor) maskState {
	return maskState{originalOutputs: maskOutputs(mask), pruned: NewIndexSet()}
}

func (s *maskState) OriginalOutputs() int { return s.originalOutputs }
func (s *maskState) PrunedOutputs() *IndexSet { return s.pruned }
func (s *maskState) SetPrunedOutputs(p *IndexSet) { s.pruned = p }

// PruningParametrization drops the pruned rows of its tensor, so the module
// computes only the remaining output channels.
type PruningParametrization[B tensor.Backend] struct {
	maskState
}

// NewPruningParametrization creates a row-dropping parametrization for mask.
func NewPruningParametrization[B tensor.Backend](mask *tensor.RawTensor) MaskParametrization[B] {
	return &PruningParametrization[B]{maskState: newMaskState(mask)}
}

// Apply selects the rows that are not pruned, in ascending order.
func (p *PruningParametrization[B]) Apply(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return x.IndexSelect(0, p.pruned.Complement(p.originalOutputs))
}

// ZeroesParametrization zeroes the pruned rows of its tensor without changing
// its shape. The stored tensor is left untouched.
type ZeroesParametrization[B tensor.Backend] struct {
	maskState
}

// NewZeroesParametrization creates a row-zeroing parametrization for mask.
func NewZeroesParametrization[B tensor.Backend](mask *tensor.RawTensor) MaskParametrization[B] {
	return &ZeroesParametrization[B]{maskState: newMaskState(mask)}
}

// Apply returns a copy of x with the pruned rows set to zero.
func (p *ZeroesParametrization[B]) Apply(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return x.IndexFill(0, p.pruned.Slice(), 0)
}

// ActivationReconstruction returns a forward hook that scatters the output of a
// row-pruned module back to its original channel count. Pruned channels are 0.
func ActivationReconstruction[B tensor.Backend](param MaskParametrization[B]) nn.ForwardHook[B] {
	return func(_ nn.Module[B], _, output *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
		valid := param.PrunedOutputs().Complement(param.OriginalOutputs())

		shape := output.Shape().Clone()
		if len(shape) < 2 {
			panic(fmt.Sprintf("activation reconstruction: output must have a channel dimension, got shape %v", shape))
		}
		shape[1] = param.OriginalOutputs()

		reconstructed := tensor.Zeros[float32](shape, output.Backend())
		return reconstructed.IndexCopy(1, valid, output)
	}
}

// BiasHook returns a forward hook adding the module's detached "_bias" parameter
// to the output along the channel dimension. With pruneBias the entries of pruned
// channels are zeroed first.
func BiasHook[B tensor.Backend](param MaskParametrization[B], pruneBias bool) nn.ForwardHook[B] {
	return func(m nn.Module[B], _, output *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
		stored := m.ModuleBase().Parameter(biasParam)
		if stored == nil {
			return nil
		}

		bias := stored.Tensor()
		if pruneBias {
			bias = bias.IndexFill(0, param.PrunedOutputs().Slice(), 0)
		}

		shape := make([]int, len(output.Shape()))
		for i := range shape {
			shape[i] = 1
		}
		shape[1] = -1
		return output.Add(bias.Reshape(shape...))
	}
}
