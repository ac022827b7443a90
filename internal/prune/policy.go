package prune

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/prune/internal/nn"
	"github.com/born-ml/prune/internal/parallel"
	"github.com/born-ml/prune/internal/tensor"
)

// MaskPolicy decides which output channels are pruned.
//
// Step calls UpdateMask once per group, in group order, with the group's first
// module and tensor name. The policy changes the pruned set returned by
// PrunedOutputsOf; for a paired group the second module shares that set. The
// group is passed for its Options and must not be modified.
type MaskPolicy[B tensor.Backend] interface {
	UpdateMask(module nn.Module[B], tensorName string, group *Group[B]) error
}

// PolicyFunc adapts a function to MaskPolicy.
type PolicyFunc[B tensor.Backend] func(module nn.Module[B], tensorName string, group *Group[B]) error

// UpdateMask calls f.
func (f PolicyFunc[B]) UpdateMask(module nn.Module[B], tensorName string, group *Group[B]) error {
	return f(module, tensorName, group)
}

// SparsityLevelOption is the option read by L1NormPolicy: the fraction of output
// channels to prune, in [0, 1].
const SparsityLevelOption = "sparsity_level"

// L1NormPolicy prunes the output channels whose rows of the stored weight have
// the smallest L1 norm, until the group's sparsity_level is reached. Channels
// pruned by earlier steps stay pruned.
type L1NormPolicy[B tensor.Backend] struct{}

// NewL1NormPolicy creates an L1NormPolicy.
func NewL1NormPolicy[B tensor.Backend]() *L1NormPolicy[B] {
	return &L1NormPolicy[B]{}
}

// UpdateMask implements MaskPolicy.
func (p *L1NormPolicy[B]) UpdateMask(module nn.Module[B], tensorName string, group *Group[B]) error {
	level, ok, err := group.Options.Float(SparsityLevelOption)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if level < 0 || level > 1 {
		return fmt.Errorf("%w: %s %v outside [0, 1]", ErrInvalidOption, SparsityLevelOption, level)
	}

	pruned, err := PrunedOutputsOf(module, tensorName)
	if err != nil {
		return err
	}

	weight := nn.OriginalTensor(module, tensorName)
	rows := weight.Shape()[0]
	target := int(level * float64(rows))
	if pruned.Len() >= target {
		return nil
	}

	norms := rowNorms(weight.Data(), rows)
	candidates := pruned.Complement(rows)
	sort.SliceStable(candidates, func(i, j int) bool {
		return norms[candidates[i]] < norms[candidates[j]]
	})

	for _, c := range candidates[:target-pruned.Len()] {
		pruned.Add(c)
	}
	return nil
}

// rowNorms returns the L1 norm of each of the rows of data viewed as a matrix.
func rowNorms(data []float32, rows int) []float64 {
	norms := make([]float64, rows)
	if rows == 0 {
		return norms
	}
	width := len(data) / rows
	parallel.For(rows, func(r int) {
		row := make([]float64, width)
		for j, v := range data[r*width : (r+1)*width] {
			row[j] = float64(v)
		}
		norms[r] = floats.Norm(row, 1)
	}, parallel.DefaultConfig())
	return norms
}
