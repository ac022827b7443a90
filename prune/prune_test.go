package prune_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/prune/backend/cpu"
	"github.com/born-ml/prune/nn"
	"github.com/born-ml/prune/prune"
	"github.com/born-ml/prune/tensor"
)

type Backend = *cpu.Backend

func TestPublicAPI(t *testing.T) {
	backend := cpu.New()
	first := nn.NewLinear(4, 6, backend)
	model := nn.NewSequential[Backend](
		first,
		nn.NewReLU[Backend](),
		nn.NewLinear(6, 2, backend),
	)

	cfg := prune.DefaultConfig()
	cfg.Defaults = prune.Options{prune.SparsityLevelOption: 0.5}
	pruner := prune.New[Backend](prune.NewL1NormPolicy[Backend](), cfg)

	require.NoError(t, pruner.Prepare(model, []prune.Target[Backend]{
		prune.ModuleTarget[Backend](first),
	}))
	require.NoError(t, pruner.Step(false))

	pruned, err := pruner.GetModulePrunedOutputs(first, "weight")
	require.NoError(t, err)
	assert.Equal(t, 3, pruned.Len())

	require.NoError(t, pruner.SquashMask(false))
	assert.False(t, nn.IsParametrized[Backend](first))
	assert.Equal(t, tensor.Shape{3, 4}, first.Weight().Tensor().Shape())

	out := nn.Call[Backend](model, tensor.Ones(tensor.Shape{5, 4}, backend))
	assert.Equal(t, tensor.Shape{5, 2}, out.Shape())

	err = pruner.SquashMask(false)
	assert.ErrorIs(t, err, prune.ErrNotPrepared)
}
