package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/prune/internal/backend/cpu"
	"github.com/born-ml/prune/internal/nn"
	"github.com/born-ml/prune/internal/prune"
	"github.com/born-ml/prune/internal/tensor"
)

type Backend = *cpu.CPUBackend

func TestNewMLP(t *testing.T) {
	backend := cpu.New()
	model := NewMLP(DefaultMLPConfig(), backend)

	assert.Equal(t, 5, model.Len())
	out := nn.Call[Backend](model, tensor.Ones(tensor.Shape{2, 8}, backend))
	assert.Equal(t, tensor.Shape{2, 4}, out.Shape())
}

func TestNewCNN(t *testing.T) {
	backend := cpu.New()
	model := NewCNN(DefaultCNNConfig(), backend)

	pairs := model.ConvNormPairs()
	require.Len(t, pairs, 2)
	fqn, ok := nn.ModuleToFQN[Backend](model, pairs[1][1])
	require.True(t, ok)
	assert.Equal(t, "1.1", fqn)

	out := nn.Call[Backend](model, tensor.Ones(tensor.Shape{2, 3, 8, 8}, backend))
	assert.Equal(t, tensor.Shape{2, 10}, out.Shape())
}

func TestNew(t *testing.T) {
	backend := cpu.New()

	m, shape, err := New(MLPName, 3, backend)
	require.NoError(t, err)
	assert.NotNil(t, m)
	assert.Equal(t, tensor.Shape{3, 8}, shape)

	_, shape, err = New(CNNName, 1, backend)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 3, 8, 8}, shape)

	_, _, err = New("resnet", 1, backend)
	assert.Error(t, err)
}

func TestCNN_PrunePairs(t *testing.T) {
	backend := cpu.New()
	model := NewCNN(DefaultCNNConfig(), backend)

	var targets []prune.Target[Backend]
	for _, p := range model.ConvNormPairs() {
		targets = append(targets, prune.PairTarget(p[0], p[1]))
	}

	cfg := prune.DefaultConfig()
	cfg.Defaults = prune.Options{prune.SparsityLevelOption: 0.5}
	pruner := prune.New[Backend](prune.NewL1NormPolicy[Backend](), cfg)
	require.NoError(t, pruner.Prepare(model, targets))
	require.NoError(t, pruner.Step(false))

	input := tensor.Ones(tensor.Shape{1, 3, 8, 8}, backend)
	assert.Equal(t, tensor.Shape{1, 10}, nn.Call[Backend](model, input).Shape())

	require.NoError(t, pruner.SquashMask(false))
	out := nn.Call[Backend](model, input)
	assert.Equal(t, tensor.Shape{1, 10}, out.Shape())

	conv := model.ConvNormPairs()[0][0].(*nn.Conv2D[Backend])
	assert.Equal(t, tensor.Shape{4, 3, 3, 3}, conv.Weight().Tensor().Shape())
	bn := model.ConvNormPairs()[0][1].(*nn.BatchNorm2D[Backend])
	assert.Equal(t, tensor.Shape{8}, bn.Weight().Tensor().Shape())
}
