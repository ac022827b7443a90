package prune

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/prune/internal/autodiff"
	"github.com/born-ml/prune/internal/backend/cpu"
	"github.com/born-ml/prune/internal/nn"
	"github.com/born-ml/prune/internal/tensor"
)

func TestPruner_DiscoverPruneSquash(t *testing.T) {
	linear := knownLinear()
	model := nn.NewSequential[Backend](linear)

	calls := 0
	pruner := New[Backend](pruneIndices(&calls, 1, 3), DefaultConfig())
	require.NoError(t, pruner.Prepare(model, nil))

	groups := pruner.Groups()
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"0.weight"}, groups[0].TensorFQNs)
	assert.Equal(t, []string{"0"}, groups[0].ModuleFQNs)
	assert.Equal(t, []string{"weight"}, groups[0].TensorNames)

	require.NoError(t, pruner.Step(false))
	assert.Equal(t, 1, calls)

	pruned, err := pruner.GetModulePrunedOutputs(linear, "weight")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, pruned.Slice())

	x := input(t, []float32{1, 2}, tensor.Shape{1, 2})
	assert.Equal(t, []float32{2, 0, 6, 0}, nn.Call[Backend](model, x).Data())

	require.NoError(t, pruner.SquashMask(false))
	assert.Equal(t, tensor.Shape{2, 2}, linear.Weight().Tensor().Shape())
	assert.Equal(t, []float32{1, 0, 1, 1}, linear.Weight().Tensor().Data())
	assert.False(t, linear.HasBuffer("mask"))
	assert.False(t, linear.HasParameter("mask"))
	assert.False(t, nn.IsParametrized[Backend](linear))

	// Hooks keep the original width after squashing.
	assert.Equal(t, []float32{2, 0, 6, 0}, nn.Call[Backend](model, x).Data())

	err = pruner.SquashMask(false)
	assert.ErrorIs(t, err, ErrNotPrepared)

	_, err = pruner.GetModulePrunedOutputs(linear, "weight")
	assert.ErrorIs(t, err, ErrNotParametrized)

	pruner.RemoveHooks()
	assert.Equal(t, 0, linear.NumForwardHooks())
	assert.Equal(t, []float32{1, 3}, nn.Call[Backend](model, x).Data())
}

func TestPruner_MaskLengthFixedAtInstallation(t *testing.T) {
	linear := knownLinear()
	model := nn.NewSequential[Backend](linear)

	calls := 0
	pruner := New[Backend](pruneIndices(&calls, 0, 2), DefaultConfig())
	require.NoError(t, pruner.Prepare(model, []Target[Backend]{ModuleTarget[Backend](linear)}))

	mask := linear.Buffer("mask")
	require.NotNil(t, mask)
	assert.Equal(t, tensor.Int64, mask.DType())
	assert.Equal(t, int64(4), mask.AsInt64()[0])

	for range 3 {
		require.NoError(t, pruner.Step(false))
	}

	assert.Same(t, mask, linear.Buffer("mask"))
	assert.Equal(t, int64(4), mask.AsInt64()[0])
	assert.Equal(t, tensor.Shape{2, 2}, linear.Tensor("weight").Shape())
	assert.Equal(t, tensor.Shape{4, 2}, nn.OriginalTensor[Backend](linear, "weight").Shape())
}

func TestPruner_ReconstructedWidth(t *testing.T) {
	const outputs = 5
	for k := 0; k < outputs; k++ {
		linear := nn.NewLinear(3, outputs, cpu.New())
		model := nn.NewSequential[Backend](linear)

		pruned := make([]int, k)
		for i := range pruned {
			pruned[i] = i
		}
		calls := 0
		pruner := New[Backend](pruneIndices(&calls, pruned...), DefaultConfig())
		require.NoError(t, pruner.Prepare(model, nil))
		require.NoError(t, pruner.Step(false))

		out := nn.Call[Backend](model, tensor.Ones(tensor.Shape{2, 3}, cpu.New()))
		assert.Equal(t, tensor.Shape{2, outputs}, out.Shape(), "pruned %d", k)
		for _, c := range pruned {
			assert.Zero(t, out.At(0, c))
			assert.Zero(t, out.At(1, c))
		}
	}
}

func TestPruner_PairSharesPrunedOutputs(t *testing.T) {
	model, conv, bn := convBN()

	calls := 0
	var seen []nn.Module[Backend]
	policy := PolicyFunc[Backend](func(module nn.Module[Backend], tensorName string, g *Group[Backend]) error {
		seen = append(seen, module)
		return pruneIndices(&calls, 0, 2, 3)(module, tensorName, g)
	})

	pruner := New[Backend](policy, DefaultConfig())
	require.NoError(t, pruner.Prepare(model, []Target[Backend]{PairTarget[Backend](conv, bn)}))

	g := pruner.Groups()[0]
	assert.True(t, g.Paired())
	assert.Equal(t, []string{"0.weight", "1.weight"}, g.TensorFQNs)

	convSet, err := pruner.GetModulePrunedOutputs(conv, "weight")
	require.NoError(t, err)
	bnSet, err := pruner.GetModulePrunedOutputs(bn, "weight")
	require.NoError(t, err)
	assert.Same(t, convSet, bnSet)

	require.NoError(t, pruner.Step(false))
	assert.Equal(t, 1, calls)
	assert.Equal(t, []nn.Module[Backend]{conv}, seen)
	assert.Equal(t, []int{0, 2, 3}, bnSet.Slice())

	// The BatchNorm weight is zeroed, not shrunk.
	assert.Equal(t, tensor.Shape{4}, bn.Tensor("weight").Shape())
	assert.Equal(t, []float32{0, 1, 0, 0}, bn.Tensor("weight").Data())
	assert.Nil(t, bn.Bias())

	out := nn.Call[Backend](model, tensor.Ones(tensor.Shape{1, 1, 4, 4}, cpu.New()))
	require.Equal(t, tensor.Shape{1, 4, 4, 4}, out.Shape())
	for _, c := range []int{0, 2, 3} {
		for i := 0; i < 4; i++ {
			for j := 0; j < 4; j++ {
				assert.Zero(t, out.At(0, c, i, j))
			}
		}
	}

	require.NoError(t, pruner.SquashMask(false))
	assert.Equal(t, tensor.Shape{1, 1, 3, 3}, conv.Weight().Tensor().Shape())
	assert.Equal(t, tensor.Shape{4}, bn.Weight().Tensor().Shape())
	assert.False(t, conv.HasBuffer("mask"))
	assert.False(t, bn.HasBuffer("mask"))
}

func TestPruner_BiasHandling(t *testing.T) {
	x := input(t, []float32{1, 2}, tensor.Shape{1, 2})

	t.Run("bias is detached", func(t *testing.T) {
		linear := knownLinear()
		pruner := New[Backend](PolicyFunc[Backend](func(nn.Module[Backend], string, *Group[Backend]) error { return nil }), DefaultConfig())
		require.NoError(t, pruner.Prepare(nn.NewSequential[Backend](linear), nil))

		assert.True(t, linear.HasParameter("bias"))
		assert.Nil(t, linear.Bias())
		require.NotNil(t, linear.Parameter("_bias"))
		assert.Equal(t, []float32{1, 2, 3, 4}, linear.Parameter("_bias").Tensor().Data())
		assert.Equal(t, []float32{2, 4, 6, 10}, nn.Call[Backend](linear, x).Data())
	})

	t.Run("bias kept on pruned channels without bias pruning", func(t *testing.T) {
		linear := knownLinear()
		cfg := DefaultConfig()
		cfg.PruneBias = false

		calls := 0
		pruner := New[Backend](pruneIndices(&calls, 1), cfg)
		require.NoError(t, pruner.Prepare(nn.NewSequential[Backend](linear), nil))
		require.NoError(t, pruner.Step(false))

		assert.Equal(t, []float32{2, 2, 6, 10}, nn.Call[Backend](linear, x).Data())
		assert.Equal(t, []float32{1, 2, 3, 4}, linear.Parameter("_bias").Tensor().Data())
	})

	t.Run("bias as the target", func(t *testing.T) {
		linear := knownLinear()
		calls := 0
		pruner := New[Backend](pruneIndices(&calls), DefaultConfig())
		require.NoError(t, pruner.Prepare(nn.NewSequential[Backend](linear), []Target[Backend]{PathTarget[Backend]("0.bias")}))
		require.NoError(t, pruner.Step(false))

		assert.True(t, nn.IsParametrized[Backend](linear, "bias"))
		assert.False(t, linear.HasParameter("_bias"))
		assert.Equal(t, 1, linear.NumForwardHooks())
		assert.Equal(t, []float32{2, 4, 6, 10}, nn.Call[Backend](linear, x).Data())
	})

	t.Run("no bias", func(t *testing.T) {
		linear := nn.NewLinearWithBias(2, 2, false, cpu.New())
		pruner := New[Backend](nil, DefaultConfig())
		require.NoError(t, pruner.Prepare(nn.NewSequential[Backend](linear), nil))

		assert.False(t, linear.HasParameter("_bias"))
		assert.Equal(t, 1, linear.NumForwardHooks())
	})
}

func TestPruner_StepScope(t *testing.T) {
	t.Run("disabled updates skip the policy", func(t *testing.T) {
		calls := 0
		pruner := New[Backend](pruneIndices(&calls, 0), DefaultConfig())
		require.NoError(t, pruner.Prepare(nn.NewSequential[Backend](knownLinear()), nil))

		pruner.EnableMaskUpdate(false)
		assert.False(t, pruner.MaskUpdateEnabled())
		require.NoError(t, pruner.Step(false))
		assert.Zero(t, calls)

		pruner.EnableMaskUpdate(true)
		require.NoError(t, pruner.Step(false))
		assert.Equal(t, 1, calls)
	})

	t.Run("recording is suspended and restored", func(t *testing.T) {
		tape := autodiff.NewGradientTape()
		tape.StartRecording()

		cfg := DefaultConfig()
		cfg.Recorder = tape
		recording := true
		pruner := New[Backend](PolicyFunc[Backend](func(nn.Module[Backend], string, *Group[Backend]) error {
			recording = tape.IsRecording()
			return nil
		}), cfg)
		require.NoError(t, pruner.Prepare(nn.NewSequential[Backend](knownLinear()), nil))

		require.NoError(t, pruner.Step(false))
		assert.False(t, recording)
		assert.True(t, tape.IsRecording())
	})

	t.Run("recording is restored when the policy fails", func(t *testing.T) {
		tape := autodiff.NewGradientTape()
		tape.StartRecording()

		cfg := DefaultConfig()
		cfg.Recorder = tape
		pruner := New[Backend](PolicyFunc[Backend](func(nn.Module[Backend], string, *Group[Backend]) error {
			return ErrInvalidOption
		}), cfg)
		require.NoError(t, pruner.Prepare(nn.NewSequential[Backend](knownLinear()), nil))

		err := pruner.Step(false)
		assert.ErrorIs(t, err, ErrInvalidOption)
		assert.Contains(t, err.Error(), "0.weight")
		assert.True(t, tape.IsRecording())
	})

	t.Run("nil policy", func(t *testing.T) {
		pruner := New[Backend](nil, DefaultConfig())
		require.NoError(t, pruner.Prepare(nn.NewSequential[Backend](knownLinear()), nil))
		assert.ErrorIs(t, pruner.Step(false), ErrNilPolicy)
	})
}

func TestPruner_StepFindsAutodiffTape(t *testing.T) {
	type AB = *autodiff.AutodiffBackend[*cpu.CPUBackend]
	backend := autodiff.New(cpu.New())
	linear := nn.NewLinear(2, 3, backend)
	model := nn.NewSequential[AB](linear)

	backend.Tape().StartRecording()
	recorded := -1
	pruner := New[AB](PolicyFunc[AB](func(m nn.Module[AB], name string, _ *Group[AB]) error {
		before := backend.Tape().Len()
		_ = m.ModuleBase().Tensor(name) // runs the parametrization
		recorded = backend.Tape().Len() - before
		return nil
	}), DefaultConfig())
	require.NoError(t, pruner.Prepare(model, nil))

	require.NoError(t, pruner.Step(false))
	assert.Zero(t, recorded)
	assert.True(t, backend.Tape().IsRecording())

	before := backend.Tape().Len()
	nn.Call[AB](model, tensor.Ones(tensor.Shape{1, 2}, backend))
	assert.Greater(t, backend.Tape().Len(), before)
}

func TestPruner_UsePath(t *testing.T) {
	model, conv, bn := convBN()
	outer := nn.NewSequential[Backend](model)

	var seen nn.Module[Backend]
	pruner := New[Backend](PolicyFunc[Backend](func(m nn.Module[Backend], _ string, _ *Group[Backend]) error {
		seen = m
		return nil
	}), DefaultConfig())
	require.NoError(t, pruner.Prepare(outer, []Target[Backend]{PairTarget[Backend](conv, bn)}))

	assert.Equal(t, []string{"0.0", "0.1"}, pruner.Groups()[0].ModuleFQNs)
	require.NoError(t, pruner.Step(true))
	assert.Same(t, conv, seen)

	require.NoError(t, pruner.SquashMask(true))
	assert.False(t, nn.IsParametrized[Backend](bn))
}

// prunedObserver records ObservePruned calls.
type prunedObserver struct {
	steps  int
	pruned map[string]int
}

func (o *prunedObserver) ObserveStep()   { o.steps++ }
func (o *prunedObserver) ObserveSquash() {}

func (o *prunedObserver) ObservePruned(tensorFQN string, pruned, _ int) {
	o.pruned[tensorFQN] = pruned
}

func TestPruner_StepObservesResolvedModules(t *testing.T) {
	model, conv, bn := convBN()
	outer := nn.NewSequential[Backend](model)

	observer := &prunedObserver{pruned: map[string]int{}}
	cfg := DefaultConfig()
	cfg.Observer = observer

	calls := 0
	pruner := New[Backend](pruneIndices(&calls, 0, 2), cfg)
	require.NoError(t, pruner.Prepare(outer, []Target[Backend]{PairTarget[Backend](conv, bn)}))
	require.NoError(t, pruner.Step(true))

	assert.Equal(t, 1, observer.steps)
	assert.Equal(t, map[string]int{"0.0.weight": 2, "0.1.weight": 2}, observer.pruned)
}

func TestPruner_PrepareErrors(t *testing.T) {
	t.Run("already prepared", func(t *testing.T) {
		model := nn.NewSequential[Backend](knownLinear())
		pruner := New[Backend](nil, DefaultConfig())
		require.NoError(t, pruner.Prepare(model, nil))
		assert.ErrorIs(t, pruner.Prepare(model, nil), ErrAlreadyPrepared)
	})

	t.Run("unsupported module", func(t *testing.T) {
		c := newCustom()
		model := nn.NewSequential[Backend](c)

		pruner := New[Backend](nil, DefaultConfig())
		err := pruner.Prepare(model, []Target[Backend]{ModuleTarget[Backend](c)})
		assert.ErrorIs(t, err, ErrUnsupportedModule)
	})

	t.Run("tensor configured twice", func(t *testing.T) {
		linear := knownLinear()
		model := nn.NewSequential[Backend](linear)

		pruner := New[Backend](nil, DefaultConfig())
		err := pruner.Prepare(model, []Target[Backend]{
			ModuleTarget[Backend](linear),
			PathTarget[Backend]("0.weight"),
		})
		require.ErrorIs(t, err, ErrDuplicateTensor)

		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, 1, cfgErr.Index)
		assert.Equal(t, "0.weight", cfgErr.Details)
		assert.False(t, nn.IsParametrized[Backend](linear))
		assert.Equal(t, 0, linear.NumForwardHooks())
	})

	t.Run("tensor already parametrized", func(t *testing.T) {
		linear := knownLinear()
		model := nn.NewSequential[Backend](linear)
		require.NoError(t, nn.RegisterParametrization[Backend](linear, "weight", NewZeroesParametrization[Backend](scalarMask(4))))

		pruner := New[Backend](nil, DefaultConfig())
		err := pruner.Prepare(model, nil)
		assert.ErrorIs(t, err, ErrAlreadyParametrized)
		assert.Equal(t, 1, nn.ParametrizationsOf[Backend](linear, "weight").Len())
		assert.Equal(t, 0, linear.NumForwardHooks())
	})

	t.Run("needs-zeros module on its own", func(t *testing.T) {
		bn := nn.NewBatchNorm2D(3, cpu.New())
		model := nn.NewSequential[Backend](bn)

		calls := 0
		pruner := New[Backend](pruneIndices(&calls, 1), DefaultConfig())
		require.NoError(t, pruner.Prepare(model, []Target[Backend]{PathTarget[Backend]("0.weight")}))
		require.NoError(t, pruner.Step(false))

		assert.Equal(t, 0, countActivationHooks(pruner))
		assert.Equal(t, []float32{1, 0, 1}, bn.Tensor("weight").Data())
		assert.Equal(t, []float32{1, 1, 1}, nn.OriginalTensor[Backend](bn, "weight").Data())
	})
}

func countActivationHooks(p *Pruner[Backend]) int {
	return len(p.activationHandles)
}

func TestPruner_MaskInParameterNamespace(t *testing.T) {
	linear := knownLinear()
	linear.RegisterParameter("mask", nn.NewParameter("mask", tensor.Full[float32](tensor.Shape{}, 4, cpu.New())))
	model := nn.NewSequential[Backend](linear)

	calls := 0
	pruner := New[Backend](pruneIndices(&calls, 2), DefaultConfig())
	require.NoError(t, pruner.Prepare(model, nil))
	assert.False(t, linear.HasBuffer("mask"))

	state := pruner.State()
	require.Len(t, state, 1)
	assert.Equal(t, MaskInParameter, state[0].MaskStorage)
	assert.Equal(t, 4, state[0].OriginalOutputs)

	require.NoError(t, pruner.Step(false))
	require.NoError(t, pruner.SquashMask(false))
	assert.False(t, linear.HasParameter("mask"))
	assert.Equal(t, tensor.Shape{3, 2}, linear.Weight().Tensor().Shape())
}

func TestPruner_CustomParametrization(t *testing.T) {
	linear := knownLinear()
	model := nn.NewSequential[Backend](linear)

	built := 0
	target := ModuleTarget[Backend](linear)
	target.Parametrization = func(mask *tensor.RawTensor) MaskParametrization[Backend] {
		built++
		return NewPruningParametrization[Backend](mask)
	}

	calls := 0
	pruner := New[Backend](pruneIndices(&calls, 0), DefaultConfig())
	require.NoError(t, pruner.Prepare(model, []Target[Backend]{target}))
	require.NoError(t, pruner.Step(false))

	assert.Equal(t, 1, built)
	assert.Equal(t, tensor.Shape{3, 2}, linear.Tensor("weight").Shape())
	x := input(t, []float32{1, 2}, tensor.Shape{1, 2})
	assert.Equal(t, []float32{0, 4, 6, 10}, nn.Call[Backend](model, x).Data())
}

func TestPruner_StateAndString(t *testing.T) {
	model, conv, bn := convBN()
	model.Add(nn.NewFlatten[Backend]())

	cfg := DefaultConfig()
	cfg.Defaults = Options{SparsityLevelOption: 0.5}

	calls := 0
	pruner := New[Backend](pruneIndices(&calls, 1), cfg)
	require.NoError(t, pruner.Prepare(model, []Target[Backend]{PairTarget[Backend](conv, bn)}))
	require.NoError(t, pruner.Step(false))

	state := pruner.State()
	require.Len(t, state, 2)
	assert.Equal(t, "0.weight", state[0].TensorFQN)
	assert.Equal(t, KindConv2D, state[0].Kind)
	assert.True(t, state[0].Prepared)
	assert.Equal(t, []int{1}, state[0].PrunedOutputs)
	assert.Equal(t, []int{3, 1, 3, 3}, state[0].Shape)
	assert.InDelta(t, 0.25, state[0].Sparsity(), 1e-9)
	assert.Equal(t, KindBatchNorm2D, state[1].Kind)
	assert.Equal(t, []int{4}, state[1].Shape)

	s := pruner.String()
	assert.Contains(t, s, "Group 0")
	assert.Contains(t, s, "tensor_fqn: 0.weight, 1.weight")
	assert.Contains(t, s, "sparsity_level: 0.5")

	require.NoError(t, pruner.SquashMask(false))
	state = pruner.State()
	assert.False(t, state[0].Prepared)
	assert.Equal(t, 3, state[0].OriginalOutputs)
}
