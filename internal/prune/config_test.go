package prune

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/prune/internal/backend/cpu"
	"github.com/born-ml/prune/internal/nn"
)

func TestNormalize(t *testing.T) {
	backend := cpu.New()
	first := nn.NewLinear(4, 3, backend)
	inner := nn.NewSequential[Backend](first, nn.NewReLU[Backend]())
	last := nn.NewLinear(3, 2, backend)
	model := nn.NewSequential[Backend](inner, last)

	t.Run("module target", func(t *testing.T) {
		g, err := normalize[Backend](model, 0, ModuleTarget[Backend](first), nil)
		require.NoError(t, err)
		assert.Equal(t, []nn.Module[Backend]{first}, g.Modules)
		assert.Equal(t, []string{"0.0"}, g.ModuleFQNs)
		assert.Equal(t, []string{"weight"}, g.TensorNames)
		assert.Equal(t, []string{"0.0.weight"}, g.TensorFQNs)
		assert.False(t, g.Paired())
	})

	t.Run("path target with leading dot", func(t *testing.T) {
		g, err := normalize[Backend](model, 0, PathTarget[Backend](".1.bias"), nil)
		require.NoError(t, err)
		assert.Equal(t, []nn.Module[Backend]{last}, g.Modules)
		assert.Equal(t, []string{"1"}, g.ModuleFQNs)
		assert.Equal(t, []string{"bias"}, g.TensorNames)
		assert.Equal(t, []string{"1.bias"}, g.TensorFQNs)
	})

	t.Run("path target agreeing with explicit fields", func(t *testing.T) {
		target := Target[Backend]{TensorFQN: "1.weight", Module: last, ModuleFQN: "1", TensorName: "weight"}
		_, err := normalize[Backend](model, 0, target, nil)
		require.NoError(t, err)
	})

	t.Run("root module", func(t *testing.T) {
		g, err := normalize[Backend](last, 0, ModuleTarget[Backend](last), nil)
		require.NoError(t, err)
		assert.Equal(t, []string{""}, g.ModuleFQNs)
		assert.Equal(t, []string{"weight"}, g.TensorFQNs)
	})

	errorCases := []struct {
		name   string
		target Target[Backend]
		field  string
		want   error
	}{
		{"conflicting module", Target[Backend]{TensorFQN: "1.weight", Module: first}, "module", ErrConfigConflict},
		{"conflicting module path", Target[Backend]{TensorFQN: "1.weight", ModuleFQN: "0"}, "module_fqn", ErrConfigConflict},
		{"conflicting tensor name", Target[Backend]{TensorFQN: "1.weight", TensorName: "bias"}, "tensor_name", ErrConfigConflict},
		{"unknown path", PathTarget[Backend]("7.weight"), "tensor_fqn", ErrModuleNotFound},
		{"unknown tensor", PathTarget[Backend]("1.gamma"), "tensor_name", ErrTensorNotFound},
		{"foreign module", ModuleTarget[Backend](nn.NewLinear(1, 1, backend)), "module", ErrModuleNotFound},
		{"bad pair", PairTarget[Backend](first, last), "pair", ErrInvalidPair},
		{"empty", Target[Backend]{}, "", ErrInvalidTarget},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := normalize[Backend](model, 3, tc.target, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, 3, cfgErr.Index)
			assert.Equal(t, tc.field, cfgErr.Field)
		})
	}
}

func TestNormalize_Pair(t *testing.T) {
	model, conv, bn := convBN()

	g, err := normalize[Backend](model, 0, PairTarget[Backend](conv, bn), nil)
	require.NoError(t, err)
	assert.True(t, g.Paired())
	assert.Equal(t, []string{"0", "1"}, g.ModuleFQNs)
	assert.Equal(t, []string{"weight", "weight"}, g.TensorNames)
	assert.Equal(t, []string{"0.weight", "1.weight"}, g.TensorFQNs)

	_, err = normalize[Backend](model, 0, PairTarget[Backend](bn, conv), nil)
	assert.ErrorIs(t, err, ErrInvalidPair)
}

func TestNormalize_Options(t *testing.T) {
	model, conv, _ := convBN()
	defaults := Options{
		SparsityLevelOption: 0.25,
		"schedule":          map[string]any{"every": 2},
	}

	g1, err := normalize[Backend](model, 0, ModuleTarget[Backend](conv).WithOptions(Options{SparsityLevelOption: 0.75}), defaults)
	require.NoError(t, err)
	g2, err := normalize[Backend](model, 1, PathTarget[Backend]("1.weight"), defaults)
	require.NoError(t, err)

	assert.Equal(t, 0.75, g1.Options[SparsityLevelOption])
	assert.Equal(t, 0.25, g2.Options[SparsityLevelOption])

	g1.Options["schedule"].(map[string]any)["every"] = 5
	assert.Equal(t, 2, g2.Options["schedule"].(map[string]any)["every"])
	assert.Equal(t, 2, defaults["schedule"].(map[string]any)["every"])
}

func TestOptions_Float(t *testing.T) {
	opts := Options{"a": 0.5, "b": 3, "c": "x", "d": float32(0.25), "e": uint64(1)}

	v, ok, err := opts.Float("a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0.5, v)

	v, _, err = opts.Float("b")
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)

	v, _, err = opts.Float("d")
	require.NoError(t, err)
	assert.Equal(t, 0.25, v)

	v, _, err = opts.Float("e")
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	_, ok, err = opts.Float("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = opts.Float("c")
	assert.ErrorIs(t, err, ErrInvalidOption)
}
