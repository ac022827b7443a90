package prune

import (
	"fmt"
	"strings"

	"github.com/born-ml/prune/internal/nn"
	"github.com/born-ml/prune/internal/tensor"
)

// weightName is the tensor pruned when a target does not name one.
const weightName = "weight"

// Target is one entry of a pruning configuration. Build it with ModuleTarget,
// PathTarget or PairTarget, then set Options or Parametrization as needed.
//
// A path target may also set Module, ModuleFQN and TensorName; each one that is
// set must agree with what TensorFQN resolves to.
type Target[B tensor.Backend] struct {
	Module     nn.Module[B]
	ModuleFQN  string
	TensorName string
	TensorFQN  string

	// Pair holds (Conv2D, BatchNorm2D) for a paired group.
	Pair []nn.Module[B]

	// Options override the pruner's defaults for this group.
	Options Options

	// Parametrization replaces the installed parametrization variant.
	Parametrization ParametrizationFactory[B]
}

// ModuleTarget prunes the "weight" tensor of m.
func ModuleTarget[B tensor.Backend](m nn.Module[B]) Target[B] {
	return Target[B]{Module: m}
}

// PathTarget prunes the tensor at tensorFQN, e.g. "features.0.weight".
func PathTarget[B tensor.Backend](tensorFQN string) Target[B] {
	return Target[B]{TensorFQN: tensorFQN}
}

// PairTarget prunes conv and norm together: the normalization layer always
// has the same pruned channels as the convolution.
func PairTarget[B tensor.Backend](conv, norm nn.Module[B]) Target[B] {
	return Target[B]{Pair: []nn.Module[B]{conv, norm}}
}

// WithOptions returns a copy of t carrying opts.
func (t Target[B]) WithOptions(opts Options) Target[B] {
	t.Options = opts
	return t
}

// Group is a normalized configuration entry: one module, or two for a pair,
// with the tensor to prune on each.
//
// TensorFQNs[i] is always nn.JoinFQN(ModuleFQNs[i], TensorNames[i]).
type Group[B tensor.Backend] struct {
	Modules         []nn.Module[B]
	TensorNames     []string
	ModuleFQNs      []string
	TensorFQNs      []string
	Options         Options
	Parametrization ParametrizationFactory[B]
}

// Paired reports whether the group is a (Conv2D, BatchNorm2D) pair.
func (g *Group[B]) Paired() bool {
	return len(g.Modules) == 2
}

// normalize resolves target i against model.
func normalize[B tensor.Backend](model nn.Module[B], i int, t Target[B], defaults Options) (*Group[B], error) {
	opts, err := mergeOptions(defaults, t.Options)
	if err != nil {
		return nil, &ConfigError{Index: i, Field: "options", Details: err.Error(), Err: ErrInvalidTarget}
	}
	g := &Group[B]{Options: opts, Parametrization: t.Parametrization}

	switch {
	case t.Pair != nil:
		if err := checkPair(t.Pair); err != nil {
			return nil, &ConfigError{Index: i, Field: "pair", Details: err.Error(), Err: ErrInvalidPair}
		}
		for _, m := range t.Pair {
			fqn, ok := nn.ModuleToFQN(model, m)
			if !ok {
				return nil, &ConfigError{Index: i, Field: "pair", Details: fmt.Sprintf("%T is not part of the model", m), Err: ErrModuleNotFound}
			}
			g.add(m, trimFQN(fqn), weightName)
		}

	case t.TensorFQN != "":
		path := trimFQN(t.TensorFQN)
		modulePath, tensorName := nn.SplitFQN(path)
		m, ok := nn.FQNToModule(model, modulePath)
		if !ok {
			return nil, &ConfigError{Index: i, Field: "tensor_fqn", Details: fmt.Sprintf("no module at %q", modulePath), Err: ErrModuleNotFound}
		}
		if t.Module != nil && t.Module != m {
			return nil, &ConfigError{Index: i, Field: "module", Details: fmt.Sprintf("%q resolves to a different module", path), Err: ErrConfigConflict}
		}
		if t.ModuleFQN != "" && trimFQN(t.ModuleFQN) != modulePath {
			return nil, &ConfigError{Index: i, Field: "module_fqn", Details: fmt.Sprintf("%q vs %q", t.ModuleFQN, modulePath), Err: ErrConfigConflict}
		}
		if t.TensorName != "" && t.TensorName != tensorName {
			return nil, &ConfigError{Index: i, Field: "tensor_name", Details: fmt.Sprintf("%q vs %q", t.TensorName, tensorName), Err: ErrConfigConflict}
		}
		g.add(m, modulePath, tensorName)

	case t.Module != nil:
		fqn, ok := nn.ModuleToFQN(model, t.Module)
		if !ok {
			return nil, &ConfigError{Index: i, Field: "module", Details: fmt.Sprintf("%T is not part of the model", t.Module), Err: ErrModuleNotFound}
		}
		tensorName := t.TensorName
		if tensorName == "" {
			tensorName = weightName
		}
		g.add(t.Module, trimFQN(fqn), tensorName)

	default:
		return nil, &ConfigError{Index: i, Details: "empty target", Err: ErrInvalidTarget}
	}

	for j, m := range g.Modules {
		if !m.ModuleBase().HasParameter(g.TensorNames[j]) {
			return nil, &ConfigError{Index: i, Field: "tensor_name", Details: fmt.Sprintf("%q", g.TensorFQNs[j]), Err: ErrTensorNotFound}
		}
	}

	return g, nil
}

func (g *Group[B]) add(m nn.Module[B], moduleFQN, tensorName string) {
	g.Modules = append(g.Modules, m)
	g.ModuleFQNs = append(g.ModuleFQNs, moduleFQN)
	g.TensorNames = append(g.TensorNames, tensorName)
	g.TensorFQNs = append(g.TensorFQNs, nn.JoinFQN(moduleFQN, tensorName))
}

func checkPair[B tensor.Backend](pair []nn.Module[B]) error {
	if len(pair) != 2 {
		return fmt.Errorf("got %d modules", len(pair))
	}
	if _, ok := pair[0].(*nn.Conv2D[B]); !ok {
		return fmt.Errorf("first module is %T", pair[0])
	}
	if _, ok := pair[1].(*nn.BatchNorm2D[B]); !ok {
		return fmt.Errorf("second module is %T", pair[1])
	}
	return nil
}

func trimFQN(fqn string) string {
	return strings.TrimPrefix(fqn, ".")
}
