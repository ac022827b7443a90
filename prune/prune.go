// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package prune provides structured output-channel pruning for nn modules.
//
// A Pruner attaches a mask to every configured weight, lets a MaskPolicy pick
// the output channels to prune on each Step, and bakes the result into the
// weights on SquashMask.
//
// Example:
//
//	type Backend = *cpu.Backend
//
//	cfg := prune.DefaultConfig()
//	cfg.Defaults = prune.Options{prune.SparsityLevelOption: 0.5}
//	pruner := prune.New[Backend](prune.NewL1NormPolicy[Backend](), cfg)
//
//	if err := pruner.Prepare(model, nil); err != nil { // nil discovers targets
//	    log.Fatal(err)
//	}
//	if err := pruner.Step(false); err != nil {
//	    log.Fatal(err)
//	}
//	if err := pruner.SquashMask(false); err != nil {
//	    log.Fatal(err)
//	}
package prune

import (
	"github.com/born-ml/prune/internal/nn"
	"github.com/born-ml/prune/internal/prune"
	"github.com/born-ml/prune/internal/tensor"
)

// Pruner prepares, updates and squashes structured pruning masks.
type Pruner[B tensor.Backend] = prune.Pruner[B]

// Config holds pruner settings.
type Config = prune.Config

// DefaultConfig returns the default pruner configuration.
func DefaultConfig() Config {
	return prune.DefaultConfig()
}

// New creates a Pruner driven by policy.
func New[B tensor.Backend](policy MaskPolicy[B], cfg Config) *Pruner[B] {
	return prune.New(policy, cfg)
}

// Configuration

// Target is one configuration entry.
type Target[B tensor.Backend] = prune.Target[B]

// Group is a normalized configuration entry.
type Group[B tensor.Backend] = prune.Group[B]

// Options are per-group policy options.
type Options = prune.Options

// ModuleTarget prunes the weight of m.
func ModuleTarget[B tensor.Backend](m nn.Module[B]) Target[B] {
	return prune.ModuleTarget(m)
}

// PathTarget prunes the tensor at a dotted path such as "0.weight".
func PathTarget[B tensor.Backend](tensorFQN string) Target[B] {
	return prune.PathTarget[B](tensorFQN)
}

// PairTarget prunes a convolution and its batch norm with shared channels.
func PairTarget[B tensor.Backend](conv, norm nn.Module[B]) Target[B] {
	return prune.PairTarget(conv, norm)
}

// Module kinds

// Kind classifies modules for pruning.
type Kind = prune.Kind

// KindSet is a set of module kinds.
type KindSet = prune.KindSet

// Module kinds.
const (
	KindUnsupported = prune.KindUnsupported
	KindLinear      = prune.KindLinear
	KindConv2D      = prune.KindConv2D
	KindBatchNorm2D = prune.KindBatchNorm2D
)

// NewKindSet builds a set from kinds.
func NewKindSet(kinds ...Kind) KindSet {
	return prune.NewKindSet(kinds...)
}

// Policies and parametrizations

// MaskPolicy decides which output channels of a group are pruned.
type MaskPolicy[B tensor.Backend] = prune.MaskPolicy[B]

// PolicyFunc adapts a function to MaskPolicy.
type PolicyFunc[B tensor.Backend] = prune.PolicyFunc[B]

// L1NormPolicy prunes the output channels with the smallest L1 norm.
type L1NormPolicy[B tensor.Backend] = prune.L1NormPolicy[B]

// SparsityLevelOption is the option key read by L1NormPolicy.
const SparsityLevelOption = prune.SparsityLevelOption

// NewL1NormPolicy creates an L1NormPolicy.
func NewL1NormPolicy[B tensor.Backend]() *L1NormPolicy[B] {
	return prune.NewL1NormPolicy[B]()
}

// IndexSet is an ordered set of output channel indices.
type IndexSet = prune.IndexSet

// NewIndexSet creates a set holding indices.
func NewIndexSet(indices ...int) *IndexSet {
	return prune.NewIndexSet(indices...)
}

// MaskParametrization is a parametrization driven by a pruned-output set.
type MaskParametrization[B tensor.Backend] = prune.MaskParametrization[B]

// ParametrizationFactory builds a MaskParametrization from a mask.
type ParametrizationFactory[B tensor.Backend] = prune.ParametrizationFactory[B]

// Observer receives pruning progress.
type Observer = prune.Observer

// TensorState describes one configured tensor.
type TensorState = prune.TensorState

// Errors.
var (
	ErrConfigConflict      = prune.ErrConfigConflict
	ErrInvalidPair         = prune.ErrInvalidPair
	ErrModuleNotFound      = prune.ErrModuleNotFound
	ErrTensorNotFound      = prune.ErrTensorNotFound
	ErrInvalidTarget       = prune.ErrInvalidTarget
	ErrDuplicateTensor     = prune.ErrDuplicateTensor
	ErrUnsupportedModule   = prune.ErrUnsupportedModule
	ErrNotParametrized     = prune.ErrNotParametrized
	ErrAlreadyParametrized = prune.ErrAlreadyParametrized
	ErrNotPrepared         = prune.ErrNotPrepared
	ErrAlreadyPrepared     = prune.ErrAlreadyPrepared
	ErrNilPolicy           = prune.ErrNilPolicy
	ErrInvalidOption       = prune.ErrInvalidOption
)

// ConfigError reports an invalid configuration entry.
type ConfigError = prune.ConfigError
