// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides neural network layers and the module tree the pruner
// operates on.
//
// # Basic Usage
//
//	backend := cpu.New()
//	model := nn.NewSequential[*cpu.Backend](
//	    nn.NewLinear(784, 128, backend),
//	    nn.NewReLU[*cpu.Backend](),
//	    nn.NewLinear(128, 10, backend),
//	)
//	output := nn.Call(model, input)
//
// # Extension Points
//
// Every module embeds a Base with parameter and buffer namespaces, named
// children and forward hooks. Parametrizations transform a parameter on every
// read; paths such as "0.weight" address tensors inside a tree.
package nn

import (
	"github.com/born-ml/prune/internal/nn"
	"github.com/born-ml/prune/internal/tensor"
)

// Module interface defines the common interface for all neural network modules.
type Module[B tensor.Backend] = nn.Module[B]

// NamedModule pairs a module with its name or path.
type NamedModule[B tensor.Backend] = nn.NamedModule[B]

// Base holds a module's parameters, buffers, children and hooks.
type Base[B tensor.Backend] = nn.Base[B]

// Parameter represents a trainable parameter in a neural network.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// NewParameter creates a new parameter with the given name and tensor.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return nn.NewParameter(name, t)
}

// Layers

// Linear represents a fully connected (dense) layer.
type Linear[B tensor.Backend] = nn.Linear[B]

// NewLinear creates a new linear layer with Xavier initialization.
//
// Example:
//
//	backend := cpu.New()
//	layer := nn.NewLinear(784, 128, backend)
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B) *Linear[B] {
	return nn.NewLinear(inFeatures, outFeatures, backend)
}

// NewLinearWithBias creates a linear layer with or without a bias.
func NewLinearWithBias[B tensor.Backend](inFeatures, outFeatures int, useBias bool, backend B) *Linear[B] {
	return nn.NewLinearWithBias(inFeatures, outFeatures, useBias, backend)
}

// Conv2D represents a 2D convolutional layer.
type Conv2D[B tensor.Backend] = nn.Conv2D[B]

// NewConv2D creates a new 2D convolutional layer.
//
// Example:
//
//	backend := cpu.New()
//	conv := nn.NewConv2D(1, 32, 3, 3, 1, 1, true, backend)  // in_channels=1, out_channels=32, kernel=3x3, stride=1, padding=1, useBias=true
func NewConv2D[B tensor.Backend](
	inChannels, outChannels int,
	kernelH, kernelW int,
	stride, padding int,
	useBias bool,
	backend B,
) *Conv2D[B] {
	return nn.NewConv2D(inChannels, outChannels, kernelH, kernelW, stride, padding, useBias, backend)
}

// BatchNorm2D normalizes each channel of an NCHW input.
type BatchNorm2D[B tensor.Backend] = nn.BatchNorm2D[B]

// NewBatchNorm2D creates a batch norm layer over numFeatures channels.
func NewBatchNorm2D[B tensor.Backend](numFeatures int, backend B) *BatchNorm2D[B] {
	return nn.NewBatchNorm2D(numFeatures, backend)
}

// Activations

// ReLU represents the Rectified Linear Unit activation function.
type ReLU[B tensor.Backend] = nn.ReLU[B]

// NewReLU creates a new ReLU activation layer.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return nn.NewReLU[B]()
}

// Flatten reshapes [N, ...] inputs to [N, -1].
type Flatten[B tensor.Backend] = nn.Flatten[B]

// NewFlatten creates a Flatten layer.
func NewFlatten[B tensor.Backend]() *Flatten[B] {
	return nn.NewFlatten[B]()
}

// Sequential chains modules; children are named "0", "1", ...
type Sequential[B tensor.Backend] = nn.Sequential[B]

// NewSequential creates a new Sequential container.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return nn.NewSequential(modules...)
}

// Hooks

// ForwardHook runs after a module's Forward and may replace its output.
type ForwardHook[B tensor.Backend] = nn.ForwardHook[B]

// HookHandle detaches a registered hook.
type HookHandle = nn.HookHandle

// Call runs m.Forward followed by m's forward hooks.
func Call[B tensor.Backend](m Module[B], input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return nn.Call(m, input)
}

// Parametrizations

// Parametrization computes a parameter's effective value from its stored value.
type Parametrization[B tensor.Backend] = nn.Parametrization[B]

// ParametrizationList is the chain registered on one parameter.
type ParametrizationList[B tensor.Backend] = nn.ParametrizationList[B]

// Registry errors.
var (
	ErrNoSuchParameter = nn.ErrNoSuchParameter
	ErrNotParametrized = nn.ErrNotParametrized
)

// RegisterParametrization attaches p to parameter name of m.
func RegisterParametrization[B tensor.Backend](m Module[B], name string, p Parametrization[B]) error {
	return nn.RegisterParametrization(m, name, p)
}

// RemoveParametrizations detaches every parametrization from parameter name.
func RemoveParametrizations[B tensor.Backend](m Module[B], name string, leaveParametrized bool) error {
	return nn.RemoveParametrizations(m, name, leaveParametrized)
}

// IsParametrized reports whether the named parameters (any, if none are named)
// are parametrized.
func IsParametrized[B tensor.Backend](m Module[B], names ...string) bool {
	return nn.IsParametrized(m, names...)
}

// OriginalTensor returns the stored value of parameter name.
func OriginalTensor[B tensor.Backend](m Module[B], name string) *tensor.Tensor[float32, B] {
	return nn.OriginalTensor(m, name)
}

// Paths

// ModuleToFQN returns the dotted path of target inside root.
func ModuleToFQN[B tensor.Backend](root, target Module[B]) (string, bool) {
	return nn.ModuleToFQN(root, target)
}

// FQNToModule resolves a dotted path inside root.
func FQNToModule[B tensor.Backend](root Module[B], fqn string) (Module[B], bool) {
	return nn.FQNToModule(root, fqn)
}

// StateDict collects every effective parameter and buffer of the tree.
func StateDict[B tensor.Backend](root Module[B]) map[string]*tensor.RawTensor {
	return nn.StateDict(root)
}
