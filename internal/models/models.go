// Package models builds the reference networks the born-prune CLI prunes.
package models

import (
	"fmt"

	"github.com/born-ml/prune/internal/nn"
	"github.com/born-ml/prune/internal/tensor"
)

// Model names accepted by New.
const (
	MLPName = "mlp"
	CNNName = "cnn"
)

// MLPConfig configures a multi-layer perceptron.
type MLPConfig struct {
	InFeatures int
	Hidden     []int
	Classes    int
}

// DefaultMLPConfig returns a small 16-16 MLP over 8 features.
func DefaultMLPConfig() MLPConfig {
	return MLPConfig{InFeatures: 8, Hidden: []int{16, 16}, Classes: 4}
}

// NewMLP builds Linear/ReLU pairs for every hidden size followed by the output
// Linear. Children are named "0", "1", ... so the first weight is "0.weight".
func NewMLP[B tensor.Backend](cfg MLPConfig, backend B) *nn.Sequential[B] {
	model := nn.NewSequential[B]()
	in := cfg.InFeatures
	for _, h := range cfg.Hidden {
		model.Add(nn.NewLinear(in, h, backend))
		model.Add(nn.NewReLU[B]())
		in = h
	}
	model.Add(nn.NewLinear(in, cfg.Classes, backend))
	return model
}

// CNNConfig configures a small convolutional classifier. Convolutions are 3x3
// with padding 1, so spatial size is preserved.
type CNNConfig struct {
	InChannels int
	Height     int
	Width      int
	Channels   []int
	Classes    int
}

// DefaultCNNConfig returns a two-block CNN over 3x8x8 inputs.
func DefaultCNNConfig() CNNConfig {
	return CNNConfig{InChannels: 3, Height: 8, Width: 8, Channels: []int{8, 16}, Classes: 10}
}

// CNN is a stack of Conv2D/BatchNorm2D/ReLU blocks followed by Flatten and a
// Linear head.
//
// Block i lives at path "i": its convolution at "i.0" and its norm at "i.1".
type CNN[B tensor.Backend] struct {
	*nn.Sequential[B]
	pairs [][2]nn.Module[B]
}

// NewCNN builds the network described by cfg.
func NewCNN[B tensor.Backend](cfg CNNConfig, backend B) *CNN[B] {
	seq := nn.NewSequential[B]()
	cnn := &CNN[B]{Sequential: seq}

	in := cfg.InChannels
	for _, c := range cfg.Channels {
		conv := nn.NewConv2D(in, c, 3, 3, 1, 1, true, backend)
		bn := nn.NewBatchNorm2D(c, backend)
		seq.Add(nn.NewSequential[B](conv, bn, nn.NewReLU[B]()))
		cnn.pairs = append(cnn.pairs, [2]nn.Module[B]{conv, bn})
		in = c
	}
	seq.Add(nn.NewFlatten[B]())
	seq.Add(nn.NewLinear(in*cfg.Height*cfg.Width, cfg.Classes, backend))
	return cnn
}

// ConvNormPairs returns each block's convolution and batch norm, in order.
func (c *CNN[B]) ConvNormPairs() [][2]nn.Module[B] {
	out := make([][2]nn.Module[B], len(c.pairs))
	copy(out, c.pairs)
	return out
}

// New builds the named reference model with its default configuration and
// returns it along with an input batch shape for a forward pass.
func New[B tensor.Backend](name string, batch int, backend B) (nn.Module[B], tensor.Shape, error) {
	switch name {
	case MLPName:
		cfg := DefaultMLPConfig()
		return NewMLP(cfg, backend), tensor.Shape{batch, cfg.InFeatures}, nil
	case CNNName:
		cfg := DefaultCNNConfig()
		return NewCNN(cfg, backend), tensor.Shape{batch, cfg.InChannels, cfg.Height, cfg.Width}, nil
	default:
		return nil, nil, fmt.Errorf("unknown model %q", name)
	}
}
