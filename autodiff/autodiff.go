// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides the recording backend and gradient-mode control.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//
//	restore := autodiff.NoGrad(backend.Tape())
//	// operations here are not recorded
//	restore()
package autodiff

import (
	"github.com/born-ml/prune/internal/autodiff"
	"github.com/born-ml/prune/internal/tensor"
)

// Backend is the autodiff-enabled backend.
type Backend[B tensor.Backend] = autodiff.AutodiffBackend[B]

// New creates a new autodiff backend wrapping the given backend.
func New[B tensor.Backend](backend B) *Backend[B] {
	return autodiff.New(backend)
}

// GradientTape records operations for automatic differentiation.
type GradientTape = autodiff.GradientTape

// NewGradientTape creates a new gradient tape.
func NewGradientTape() *GradientTape {
	return autodiff.NewGradientTape()
}

// Recorder controls whether operations are recorded.
type Recorder = autodiff.Recorder

// NoGrad suspends recording on r and returns a function restoring the
// previous state.
func NoGrad(r Recorder) (restore func()) {
	return autodiff.NoGrad(r)
}
