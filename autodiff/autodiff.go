// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides reverse-mode automatic differentiation, including
// gradients of gradients.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	out, _ := normalization.BatchNorm(backend, x, gamma, beta, runningMean, runningVar, 2e-5, 0.9, nil)
//
//	// First order, recorded so it can be differentiated again.
//	grads, _ := backend.Grad([]*tensor.RawTensor{out}, nil, true)
//
//	// Second order.
//	grads2, _ := backend.Grad([]*tensor.RawTensor{grads[x]}, nil, false)
package autodiff

import (
	"github.com/born-ml/batchnorm/internal/autodiff"
	"github.com/born-ml/batchnorm/internal/tensor"
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

// BackwardCapable interface for backends that support backpropagation.
type BackwardCapable = autodiff.BackwardCapable

// Backward computes the gradients of sum(t) via backpropagation.
func Backward[B BackwardCapable](t *tensor.RawTensor, backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	return autodiff.Backward(t, backend)
}
