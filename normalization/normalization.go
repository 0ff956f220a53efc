// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package normalization provides batch normalization for training, with
// running statistics and first- and second-order gradients, and for
// inference with fixed statistics.
//
// Example:
//
//	backend := cpu.New()
//	out, err := normalization.BatchNorm(backend, x, gamma, beta, runningMean, runningVar, 2e-5, 0.9, nil)
//	if errors.Is(err, tensor.ErrDimension) {
//	    // gamma, beta or the running statistics do not match the reduced input
//	}
//	y, err := normalization.FixedBatchNorm(backend, x, gamma, beta, runningMean, runningVar, 2e-5, nil)
package normalization

import (
	"github.com/born-ml/batchnorm/internal/normalization"
	"github.com/born-ml/batchnorm/internal/tensor"
)

// BatchNorm normalizes x over axes (default {0}) with the batch statistics
// and updates runningMean and runningVar in place. See the internal
// documentation of the same name for the exact formulas.
func BatchNorm(
	b tensor.Backend,
	x, gamma, beta, runningMean, runningVar *tensor.RawTensor,
	eps, decay float64,
	axes []int,
) (*tensor.RawTensor, error) {
	return normalization.BatchNorm(b, x, gamma, beta, runningMean, runningVar, eps, decay, axes)
}

// FixedBatchNorm normalizes x over axes (default {0}) with the given
// statistics. It has no side effects and is never recorded for autodiff.
func FixedBatchNorm(
	b tensor.Backend,
	x, gamma, beta, mean, variance *tensor.RawTensor,
	eps float64,
	axes []int,
) (*tensor.RawTensor, error) {
	return normalization.FixedBatchNorm(b, x, gamma, beta, mean, variance, eps, axes)
}

// Ops is the batch normalization dispatch table of a backend.
type Ops = normalization.Ops

// OpsFactory builds the dispatch table bound to a backend instance.
type OpsFactory = normalization.OpsFactory

// StateSlot carries what a forward operator captured for its backward operator.
type StateSlot = normalization.StateSlot

// RegisterOps registers specialized operators for backends named backendName.
func RegisterOps(backendName string, factory OpsFactory) {
	normalization.RegisterOps(backendName, factory)
}

// UnregisterOps removes the operators registered for backendName.
func UnregisterOps(backendName string) {
	normalization.UnregisterOps(backendName)
}

// NewGenericOps returns operators built only from the primitives of b.
func NewGenericOps(b tensor.Backend) Ops {
	return normalization.NewGenericOps(b)
}
