// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides optimizers for nn parameters.
package optim

import (
	"github.com/born-ml/batchnorm/internal/nn"
	"github.com/born-ml/batchnorm/internal/optim"
	"github.com/born-ml/batchnorm/internal/tensor"
)

// Optimizer is the base interface for all optimization algorithms.
type Optimizer = optim.Optimizer

// SGD implements Stochastic Gradient Descent with optional momentum.
type SGD[B tensor.Backend] = optim.SGD[B]

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig = optim.SGDConfig

// NewSGD creates a new SGD optimizer.
func NewSGD[B tensor.Backend](params []*nn.Parameter, config SGDConfig, backend B) *SGD[B] {
	return optim.NewSGD(params, config, backend)
}
