// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides neural network layers: Module, Parameter, the
// BatchNorm layer and training checkpoints.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	bn, err := nn.NewBatchNorm(tensor.Shape{64}, nn.DefaultBatchNormConfig(), backend)
//	y, err := bn.Forward(x) // training: batch statistics, running averages updated
//	bn.Eval()
//	y, err = bn.Forward(x) // inference: running averages
package nn

import (
	"github.com/born-ml/batchnorm/internal/nn"
	"github.com/born-ml/batchnorm/internal/tensor"
)

// Module is the base interface for all neural network components.
type Module[B tensor.Backend] = nn.Module[B]

// Parameter represents a trainable parameter.
type Parameter = nn.Parameter

// NewParameter creates a new trainable parameter.
func NewParameter(name string, t *tensor.RawTensor) *Parameter {
	return nn.NewParameter(name, t)
}

// BatchNorm is a batch normalization layer.
type BatchNorm[B tensor.Backend] = nn.BatchNorm[B]

// BatchNormConfig holds configuration for a BatchNorm layer.
type BatchNormConfig = nn.BatchNormConfig

// DefaultBatchNormConfig returns the default configuration.
func DefaultBatchNormConfig() BatchNormConfig {
	return nn.DefaultBatchNormConfig()
}

// NewBatchNorm creates a BatchNorm layer whose parameters and running
// averages have the given shape.
func NewBatchNorm[B tensor.Backend](shape tensor.Shape, cfg BatchNormConfig, backend B) (*BatchNorm[B], error) {
	return nn.NewBatchNorm(shape, cfg, backend)
}

// Stateful is a model whose state can be saved and restored.
type Stateful = nn.Stateful

// OptimizerState represents an optimizer that can save/load its state.
type OptimizerState = nn.OptimizerState

// Checkpoint is a training state snapshot stored as a SafeTensors file.
type Checkpoint = nn.Checkpoint

// LoadCheckpoint reads a checkpoint and restores it into model and optimizer.
func LoadCheckpoint(path string, model Stateful, optimizer OptimizerState) (*Checkpoint, error) {
	return nn.LoadCheckpoint(path, model, optimizer)
}
