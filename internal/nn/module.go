// Package nn implements neural network layers on top of the batch
// normalization operator.
//
// This package provides:
//   - Module interface: Base interface for all layers
//   - Parameter: Trainable tensors with their last gradient
//   - BatchNorm: Batch normalization layer with running statistics
//   - Checkpoint: Model and optimizer state saved as a SafeTensors file
package nn

import (
	"github.com/born-ml/batchnorm/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Every module must implement:
//   - Forward: Compute output from input
//   - Parameters: Return all trainable parameters
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.RawTensor) (*tensor.RawTensor, error)

	// Parameters returns all trainable parameters of this module.
	Parameters() []*Parameter
}
