// Package ops defines operation interfaces and implementations for automatic differentiation.
//
// Each operation implements the Operation interface, which provides:
//   - Forward pass: computed by the backend
//   - Backward pass: computes gradients for inputs given output gradient
//
// Backward passes are written purely in terms of backend calls. When the
// backend handed to Backward records operations (create-graph mode), the
// gradient computation itself becomes part of the graph and can be
// differentiated again.
//
// Supported operations:
//   - AddOp, SubOp, MulOp, DivOp: broadcasting element-wise arithmetic
//   - NegOp, AddScalarOp, MulScalarOp, SqrtOp, ReciprocalOp: element-wise math
//   - SumAxesOp, MeanAxesOp, VarAxesOp: reductions over a set of axes
//   - ReshapeOp, ExpandOp, CastOp: shape and dtype changes
package ops

import "github.com/born-ml/batchnorm/internal/tensor"

// Operation represents a differentiable operation in the computation graph.
// Each operation records its inputs and output during the forward pass,
// and computes input gradients during the backward pass.
type Operation interface {
	// Backward computes gradients for inputs given the output gradient.
	// Returns a slice of gradients corresponding to each input tensor.
	//
	// Example for AddOp:
	//   inputs: [a, b]
	//   outputGrad: dL/d(a+b)
	//   returns: [dL/d(a+b), dL/d(a+b)] (gradient flows equally to both inputs)
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the input tensors for this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.RawTensor
}

// MultiOutputOperation represents an operation that produces multiple outputs,
// such as the batch normalization gradient node (gx, ggamma, gbeta).
//
// The tape handles these specially by collecting gradients for ALL outputs
// before calling BackwardMulti. Outputs that received no gradient are passed
// as nil and must be treated as zeros.
type MultiOutputOperation interface {
	Operation

	// Outputs returns all output tensors produced by this operation.
	Outputs() []*tensor.RawTensor

	// BackwardMulti computes gradients for inputs given gradients for ALL outputs.
	// This is used instead of Backward for multi-output operations.
	BackwardMulti(outputGrads []*tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor
}

// Recorder is a backend that records differentiable operations.
//
// Operations implemented outside this package (composite nodes) use it to
// register themselves on the tape of the backend that computes them.
type Recorder interface {
	tensor.Backend

	// Record adds op to the tape if recording is enabled, and reports
	// whether it was recorded.
	Record(op Operation) bool

	// Base returns the wrapped, non-recording backend.
	Base() tensor.Backend
}

// Releaser is implemented by operations that hold captured state which must
// be dropped when the tape is cleared.
type Releaser interface {
	Release()
}
