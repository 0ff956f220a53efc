package ops

import "github.com/born-ml/batchnorm/internal/tensor"

// SqrtOp represents the square root operation: y = sqrt(x).
//
// Backward pass:
//   - d(sqrt(x))/dx = 1 / (2 * sqrt(x)) = 0.5 / y
//   - grad_input = grad_output * 0.5 / output
type SqrtOp struct {
	input  *tensor.RawTensor // x
	output *tensor.RawTensor // sqrt(x)
}

// NewSqrtOp creates a new SqrtOp.
func NewSqrtOp(input, output *tensor.RawTensor) *SqrtOp {
	return &SqrtOp{
		input:  input,
		output: output,
	}
}

// Backward computes input gradient for sqrt.
func (op *SqrtOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	gradInput := backend.MulScalar(backend.Div(outputGrad, op.output), 0.5)
	return []*tensor.RawTensor{gradFor(gradInput, op.input, backend)}
}

// Inputs returns the input tensor [x].
func (op *SqrtOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor sqrt(x).
func (op *SqrtOp) Output() *tensor.RawTensor {
	return op.output
}

// ReciprocalOp represents y = 1/x.
//
// Backward pass:
//   - d(1/x)/dx = -1/x² = -y²
//   - grad_input = -grad_output * y * y
type ReciprocalOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewReciprocalOp creates a new ReciprocalOp.
func NewReciprocalOp(input, output *tensor.RawTensor) *ReciprocalOp {
	return &ReciprocalOp{
		input:  input,
		output: output,
	}
}

// Backward computes input gradient for the reciprocal.
func (op *ReciprocalOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	squared := backend.Mul(op.output, op.output)
	gradInput := backend.Neg(backend.Mul(outputGrad, squared))
	return []*tensor.RawTensor{gradFor(gradInput, op.input, backend)}
}

// Inputs returns the input tensor [x].
func (op *ReciprocalOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor 1/x.
func (op *ReciprocalOp) Output() *tensor.RawTensor {
	return op.output
}
