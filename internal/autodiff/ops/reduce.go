package ops

import "github.com/born-ml/batchnorm/internal/tensor"

// SumAxesOp represents a sum over a set of axes: output = sum(x, axes).
//
// Backward:
//
//	grad_x = broadcast(grad_y, x.shape)
//
// If keepDims=false, the reduced dimensions are re-inserted as size 1 first.
type SumAxesOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
	axes   []int
}

// NewSumAxesOp creates a new SumAxesOp.
func NewSumAxesOp(input, output *tensor.RawTensor, axes []int) *SumAxesOp {
	return &SumAxesOp{input: input, output: output, axes: append([]int(nil), axes...)}
}

// Backward computes the input gradient of the sum.
func (op *SumAxesOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{spreadGrad(outputGrad, op.input, op.axes, backend)}
}

// Inputs returns the input tensor [x].
func (op *SumAxesOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the reduced tensor.
func (op *SumAxesOp) Output() *tensor.RawTensor {
	return op.output
}

// MeanAxesOp represents a mean over a set of axes.
//
// Backward:
//
//	grad_x = broadcast(grad_y, x.shape) / n
//
// where n is the number of elements folded into each output element.
type MeanAxesOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
	axes   []int
}

// NewMeanAxesOp creates a new MeanAxesOp.
func NewMeanAxesOp(input, output *tensor.RawTensor, axes []int) *MeanAxesOp {
	return &MeanAxesOp{input: input, output: output, axes: append([]int(nil), axes...)}
}

// Backward computes the input gradient of the mean.
func (op *MeanAxesOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	n := reducedCount(op.input.Shape(), op.axes)
	grad := spreadGrad(outputGrad, op.input, op.axes, backend)
	return []*tensor.RawTensor{backend.MulScalar(grad, 1/float64(n))}
}

// Inputs returns the input tensor [x].
func (op *MeanAxesOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the reduced tensor.
func (op *MeanAxesOp) Output() *tensor.RawTensor {
	return op.output
}

// VarAxesOp represents the population variance over a set of axes.
//
// Backward:
//
//	grad_x = broadcast(grad_y, x.shape) * 2 * (x - mean(x)) / n
type VarAxesOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
	axes   []int
}

// NewVarAxesOp creates a new VarAxesOp.
func NewVarAxesOp(input, output *tensor.RawTensor, axes []int) *VarAxesOp {
	return &VarAxesOp{input: input, output: output, axes: append([]int(nil), axes...)}
}

// Backward computes the input gradient of the variance.
// The mean is recomputed through the backend so the result stays
// differentiable in create-graph mode.
func (op *VarAxesOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	x := op.input
	n := reducedCount(x.Shape(), op.axes)
	centered := backend.Sub(x, backend.MeanAxes(x, op.axes, true))
	grad := backend.Mul(spreadGrad(outputGrad, x, op.axes, backend), centered)
	return []*tensor.RawTensor{gradFor(backend.MulScalar(grad, 2/float64(n)), x, backend)}
}

// Inputs returns the input tensor [x].
func (op *VarAxesOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the reduced tensor.
func (op *VarAxesOp) Output() *tensor.RawTensor {
	return op.output
}

// spreadGrad broadcasts the gradient of a reduction back over its input.
func spreadGrad(outputGrad, input *tensor.RawTensor, axes []int, backend tensor.Backend) *tensor.RawTensor {
	kept := backend.Reshape(outputGrad, keptDimsShape(input.Shape(), axes))
	return backend.Cast(backend.Expand(kept, input.Shape()), input.DType())
}
