package normalization

import (
	"github.com/born-ml/batchnorm/internal/autodiff/ops"
	"github.com/born-ml/batchnorm/internal/tensor"
	"github.com/pkg/errors"
)

// batchNormOp is the graph node of a training batch normalization:
// out = BatchNorm(x, gamma, beta).
//
// Backward:
//   - gx, ggamma, gbeta come from the BackwardOp of the dispatch table, using
//     the mean and inverse standard deviation captured by the forward pass
//   - when the backend handed to Backward records (create-graph mode), a
//     batchNormGradOp is recorded so the gradients can be differentiated again
type batchNormOp struct {
	inputs []*tensor.RawTensor // [x, gamma, beta], gamma and beta in the reduced shape
	output *tensor.RawTensor
	eps    float64
	axes   []int
	ops    Ops
	state  *StateSlot
}

// Backward computes the gradients of x, gamma and beta.
func (op *batchNormOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	x, gamma, beta := op.inputs[0], op.inputs[1], op.inputs[2]

	gx := tensor.EmptyLike(x)
	ggamma := tensor.EmptyLike(gamma)
	gbeta := tensor.EmptyLike(beta)
	if err := op.ops.Backward.Call(x, gamma, outputGrad, op.eps, op.axes, gx, ggamma, gbeta, op.state); err != nil {
		panic(errors.WithMessage(err, "batch_norm backward"))
	}

	if rec, ok := backend.(ops.Recorder); ok {
		rec.Record(&batchNormGradOp{
			inputs:  []*tensor.RawTensor{x, gamma, outputGrad},
			outputs: []*tensor.RawTensor{gx, ggamma, gbeta},
			eps:     op.eps,
			axes:    op.axes,
		})
	}

	return []*tensor.RawTensor{gx, ggamma, gbeta}
}

// Inputs returns [x, gamma, beta].
func (op *batchNormOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns the normalized tensor.
func (op *batchNormOp) Output() *tensor.RawTensor {
	return op.output
}

// Release drops the captured forward state.
func (op *batchNormOp) Release() {
	op.state.Release()
}

// batchNormGradOp is the graph node of the first-order gradient of a batch
// normalization: (gx, ggamma, gbeta) = BatchNormGrad(x, gamma, gout).
//
// Its backward pass recomputes the batch statistics from x instead of using
// the captured state, and is written with backend primitives: gradients of
// third and higher order flow through the primitive operations it records.
type batchNormGradOp struct {
	inputs  []*tensor.RawTensor // [x, gamma, gout]
	outputs []*tensor.RawTensor // [gx, ggamma, gbeta]
	eps     float64
	axes    []int
}

// Backward treats outputGrad as the gradient of gx only.
func (op *batchNormGradOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return op.BackwardMulti([]*tensor.RawTensor{outputGrad, nil, nil}, backend)
}

// BackwardMulti computes the gradients of x, gamma and gout given the
// gradients of gx, ggamma and gbeta. Missing gradients count as zeros.
func (op *batchNormGradOp) BackwardMulti(outputGrads []*tensor.RawTensor, b tensor.Backend) []*tensor.RawTensor {
	xIn, gammaIn, goutIn := op.inputs[0], op.inputs[1], op.inputs[2]
	interm := tensor.ResultTypeOf(goutIn, xIn, gammaIn)
	x := b.Cast(xIn, interm)
	gamma := b.Cast(gammaIn, interm)
	gout := b.Cast(goutIn, interm)

	ggx := gradOrZeros(b, outputGrads[0], x.Shape(), interm)
	gggamma := gradOrZeros(b, outputGrads[1], gamma.Shape(), interm)
	ggbeta := gradOrZeros(b, outputGrads[2], gamma.Shape(), interm)

	axes := op.axes
	xMean := b.MeanAxes(x, axes, true)
	xVar := b.VarAxes(x, axes, true)
	invStd := b.Reciprocal(b.Sqrt(b.AddScalar(xVar, op.eps)))

	gx := b.Cast(op.outputs[0], interm)
	ggamma := b.Cast(op.outputs[1], interm)

	invN := 1 / float64(reducedCount(x, gamma))
	r := b.SumAxes(b.Mul(gx, ggx), axes, true)
	coeff := b.Mul(gamma, invStd)
	coeffM := b.MulScalar(coeff, invN)
	xHat := b.Mul(b.Sub(x, xMean), invStd)

	gggamma2 := b.Sub(gggamma, b.Mul(coeffM, b.SumAxes(b.Mul(xHat, ggx), axes, true)))
	ggbeta2 := b.Sub(ggbeta, b.Mul(coeffM, b.SumAxes(ggx, axes, true)))

	gxHat2 := b.Sub(b.Mul(gggamma2, gout), b.Mul(b.Mul(coeffM, ggamma), ggx))
	negInvStd := b.Neg(invStd)
	gstd2 := b.Mul(negInvStd, b.Add(r, b.SumAxes(b.Mul(xHat, gxHat2), axes, true)))
	gmean2 := b.Mul(negInvStd, b.SumAxes(gxHat2, axes, true))

	gx2 := b.Add(b.Mul(invStd, gxHat2), b.MulScalar(b.Add(gmean2, b.Mul(xHat, gstd2)), invN))
	ggout2 := b.Add(b.Add(b.Mul(gggamma2, xHat), ggbeta2), b.Mul(coeff, ggx))
	// gx is linear in gamma.
	ggamma2 := b.Div(r, gamma)

	return []*tensor.RawTensor{
		b.Cast(gx2, xIn.DType()),
		b.Cast(ggamma2, gammaIn.DType()),
		b.Cast(ggout2, goutIn.DType()),
	}
}

// Inputs returns [x, gamma, gout].
func (op *batchNormGradOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns gx.
func (op *batchNormGradOp) Output() *tensor.RawTensor {
	return op.outputs[0]
}

// Outputs returns [gx, ggamma, gbeta].
func (op *batchNormGradOp) Outputs() []*tensor.RawTensor {
	return op.outputs
}

func gradOrZeros(b tensor.Backend, grad *tensor.RawTensor, shape tensor.Shape, dtype tensor.DataType) *tensor.RawTensor {
	if grad != nil {
		return b.Cast(grad, dtype)
	}
	zeros, err := tensor.Zeros(shape, dtype, b.Device())
	if err != nil {
		panic(errors.WithMessage(err, "batch_norm double backward"))
	}
	return zeros
}
