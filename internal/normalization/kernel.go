package normalization

import (
	"github.com/born-ml/batchnorm/internal/tensor"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// GenericState is the state captured by the generic forward operator:
// the batch mean and inverse standard deviation, in the intermediate dtype
// and with the reduced shape.
type GenericState struct {
	Mean   *tensor.RawTensor
	InvStd *tensor.RawTensor
}

// NewGenericOps returns operators built only from the primitives of b.
func NewGenericOps(b tensor.Backend) Ops {
	return Ops{
		Forward:      genericForward{b},
		Backward:     genericBackward{b},
		FixedForward: genericFixedForward{b},
	}
}

// applyBatchNorm computes (x - mean) * invStd * gamma + beta in interm, with
// invStd = 1/sqrt(variance + eps), and casts the result into out.
// It returns invStd in interm.
func applyBatchNorm(
	b tensor.Backend,
	x, gamma, beta, mean, variance *tensor.RawTensor,
	eps float64,
	out *tensor.RawTensor,
	interm tensor.DataType,
) *tensor.RawTensor {
	if !gamma.Shape().Equal(beta.Shape()) {
		panic(errors.Wrapf(tensor.ErrInternal, "gamma %v and beta %v must have the same shape",
			gamma.Shape(), beta.Shape()))
	}
	if mean.NumElements() != gamma.NumElements() || variance.NumElements() != gamma.NumElements() {
		panic(errors.Wrapf(tensor.ErrInternal, "mean (%d) and var (%d) must have the reduced size %d",
			mean.NumElements(), variance.NumElements(), gamma.NumElements()))
	}

	xc := b.Cast(x, interm)
	invStd := b.Reciprocal(b.Sqrt(b.AddScalar(b.Cast(variance, interm), eps)))
	normalized := b.Mul(b.Sub(xc, b.Cast(mean, interm)), invStd)
	y := b.Add(b.Mul(normalized, b.Cast(gamma, interm)), b.Cast(beta, interm))
	b.CastInto(y, out)
	return invStd
}

// reducedCount is the number of samples per feature.
func reducedCount(x, gamma *tensor.RawTensor) int {
	return x.NumElements() / gamma.NumElements()
}

type genericForward struct {
	b tensor.Backend
}

// Call implements ForwardOp.
func (op genericForward) Call(
	x, gamma, beta, runningMean, runningVar *tensor.RawTensor,
	eps, decay float64,
	axes []int,
	out *tensor.RawTensor,
	state *StateSlot,
) error {
	return exceptions.TryCatch[error](func() {
		b := op.b
		interm := tensor.ResultTypeOf(x, gamma, beta)
		klog.V(3).Infof("batch_norm: x=%s gamma=%s beta=%s computed in %s", x, gamma, beta, interm)

		xc := b.Cast(x, interm)
		xMean := b.MeanAxes(xc, axes, true)
		xVar := b.VarAxes(xc, axes, true)
		invStd := applyBatchNorm(b, xc, gamma, beta, xMean, xVar, eps, out, interm)

		// Running statistics are updated after the batch statistics exist and
		// before the state is captured. The variance accumulates the unbiased
		// estimator while the batch itself was normalized with the biased one.
		n := reducedCount(x, gamma)
		adjust := float64(n) / float64(max(n-1, 1))
		invDecay := 1 - decay
		b.MulScalarInPlace(runningMean, decay)
		b.AddInPlace(runningMean, b.Cast(b.MulScalar(xMean, invDecay), runningMean.DType()))
		b.MulScalarInPlace(runningVar, decay)
		b.AddInPlace(runningVar, b.Cast(b.MulScalar(xVar, invDecay*adjust), runningVar.DType()))

		if state != nil {
			state.Set(&GenericState{Mean: xMean, InvStd: invStd})
		}
	})
}

type genericBackward struct {
	b tensor.Backend
}

// Call implements BackwardOp.
func (op genericBackward) Call(
	x, gamma, gout *tensor.RawTensor,
	_ float64,
	axes []int,
	gx, ggamma, gbeta *tensor.RawTensor,
	state *StateSlot,
) error {
	var captured *GenericState
	if state != nil {
		captured, _ = state.Get().(*GenericState)
	}
	if captured == nil {
		return errors.Wrap(tensor.ErrInternal, "batch_norm backward: no state captured by the forward pass")
	}

	return exceptions.TryCatch[error](func() {
		b := op.b
		xMean, invStd := captured.Mean, captured.InvStd
		interm := xMean.DType()
		invN := 1 / float64(reducedCount(x, gamma))

		xc := b.Cast(x, interm)
		goutc := b.Cast(gout, interm)
		xHat := b.Mul(b.Sub(xc, xMean), invStd)

		ggammaI := b.SumAxes(b.Mul(goutc, xHat), axes, true)
		gbetaI := b.SumAxes(goutc, axes, true)

		// gx = gamma * invStd * (gout - (xHat * ggamma + gbeta) / n)
		coeff := b.Mul(b.Cast(gamma, interm), invStd)
		centered := b.Sub(goutc, b.MulScalar(b.Add(b.Mul(xHat, ggammaI), gbetaI), invN))
		gxI := b.Mul(coeff, centered)

		b.CastInto(gxI, gx)
		b.CastInto(ggammaI, ggamma)
		b.CastInto(gbetaI, gbeta)
	})
}

type genericFixedForward struct {
	b tensor.Backend
}

// Call implements FixedForwardOp.
func (op genericFixedForward) Call(
	x, gamma, beta, mean, variance *tensor.RawTensor,
	eps float64,
	_ []int,
	out *tensor.RawTensor,
) error {
	return exceptions.TryCatch[error](func() {
		interm := tensor.ResultTypeOf(x, gamma, beta, mean, variance)
		klog.V(3).Infof("fixed_batch_norm: x=%s computed in %s", x, interm)
		applyBatchNorm(op.b, x, gamma, beta, mean, variance, eps, out, interm)
	})
}
