// Package normalization implements batch normalization: a training operator
// that normalizes with batch statistics and maintains running averages, its
// first- and second-order gradients, and an inference operator that
// normalizes with fixed statistics.
//
// Computation is dispatched through a per-backend table of operators (see
// RegisterOps); the generic table is built from backend primitives.
package normalization

import (
	"github.com/born-ml/batchnorm/internal/autodiff/ops"
	"github.com/born-ml/batchnorm/internal/tensor"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// BatchNorm normalizes x over axes with the statistics of the batch:
//
//	out = (x - mean(x)) / sqrt(var(x) + eps) * gamma + beta
//
// mean and var are computed over axes (default {0}) with the population
// variance. gamma and beta may have any shape holding as many elements as the
// reduced input. The result has the shape and dtype of x; arithmetic is
// carried out in the promoted dtype of x, gamma and beta.
//
// runningMean and runningVar are updated in place:
//
//	runningMean = decay * runningMean + (1 - decay) * mean(x)
//	runningVar  = decay * runningVar  + (1 - decay) * n / max(n-1, 1) * var(x)
//
// where n is the number of samples per feature. They keep their dtype.
//
// If b records operations (see autodiff.AutodiffBackend), the call is
// recorded so that gradients flow to x, gamma and beta, including gradients
// of those gradients.
//
// Invalid operands return an error wrapping tensor.ErrDtype,
// tensor.ErrDimension or tensor.ErrAxis before anything is modified.
func BatchNorm(
	b tensor.Backend,
	x, gamma, beta, runningMean, runningVar *tensor.RawTensor,
	eps, decay float64,
	axes []int,
) (out *tensor.RawTensor, err error) {
	err = exceptions.TryCatch[error](func() {
		pre, perr := preprocess(b, x, gamma, beta, runningMean, runningVar, axes)
		if perr != nil {
			panic(perr)
		}

		table := OpsFor(b)
		state := &StateSlot{}
		out = tensor.EmptyLike(x)
		if ferr := table.Forward.Call(x, pre.gamma, pre.beta, pre.mean, pre.variance,
			eps, decay, pre.axes, out, state); ferr != nil {
			panic(ferr)
		}

		rec, ok := b.(ops.Recorder)
		if !ok || !rec.Record(&batchNormOp{
			inputs: []*tensor.RawTensor{x, pre.gamma, pre.beta},
			output: out,
			eps:    eps,
			axes:   pre.axes,
			ops:    table,
			state:  state,
		}) {
			state.Release()
		}
	})
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// FixedBatchNorm normalizes x over axes (default {0}) with the given
// statistics:
//
//	out = (x - mean) / sqrt(variance + eps) * gamma + beta
//
// Arithmetic is carried out in the promoted dtype of all five operands and the
// result has the shape and dtype of x. Nothing is modified and nothing is
// recorded, whatever b is.
func FixedBatchNorm(
	b tensor.Backend,
	x, gamma, beta, mean, variance *tensor.RawTensor,
	eps float64,
	axes []int,
) (out *tensor.RawTensor, err error) {
	base := baseOf(b)
	err = exceptions.TryCatch[error](func() {
		pre, perr := preprocess(base, x, gamma, beta, mean, variance, axes)
		if perr != nil {
			panic(perr)
		}

		out = tensor.EmptyLike(x)
		if ferr := OpsFor(base).FixedForward.Call(x, pre.gamma, pre.beta, pre.mean, pre.variance,
			eps, pre.axes, out); ferr != nil {
			panic(ferr)
		}
	})
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// classify keeps errors of a known kind and reports anything else as an
// internal error.
func classify(err error) error {
	for _, kind := range []error{tensor.ErrDtype, tensor.ErrDimension, tensor.ErrAxis, tensor.ErrInternal} {
		if errors.Is(err, kind) {
			return err
		}
	}
	return errors.Wrapf(tensor.ErrInternal, "batch normalization failed: %v", err)
}
