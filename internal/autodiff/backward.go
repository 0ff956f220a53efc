package autodiff

import (
	"github.com/born-ml/batchnorm/internal/tensor"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// BackwardCapable is an interface for backends that support backward pass.
// AutodiffBackend implements this interface.
type BackwardCapable interface {
	tensor.Backend
	// GetTape returns the gradient tape for backward computation.
	GetTape() *GradientTape
}

// GetTape returns the gradient tape (implements BackwardCapable interface).
func (b *AutodiffBackend[B]) GetTape() *GradientTape {
	return b.tape
}

// Grad computes the gradients of outputs with respect to every tensor that
// contributed to them on the tape.
//
// outputGrads holds the upstream gradient of each output; a nil slice or nil
// entry means ones (the gradient of a sum). With createGraph the backward
// computations are recorded on the tape, so the returned gradients can be
// differentiated again by a later call to Grad. Otherwise recording is
// disabled during the pass.
//
// Failures inside backward passes abort the whole pass and are returned as
// errors wrapping tensor.ErrInternal (or the more specific kind raised).
func (b *AutodiffBackend[B]) Grad(
	outputs, outputGrads []*tensor.RawTensor,
	createGraph bool,
) (grads map[*tensor.RawTensor]*tensor.RawTensor, err error) {
	if outputGrads != nil && len(outputGrads) != len(outputs) {
		return nil, errors.Wrapf(tensor.ErrDimension, "Grad: %d outputs but %d output gradients",
			len(outputs), len(outputGrads))
	}

	seeds := make(map[*tensor.RawTensor]*tensor.RawTensor, len(outputs))
	err = exceptions.TryCatch[error](func() {
		for i, out := range outputs {
			var grad *tensor.RawTensor
			if outputGrads != nil {
				grad = outputGrads[i]
			}
			if grad == nil {
				grad = onesLike(out)
			} else if !grad.Shape().Equal(out.Shape()) {
				exceptions.Panicf("Grad: output gradient shape %v does not match output shape %v",
					grad.Shape(), out.Shape())
			}
			seeds[out] = grad
		}

		wasRecording := b.tape.IsRecording()
		defer func() {
			if wasRecording {
				b.tape.StartRecording()
			} else {
				b.tape.StopRecording()
			}
		}()

		var backend tensor.Backend = b.inner
		if createGraph {
			b.tape.StartRecording()
			backend = b
		} else {
			b.tape.StopRecording()
		}

		numOps := b.tape.NumOps()
		grads = b.tape.walk(seeds, backend)
		klog.V(2).Infof("autodiff: backward over %d ops produced %d gradients (createGraph=%v, %d ops recorded)",
			numOps, len(grads), createGraph, b.tape.NumOps()-numOps)
	})
	if err != nil {
		if !isKnownKind(err) {
			err = errors.Wrapf(tensor.ErrInternal, "backward pass failed: %v", err)
		}
		return nil, err
	}
	return grads, nil
}

// Backward computes gradients for a tensor using the AutodiffBackend's tape.
//
// The output gradient is a tensor of ones with the shape of t, so the result
// holds the gradients of sum(t).
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	y := backend.Mul(x, x) // y = x²
//	gradients := autodiff.Backward(y, backend)
//	grad := gradients[x] // 2x
func Backward[B BackwardCapable](t *tensor.RawTensor, backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	tape := backend.GetTape()

	if tape.NumOps() == 0 {
		exceptions.Panicf("backward: no operations recorded (did you forget to call Tape().StartRecording()?)")
	}

	return tape.Backward(t, onesLike(t), backend)
}

func onesLike(t *tensor.RawTensor) *tensor.RawTensor {
	ones, err := tensor.Ones(t.Shape(), t.DType(), t.Device())
	if err != nil {
		panic(errors.WithMessage(err, "backward: failed to create output gradient"))
	}
	return ones
}

func isKnownKind(err error) bool {
	return errors.Is(err, tensor.ErrDtype) || errors.Is(err, tensor.ErrDimension) ||
		errors.Is(err, tensor.ErrAxis) || errors.Is(err, tensor.ErrInternal)
}
