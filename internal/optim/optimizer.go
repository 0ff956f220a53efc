// Package optim implements optimization algorithms for training the
// parameters of nn layers.
//
// Example usage:
//
//	optimizer := optim.NewSGD(bn.Parameters(), optim.SGDConfig{LR: 0.1}, backend)
//
//	for step := range steps {
//	    backend.Tape().StartRecording()
//	    out, _ := bn.Forward(batch)
//	    loss := lossOf(out)
//	    grads, _ := backend.Grad([]*tensor.RawTensor{loss}, nil, false)
//	    backend.Tape().Clear()
//
//	    optimizer.Step(grads)
//	    optimizer.ZeroGrad()
//	}
package optim

import (
	"github.com/born-ml/batchnorm/internal/nn"
	"github.com/born-ml/batchnorm/internal/tensor"
)

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step applies gradient updates to all parameters in place.
	//
	// grads maps a parameter tensor to its gradient, as returned by
	// AutodiffBackend.Grad. Parameters without a gradient are left alone.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float64
}

// Config is the base configuration for all optimizers.
type Config struct {
	LR float64 // Learning rate
}

// noGrader is implemented by recording backends.
type noGrader interface {
	NoGrad(fn func())
}

// withoutGrad runs fn with recording disabled on backends that record.
func withoutGrad(backend tensor.Backend, fn func()) {
	if ng, ok := backend.(noGrader); ok {
		ng.NoGrad(fn)
		return
	}
	fn()
}

// getGradient returns the gradient of param, or nil if param did not take
// part in the computation.
func getGradient(param *nn.Parameter, grads map[*tensor.RawTensor]*tensor.RawTensor) *tensor.RawTensor {
	if param == nil {
		return nil
	}
	return grads[param.Tensor()]
}
