package optim

import (
	"fmt"

	"github.com/born-ml/batchnorm/internal/nn"
	"github.com/born-ml/batchnorm/internal/tensor"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// SGD implements Stochastic Gradient Descent optimizer with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
//
// Parameters are updated in place, so the batch normalization running
// averages and any gradient map keyed by parameter tensors stay valid.
type SGD[B tensor.Backend] struct {
	params     []*nn.Parameter
	lr         float64
	momentum   float64
	velocities map[*nn.Parameter]*tensor.RawTensor
	backend    B
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR       float64 // Learning rate (default: 0.01)
	Momentum float64 // Momentum factor (default: 0.0, range: [0, 1))
}

// NewSGD creates a new SGD optimizer.
//
// Example:
//
//	sgd := optim.NewSGD(bn.Parameters(), optim.SGDConfig{
//	    LR:       0.01,
//	    Momentum: 0.9,
//	}, backend)
func NewSGD[B tensor.Backend](params []*nn.Parameter, config SGDConfig, backend B) *SGD[B] {
	if config.LR == 0 {
		config.LR = 0.01
	}

	return &SGD[B]{
		params:     params,
		lr:         config.LR,
		momentum:   config.Momentum,
		velocities: make(map[*nn.Parameter]*tensor.RawTensor),
		backend:    backend,
	}
}

// Step performs a single optimization step.
//
// The gradient of each parameter is stored with SetGrad before the update.
// Parameters with no gradient (not in the computational graph) are skipped.
func (s *SGD[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	updated := 0
	withoutGrad(s.backend, func() {
		for _, param := range s.params {
			grad := getGradient(param, grads)
			if grad == nil {
				continue
			}
			param.SetGrad(grad)

			if s.momentum == 0 {
				s.updateParameter(param, grad)
			} else {
				s.updateParameterWithMomentum(param, grad)
			}
			updated++
		}
	})
	klog.V(2).Infof("optim.SGD: updated %d/%d parameters (lr=%g, momentum=%g)",
		updated, len(s.params), s.lr, s.momentum)
}

// updateParameter performs param -= lr * grad.
func (s *SGD[B]) updateParameter(param *nn.Parameter, grad *tensor.RawTensor) {
	s.backend.AddInPlace(param.Tensor(), s.backend.MulScalar(grad, -s.lr))
}

// updateParameterWithMomentum performs SGD update with momentum.
func (s *SGD[B]) updateParameterWithMomentum(param *nn.Parameter, grad *tensor.RawTensor) {
	velocity, exists := s.velocities[param]
	if !exists {
		var err error
		velocity, err = tensor.Zeros(param.Tensor().Shape(), param.Tensor().DType(), param.Tensor().Device())
		if err != nil {
			panic(errors.WithMessagef(err, "SGD: velocity for %s", param.Name()))
		}
		s.velocities[param] = velocity
	}

	// velocity = momentum * velocity + grad
	s.backend.MulScalarInPlace(velocity, s.momentum)
	s.backend.AddInPlace(velocity, grad)

	// param -= lr * velocity
	s.backend.AddInPlace(param.Tensor(), s.backend.MulScalar(velocity, -s.lr))
}

// ZeroGrad clears gradients for all parameters.
func (s *SGD[B]) ZeroGrad() {
	for _, param := range s.params {
		param.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (s *SGD[B]) GetLR() float64 {
	return s.lr
}

// SetLR updates the learning rate.
func (s *SGD[B]) SetLR(lr float64) {
	s.lr = lr
}

// StateDict returns the velocity buffers, keyed "velocity.{param_index}".
// Without momentum it is empty.
func (s *SGD[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	if s.momentum == 0 {
		return stateDict
	}

	for i, param := range s.params {
		velocity, exists := s.velocities[param]
		if !exists {
			continue
		}
		stateDict[fmt.Sprintf("velocity.%d", i)] = velocity.Copy()
	}
	return stateDict
}

// LoadStateDict restores velocity buffers saved by StateDict.
//
// Returns an error wrapping tensor.ErrDimension if a velocity shape doesn't
// match its parameter. Nothing is restored in that case.
func (s *SGD[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if s.momentum == 0 {
		return nil
	}

	velocities := make(map[*nn.Parameter]*tensor.RawTensor)
	for i, param := range s.params {
		velocityRaw, exists := stateDict[fmt.Sprintf("velocity.%d", i)]
		if !exists {
			continue
		}
		if !velocityRaw.Shape().Equal(param.Tensor().Shape()) {
			return errors.Wrapf(tensor.ErrDimension, "velocity shape mismatch for parameter %d: expected %v, got %v",
				i, param.Tensor().Shape(), velocityRaw.Shape())
		}
		withoutGrad(s.backend, func() {
			velocities[param] = s.backend.Cast(velocityRaw.Copy(), param.Tensor().DType())
		})
	}
	s.velocities = velocities
	return nil
}
