package nn

import (
	"github.com/born-ml/batchnorm/internal/tensor"
)

// Parameter represents a trainable parameter in a neural network.
//
// The tensor is updated in place by optimizers, so gradients keyed by it in
// a gradient map stay valid across steps.
//
// Example:
//
//	gamma := nn.NewParameter("bn.gamma", gammaTensor)
//	grads, _ := backend.Grad([]*tensor.RawTensor{loss}, nil, false)
//	g := grads[gamma.Tensor()]
type Parameter struct {
	name   string
	tensor *tensor.RawTensor
	grad   *tensor.RawTensor // set by the last optimizer step
}

// NewParameter creates a new trainable parameter.
func NewParameter(name string, t *tensor.RawTensor) *Parameter {
	return &Parameter{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.RawTensor {
	return p.tensor
}

// Grad returns the gradient tensor.
//
// Returns nil if no gradient has been assigned yet.
func (p *Parameter) Grad() *tensor.RawTensor {
	return p.grad
}

// SetGrad sets the gradient tensor.
func (p *Parameter) SetGrad(grad *tensor.RawTensor) {
	p.grad = grad
}

// ZeroGrad clears the gradient tensor.
func (p *Parameter) ZeroGrad() {
	p.grad = nil
}
