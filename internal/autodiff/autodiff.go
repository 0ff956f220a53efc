// Package autodiff implements automatic differentiation using the decorator pattern.
//
// AutodiffBackend wraps any Backend implementation and adds gradient tracking
// capabilities through a GradientTape.
//
// Architecture:
//   - Decorator pattern: AutodiffBackend[B] wraps any Backend implementation
//   - GradientTape: Records operations during forward pass
//   - Operation interface: Each op (Add, Mul, Sqrt, ...) implements backward pass
//   - Reverse-mode AD: Computes gradients efficiently using chain rule
//   - Create-graph mode: the backward pass is itself recorded, so gradients
//     of gradients can be taken
//
// Usage:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	y := backend.Mul(x, x) // y = x²
//
//	grads, err := backend.Grad([]*tensor.RawTensor{y}, nil, false)
//	// grads[x] = 2x
package autodiff

import (
	"github.com/born-ml/batchnorm/internal/autodiff/ops"
	"github.com/born-ml/batchnorm/internal/tensor"
)

// AutodiffBackend wraps a Backend and adds automatic differentiation.
// It implements the tensor.Backend interface and records operations in a GradientTape.
//
// Type parameter B must satisfy the tensor.Backend interface.
type AutodiffBackend[B tensor.Backend] struct {
	inner B             // Wrapped backend
	tape  *GradientTape // Records operations for backpropagation
}

// New creates a new AutodiffBackend wrapping the given backend.
func New[B tensor.Backend](backend B) *AutodiffBackend[B] {
	return &AutodiffBackend[B]{
		inner: backend,
		tape:  NewGradientTape(),
	}
}

// Tape returns the gradient tape for manual control.
// Useful for:
//   - Starting/stopping recording
//   - Clearing tape between iterations
//   - Inspecting recorded operations
func (b *AutodiffBackend[B]) Tape() *GradientTape {
	return b.tape
}

// Inner returns the wrapped backend for direct access.
func (b *AutodiffBackend[B]) Inner() B {
	return b.inner
}

// Base returns the wrapped backend as a plain tensor.Backend.
func (b *AutodiffBackend[B]) Base() tensor.Backend {
	return b.inner
}

// Record adds op to the tape if recording is enabled.
// Composite operations defined in other packages register themselves here.
func (b *AutodiffBackend[B]) Record(op ops.Operation) bool {
	if !b.tape.IsRecording() {
		return false
	}
	b.tape.Record(op)
	return true
}

// NoGrad runs fn with recording disabled, restoring the previous state after.
func (b *AutodiffBackend[B]) NoGrad(fn func()) {
	wasRecording := b.tape.IsRecording()
	b.tape.StopRecording()
	defer func() {
		if wasRecording {
			b.tape.StartRecording()
		}
	}()
	fn()
}

// Name returns the backend name.
func (b *AutodiffBackend[B]) Name() string {
	return "Autodiff(" + b.inner.Name() + ")"
}

// Device returns the compute device.
func (b *AutodiffBackend[B]) Device() tensor.Device {
	return b.inner.Device()
}

// Add performs element-wise addition and records the operation.
func (b *AutodiffBackend[B]) Add(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Add(a, c)
	b.Record(ops.NewAddOp(a, c, result))
	return result
}

// Sub performs element-wise subtraction and records the operation.
func (b *AutodiffBackend[B]) Sub(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Sub(a, c)
	b.Record(ops.NewSubOp(a, c, result))
	return result
}

// Mul performs element-wise multiplication and records the operation.
func (b *AutodiffBackend[B]) Mul(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Mul(a, c)
	b.Record(ops.NewMulOp(a, c, result))
	return result
}

// Div performs element-wise division and records the operation.
func (b *AutodiffBackend[B]) Div(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Div(a, c)
	b.Record(ops.NewDivOp(a, c, result))
	return result
}

// AddScalar adds a constant and records the operation.
func (b *AutodiffBackend[B]) AddScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	result := b.inner.AddScalar(x, scalar)
	b.Record(ops.NewAddScalarOp(x, result, scalar))
	return result
}

// MulScalar multiplies by a constant and records the operation.
func (b *AutodiffBackend[B]) MulScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	result := b.inner.MulScalar(x, scalar)
	b.Record(ops.NewMulScalarOp(x, result, scalar))
	return result
}

// Neg negates x and records the operation.
func (b *AutodiffBackend[B]) Neg(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Neg(x)
	b.Record(ops.NewNegOp(x, result))
	return result
}

// Sqrt computes the square root and records the operation.
func (b *AutodiffBackend[B]) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Sqrt(x)
	b.Record(ops.NewSqrtOp(x, result))
	return result
}

// Reciprocal computes 1/x and records the operation.
func (b *AutodiffBackend[B]) Reciprocal(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Reciprocal(x)
	b.Record(ops.NewReciprocalOp(x, result))
	return result
}

// SumAxes sums over axes and records the operation.
func (b *AutodiffBackend[B]) SumAxes(x *tensor.RawTensor, axes []int, keepDims bool) *tensor.RawTensor {
	result := b.inner.SumAxes(x, axes, keepDims)
	b.Record(ops.NewSumAxesOp(x, result, axes))
	return result
}

// MeanAxes averages over axes and records the operation.
func (b *AutodiffBackend[B]) MeanAxes(x *tensor.RawTensor, axes []int, keepDims bool) *tensor.RawTensor {
	result := b.inner.MeanAxes(x, axes, keepDims)
	b.Record(ops.NewMeanAxesOp(x, result, axes))
	return result
}

// VarAxes computes the population variance over axes and records the operation.
func (b *AutodiffBackend[B]) VarAxes(x *tensor.RawTensor, axes []int, keepDims bool) *tensor.RawTensor {
	result := b.inner.VarAxes(x, axes, keepDims)
	b.Record(ops.NewVarAxesOp(x, result, axes))
	return result
}

// Reshape reshapes a tensor and records the operation.
//
// Reshape must be recorded on tape: without it, gradients computed for the
// reshaped view never reach the original tensor (e.g. a per-channel
// parameter reshaped to broadcast against a batch). An unchanged shape
// returns t itself and records nothing.
func (b *AutodiffBackend[B]) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	result := b.inner.Reshape(t, newShape)
	if result != t {
		b.Record(ops.NewReshapeOp(t, result))
	}
	return result
}

// Expand broadcasts x to shape and records the operation.
func (b *AutodiffBackend[B]) Expand(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	result := b.inner.Expand(x, shape)
	b.Record(ops.NewExpandOp(x, result))
	return result
}

// Cast converts x to dtype and records the operation.
// A cast to the same dtype returns x itself and records nothing.
func (b *AutodiffBackend[B]) Cast(x *tensor.RawTensor, dtype tensor.DataType) *tensor.RawTensor {
	result := b.inner.Cast(x, dtype)
	if result != x {
		b.Record(ops.NewCastOp(x, result))
	}
	return result
}

// CastInto delegates to the wrapped backend. Writes into existing storage
// are not differentiable and are never recorded.
func (b *AutodiffBackend[B]) CastInto(src, dst *tensor.RawTensor) {
	b.inner.CastInto(src, dst)
}

// AddInPlace delegates to the wrapped backend without recording.
func (b *AutodiffBackend[B]) AddInPlace(dst, src *tensor.RawTensor) {
	b.inner.AddInPlace(dst, src)
}

// MulScalarInPlace delegates to the wrapped backend without recording.
func (b *AutodiffBackend[B]) MulScalarInPlace(dst *tensor.RawTensor, scalar float64) {
	b.inner.MulScalarInPlace(dst, scalar)
}
