package cpu

import (
	"math"

	"github.com/born-ml/batchnorm/internal/tensor"
)

// AddScalar adds a scalar to every element, computing in x's dtype.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	return cpu.unary("add_scalar", x,
		func(v float32) float32 { return v + float32(scalar) },
		func(v float64) float64 { return v + scalar })
}

// MulScalar multiplies every element by a scalar, computing in x's dtype.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	return cpu.unary("mul_scalar", x,
		func(v float32) float32 { return v * float32(scalar) },
		func(v float64) float64 { return v * scalar })
}

// Neg negates every element.
func (cpu *CPUBackend) Neg(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("neg", x,
		func(v float32) float32 { return -v },
		func(v float64) float64 { return -v })
}

// Sqrt computes the element-wise square root.
// Negative inputs produce NaN.
func (cpu *CPUBackend) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("sqrt", x,
		func(v float32) float32 { return float32(math.Sqrt(float64(v))) },
		math.Sqrt)
}

// Reciprocal computes 1/x element-wise.
// Zero inputs produce +Inf or -Inf.
func (cpu *CPUBackend) Reciprocal(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("reciprocal", x,
		func(v float32) float32 { return 1 / v },
		func(v float64) float64 { return 1 / v })
}

// unary runs an elementwise kernel over a floating tensor, keeping its dtype.
func (cpu *CPUBackend) unary(
	op string,
	x *tensor.RawTensor,
	f32 func(v float32) float32,
	f64 func(v float64) float64,
) *tensor.RawTensor {
	dtype := x.DType()
	requireFloat(op, dtype)

	ct := computeType(dtype)
	xc := cpu.Cast(x, ct)
	result := cpu.newResult(op, x.Shape(), ct)

	switch ct {
	case tensor.Float32:
		unaryKernel(result.AsFloat32(), xc.AsFloat32(), cpu.cfg.Parallel, f32)
	case tensor.Float64:
		unaryKernel(result.AsFloat64(), xc.AsFloat64(), cpu.cfg.Parallel, f64)
	}

	return cpu.Cast(result, dtype)
}
