// Package cpu implements the CPU backend in pure Go.
//
// Float32 and Float64 tensors are processed natively. Float16 and BFloat16
// tensors are widened to float32 for each operation and rounded back, so
// every operation still produces a result in its operands' precision.
package cpu

import (
	"github.com/born-ml/batchnorm/internal/parallel"
	"github.com/born-ml/batchnorm/internal/tensor"
	"github.com/pkg/errors"
)

// Config controls the CPU backend.
type Config struct {
	Parallel parallel.Config // data parallelism of elementwise kernels
}

// DefaultConfig returns the configuration used by New.
func DefaultConfig() Config {
	return Config{Parallel: parallel.DefaultConfig()}
}

// CPUBackend implements tensor operations on CPU.
type CPUBackend struct {
	device tensor.Device
	cfg    Config
}

// New creates a new CPU backend.
func New() *CPUBackend {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a CPU backend with an explicit configuration.
func NewWithConfig(cfg Config) *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
		cfg:    cfg,
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// fail panics with an error of the given kind. Backend methods have no error
// return; callers at the API edge recover these with exceptions.TryCatch.
func fail(kind error, format string, args ...any) {
	panic(errors.Wrapf(kind, format, args...))
}

// newResult allocates an output tensor on this backend.
func (cpu *CPUBackend) newResult(op string, shape tensor.Shape, dtype tensor.DataType) *tensor.RawTensor {
	result, err := tensor.NewRaw(shape, dtype, cpu.device)
	if err != nil {
		panic(errors.WithMessagef(err, "%s: failed to create result tensor", op))
	}
	return result
}

// requireFloat panics with ErrDtype unless dtype is a floating type.
func requireFloat(op string, dtype tensor.DataType) {
	if !dtype.IsFloat() {
		fail(tensor.ErrDtype, "%s: unsupported dtype %s (only floating types supported)", op, dtype)
	}
}

// computeType is the dtype arithmetic on dtype is carried out in.
func computeType(dtype tensor.DataType) tensor.DataType {
	if dtype == tensor.Float16 || dtype == tensor.BFloat16 {
		return tensor.Float32
	}
	return dtype
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("add", a, b, add[float32], add[float64])
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("sub", a, b, sub[float32], sub[float64])
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("mul", a, b, mul[float32], mul[float64])
}

// Div performs element-wise division with broadcasting.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("div", a, b, div[float32], div[float64])
}

// binary runs an elementwise binary kernel in the promoted dtype of a and b.
func (cpu *CPUBackend) binary(
	op string,
	a, b *tensor.RawTensor,
	f32 func(x, y float32) float32,
	f64 func(x, y float64) float64,
) *tensor.RawTensor {
	dtype := tensor.ResultType(a.DType(), b.DType())
	requireFloat(op, dtype)

	outShape, _, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(errors.WithMessage(err, op))
	}

	ct := computeType(dtype)
	ac, bc := cpu.Cast(a, ct), cpu.Cast(b, ct)
	result := cpu.newResult(op, outShape, ct)
	ai := newBroadcastIndex(a.Shape(), outShape)
	bi := newBroadcastIndex(b.Shape(), outShape)

	switch ct {
	case tensor.Float32:
		binaryKernel(result.AsFloat32(), ac.AsFloat32(), bc.AsFloat32(), ai, bi, cpu.cfg.Parallel, f32)
	case tensor.Float64:
		binaryKernel(result.AsFloat64(), ac.AsFloat64(), bc.AsFloat64(), ai, bi, cpu.cfg.Parallel, f64)
	}

	return cpu.Cast(result, dtype)
}
