package cpu

import (
	"github.com/born-ml/batchnorm/internal/tensor"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/x448/float16"
)

// Cast converts the tensor to a different data type.
// It returns x itself if it already has dtype.
func (cpu *CPUBackend) Cast(x *tensor.RawTensor, dtype tensor.DataType) *tensor.RawTensor {
	if x.DType() == dtype {
		return x
	}
	result := cpu.newResult("cast", x.Shape(), dtype)
	castImpl(result, x)
	return result
}

// CastInto converts src into dst's dtype and writes it into dst's storage.
// Shapes must hold the same number of elements.
func (cpu *CPUBackend) CastInto(src, dst *tensor.RawTensor) {
	if src.NumElements() != dst.NumElements() {
		fail(tensor.ErrDimension, "cast_into: source %v and destination %v differ in size",
			src.Shape(), dst.Shape())
	}
	if src.SharesStorage(dst) && src.DType() == dst.DType() {
		return
	}
	castImpl(dst, src)
}

// castImpl converts x into result. The half precision formats and float32
// have direct paths, everything else goes through float64.
func castImpl(result, x *tensor.RawTensor) {
	from, to := x.DType(), result.DType()
	switch {
	case from == to:
		copy(result.Data(), x.Data())
	case from == tensor.Float16 && to == tensor.Float32:
		dst := result.AsFloat32()
		for i, v := range x.AsFloat16() {
			dst[i] = v.Float32()
		}
	case from == tensor.BFloat16 && to == tensor.Float32:
		dst := result.AsFloat32()
		for i, v := range x.AsBFloat16() {
			dst[i] = v.Float32()
		}
	case from == tensor.Float32 && to == tensor.Float16:
		dst := result.AsFloat16()
		for i, v := range x.AsFloat32() {
			dst[i] = float16.Fromfloat32(v)
		}
	case from == tensor.Float32 && to == tensor.BFloat16:
		dst := result.AsBFloat16()
		for i, v := range x.AsFloat32() {
			dst[i] = bfloat16.FromFloat32(v)
		}
	case from == tensor.Float32 && to == tensor.Float64:
		dst := result.AsFloat64()
		for i, v := range x.AsFloat32() {
			dst[i] = float64(v)
		}
	case from == tensor.Float64 && to == tensor.Float32:
		dst := result.AsFloat32()
		for i, v := range x.AsFloat64() {
			dst[i] = float32(v)
		}
	default:
		result.SetFloat64s(x.Float64s())
	}
}

// AddInPlace performs dst += src, with src broadcast to dst's shape.
// The sum is computed in the promoted dtype and stored back in dst's dtype.
func (cpu *CPUBackend) AddInPlace(dst, src *tensor.RawTensor) {
	sum := cpu.Add(dst, src)
	if !sum.Shape().Equal(dst.Shape()) {
		fail(tensor.ErrDimension, "add_in_place: cannot broadcast %v into %v", src.Shape(), dst.Shape())
	}
	cpu.CastInto(sum, dst)
}

// MulScalarInPlace performs dst *= scalar.
func (cpu *CPUBackend) MulScalarInPlace(dst *tensor.RawTensor, scalar float64) {
	cpu.CastInto(cpu.MulScalar(dst, scalar), dst)
}
