package tensor

// Backend defines the interface that all compute backends must implement.
// Backends handle the actual computation for tensor operations.
//
// Binary operations broadcast NumPy-style and compute in
// ResultType(a.DType(), b.DType()). Broken preconditions (incompatible
// shapes, unsupported dtypes) panic with an error wrapping ErrDimension,
// ErrDtype or ErrInternal.
//
// Implementations:
//   - CPU: Pure Go, data-parallel loops (backend/cpu)
//   - Autodiff: decorator recording differentiable operations (autodiff)
type Backend interface {
	// Element-wise binary operations
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// Scalar operations (element-wise with scalar, computed in x's dtype)
	AddScalar(x *RawTensor, scalar float64) *RawTensor
	MulScalar(x *RawTensor, scalar float64) *RawTensor

	// Math operations (element-wise)
	Neg(x *RawTensor) *RawTensor
	Sqrt(x *RawTensor) *RawTensor
	Reciprocal(x *RawTensor) *RawTensor // 1/x

	// Reductions over a set of resolved axes
	SumAxes(x *RawTensor, axes []int, keepDims bool) *RawTensor
	MeanAxes(x *RawTensor, axes []int, keepDims bool) *RawTensor
	VarAxes(x *RawTensor, axes []int, keepDims bool) *RawTensor // population variance (divisor n)

	// Shape operations
	Reshape(t *RawTensor, newShape Shape) *RawTensor // view; returns t itself if the shape is unchanged
	Expand(x *RawTensor, shape Shape) *RawTensor     // broadcast to shape

	// Type conversion
	Cast(x *RawTensor, dtype DataType) *RawTensor // returns x itself if already dtype
	CastInto(src, dst *RawTensor)                 // converts src into dst's storage and dtype

	// In-place compound assignment (never differentiated)
	AddInPlace(dst, src *RawTensor)
	MulScalarInPlace(dst *RawTensor, scalar float64)

	// Metadata
	Name() string
	Device() Device
}
