// Package tensor provides the array container, data types, shapes and the
// backend contract used by the batch normalization operator.
package tensor

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types for tensors.
const (
	Float32 DataType = iota
	Float64
	Int32
	Int64
	Uint8
	Bool
	Float16
	BFloat16
)

// Kind groups data types by the arithmetic they support.
type Kind int

// Data type kinds.
const (
	KindBool Kind = iota
	KindUnsigned
	KindSigned
	KindFloat
)

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	case Float16, BFloat16:
		return 2
	case Uint8, Bool:
		return 1
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float16:
		return "float16"
	case BFloat16:
		return "bfloat16"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Bool:
		return "bool"
	default:
		return "unknown"
	}
}

// Kind returns the kind of the data type.
func (dt DataType) Kind() Kind {
	switch dt {
	case Float16, BFloat16, Float32, Float64:
		return KindFloat
	case Int32, Int64:
		return KindSigned
	case Uint8:
		return KindUnsigned
	default:
		return KindBool
	}
}

// IsFloat reports whether dt is a floating point type.
func (dt DataType) IsFloat() bool {
	return dt.Kind() == KindFloat
}

// rank orders data types of the same kind by precision.
func (dt DataType) rank() int {
	switch dt {
	case Bool:
		return 0
	case Uint8:
		return 1
	case Int32:
		return 2
	case Int64:
		return 3
	case Float16, BFloat16:
		return 4
	case Float32:
		return 5
	case Float64:
		return 6
	default:
		return -1
	}
}

// promote returns the common type of two data types.
//
// A floating type always wins over a non-floating one. Two half precision
// formats have no common 16-bit representation and meet at float32.
func promote(a, b DataType) DataType {
	if a == b {
		return a
	}
	if a.IsFloat() != b.IsFloat() {
		if a.IsFloat() {
			return a
		}
		return b
	}
	if (a == Float16 && b == BFloat16) || (a == BFloat16 && b == Float16) {
		return Float32
	}
	if a.rank() >= b.rank() {
		return a
	}
	return b
}

// ResultType returns the data type arithmetic between values of the given
// types is carried out in. It panics if called without arguments.
//
// Example:
//
//	ResultType(Float32, Float64)  // Float64
//	ResultType(Float16, BFloat16) // Float32
func ResultType(dtypes ...DataType) DataType {
	if len(dtypes) == 0 {
		panic("ResultType: at least one data type is required")
	}
	dt := dtypes[0]
	for _, other := range dtypes[1:] {
		dt = promote(dt, other)
	}
	return dt
}

// ResultTypeOf is ResultType over the data types of the given tensors.
func ResultTypeOf(tensors ...*RawTensor) DataType {
	dtypes := make([]DataType, len(tensors))
	for i, t := range tensors {
		dtypes[i] = t.DType()
	}
	return ResultType(dtypes...)
}
