package tensor

import (
	"math/rand"

	"github.com/pkg/errors"
)

// Zeros creates a tensor filled with zeros.
//
// Example:
//
//	t, err := tensor.Zeros(tensor.Shape{3, 4}, tensor.Float32, tensor.CPU)
func Zeros(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return NewRaw(shape, dtype, device) // storage is zero-initialized
}

// Full creates a tensor filled with value, converted to dtype.
func Full(shape Shape, dtype DataType, value float64, device Device) (*RawTensor, error) {
	t, err := NewRaw(shape, dtype, device)
	if err != nil {
		return nil, err
	}
	values := make([]float64, t.NumElements())
	for i := range values {
		values[i] = value
	}
	t.SetFloat64s(values)
	return t, nil
}

// Ones creates a tensor filled with ones.
func Ones(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return Full(shape, dtype, 1, device)
}

// FromFloat64s creates a tensor of the given dtype from float64 values.
//
// Example:
//
//	x, err := tensor.FromFloat64s([]float64{1, 2, 3, 4}, tensor.Shape{2, 2}, tensor.Float32, tensor.CPU)
func FromFloat64s(values []float64, shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if shape.NumElements() != len(values) {
		return nil, errors.Wrapf(ErrDimension, "shape %v requires %d elements, but got %d",
			shape, shape.NumElements(), len(values))
	}
	t, err := NewRaw(shape, dtype, device)
	if err != nil {
		return nil, err
	}
	t.SetFloat64s(values)
	return t, nil
}

// EmptyLike allocates an uninitialized-by-contract tensor with the shape,
// dtype and device of t.
func EmptyLike(t *RawTensor) *RawTensor {
	out, err := NewRaw(t.Shape(), t.DType(), t.Device())
	if err != nil {
		panic(err) // t's shape is already valid
	}
	return out
}

// Randn creates a tensor with values drawn from the standard normal
// distribution using rng.
//
// Note: Uses math/rand (not crypto/rand) - appropriate for ML/statistical purposes.
func Randn(shape Shape, dtype DataType, device Device, rng *rand.Rand) (*RawTensor, error) {
	values := make([]float64, shape.NumElements())
	for i := range values {
		values[i] = rng.NormFloat64()
	}
	return FromFloat64s(values, shape, dtype, device)
}
