// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the array container used by the batch
// normalization operator: a runtime-typed RawTensor over contiguous storage,
// its shapes, dtypes and the compute Backend interface.
//
// # Supported Data Types
//
//   - Float16, BFloat16, Float32, Float64 (floating-point)
//   - Int32, Int64, Uint8 (integer)
//   - Bool
//
// Arithmetic between dtypes follows ResultType: a float beats a non-float,
// wider floats beat narrower ones, and Float16 with BFloat16 gives Float32.
//
// # Basic Usage
//
//	x, err := tensor.FromFloat64s([]float64{1, 2, 3, 4}, tensor.Shape{2, 2}, tensor.Float32, tensor.CPU)
//	gamma, err := tensor.Ones(tensor.Shape{2}, tensor.Float32, tensor.CPU)
package tensor

import (
	"math/rand"

	"github.com/born-ml/batchnorm/internal/tensor"
)

// RawTensor is a shape, dtype and device over contiguous storage. Reshaped
// views share the storage of the tensor they come from.
type RawTensor = tensor.RawTensor

// Shape represents the dimensions of a tensor.
type Shape = tensor.Shape

// DataType is the element type of a tensor.
type DataType = tensor.DataType

// Device identifies where a tensor's storage lives.
type Device = tensor.Device

// Backend is the set of primitives the operator is built from.
type Backend = tensor.Backend

// Data types.
const (
	Float32  = tensor.Float32
	Float64  = tensor.Float64
	Int32    = tensor.Int32
	Int64    = tensor.Int64
	Uint8    = tensor.Uint8
	Bool     = tensor.Bool
	Float16  = tensor.Float16
	BFloat16 = tensor.BFloat16
)

// Devices.
const (
	CPU  = tensor.CPU
	CUDA = tensor.CUDA
)

// Error kinds. Every error returned by this module wraps one of them; test
// with errors.Is.
var (
	ErrDtype     = tensor.ErrDtype
	ErrDimension = tensor.ErrDimension
	ErrAxis      = tensor.ErrAxis
	ErrInternal  = tensor.ErrInternal
)

// NewRaw creates a zero-filled tensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// Zeros creates a tensor filled with zeros.
func Zeros(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.Zeros(shape, dtype, device)
}

// Ones creates a tensor filled with ones.
func Ones(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.Ones(shape, dtype, device)
}

// Full creates a tensor filled with value.
func Full(shape Shape, dtype DataType, value float64, device Device) (*RawTensor, error) {
	return tensor.Full(shape, dtype, value, device)
}

// FromFloat64s creates a tensor of dtype from float64 values.
func FromFloat64s(values []float64, shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.FromFloat64s(values, shape, dtype, device)
}

// Randn creates a tensor of standard normal samples drawn from rng.
func Randn(shape Shape, dtype DataType, device Device, rng *rand.Rand) (*RawTensor, error) {
	return tensor.Randn(shape, dtype, device, rng)
}

// ResultType returns the dtype arithmetic between dtypes is carried out in.
func ResultType(dtypes ...DataType) DataType {
	return tensor.ResultType(dtypes...)
}
