package cpu

import (
	"math"
	"testing"

	"github.com/born-ml/batchnorm/internal/parallel"
	"github.com/born-ml/batchnorm/internal/tensor"
	"github.com/gomlx/exceptions"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fromValues(values []float64, shape tensor.Shape, dtype tensor.DataType) *tensor.RawTensor {
	return must.M1(tensor.FromFloat64s(values, shape, dtype, tensor.CPU))
}

func TestCPUBackend_New(t *testing.T) {
	backend := New()
	require.NotNil(t, backend)
	assert.Equal(t, "CPU", backend.Name())
	assert.Equal(t, tensor.CPU, backend.Device())
}

func TestCPUBackend_Add(t *testing.T) {
	backend := New()

	t.Run("SameShape", func(t *testing.T) {
		a := fromValues([]float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, tensor.Float32)
		b := fromValues([]float64{10, 11, 12, 13, 14, 15}, tensor.Shape{2, 3}, tensor.Float32)

		result := backend.Add(a, b)
		assert.Equal(t, []float32{11, 13, 15, 17, 19, 21}, result.AsFloat32())
		assert.False(t, result.SharesStorage(a), "inputs must never be overwritten")
	})

	t.Run("Broadcast", func(t *testing.T) {
		a := fromValues([]float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, tensor.Float64)
		b := fromValues([]float64{10, 20, 30}, tensor.Shape{1, 3}, tensor.Float64)

		result := backend.Add(a, b)
		assert.True(t, result.Shape().Equal(tensor.Shape{2, 3}))
		assert.Equal(t, []float64{11, 22, 33, 14, 25, 36}, result.AsFloat64())
	})

	t.Run("Promotion", func(t *testing.T) {
		a := fromValues([]float64{1.5}, tensor.Shape{1}, tensor.Float32)
		b := fromValues([]float64{0.25}, tensor.Shape{1}, tensor.Float64)

		result := backend.Add(a, b)
		assert.Equal(t, tensor.Float64, result.DType())
		assert.Equal(t, []float64{1.75}, result.AsFloat64())
	})

	t.Run("HalfPrecision", func(t *testing.T) {
		a := fromValues([]float64{1, 2}, tensor.Shape{2}, tensor.Float16)
		b := fromValues([]float64{0.5, 0.25}, tensor.Shape{2}, tensor.BFloat16)

		result := backend.Add(a, b)
		assert.Equal(t, tensor.Float32, result.DType())
		assert.Equal(t, []float32{1.5, 2.25}, result.AsFloat32())

		same := backend.Mul(a, a)
		assert.Equal(t, tensor.Float16, same.DType())
		assert.Equal(t, []float64{1, 4}, same.Float64s())
	})

	t.Run("IncompatibleShapes", func(t *testing.T) {
		a := fromValues([]float64{1, 2, 3}, tensor.Shape{3}, tensor.Float32)
		b := fromValues([]float64{1, 2}, tensor.Shape{2}, tensor.Float32)

		err := exceptions.TryCatch[error](func() { backend.Add(a, b) })
		require.ErrorIs(t, err, tensor.ErrDimension)
	})

	t.Run("NonFloat", func(t *testing.T) {
		a := fromValues([]float64{1, 2}, tensor.Shape{2}, tensor.Int32)

		err := exceptions.TryCatch[error](func() { backend.Add(a, a) })
		require.ErrorIs(t, err, tensor.ErrDtype)
	})
}

func TestCPUBackend_Arithmetic(t *testing.T) {
	backend := New()
	a := fromValues([]float64{8, 6, 4}, tensor.Shape{3}, tensor.Float64)
	b := fromValues([]float64{2}, tensor.Shape{1}, tensor.Float64)

	assert.Equal(t, []float64{6, 4, 2}, backend.Sub(a, b).AsFloat64())
	assert.Equal(t, []float64{16, 12, 8}, backend.Mul(a, b).AsFloat64())
	assert.Equal(t, []float64{4, 3, 2}, backend.Div(a, b).AsFloat64())
	assert.Equal(t, []float64{-8, -6, -4}, backend.Neg(a).AsFloat64())
	assert.Equal(t, []float64{9, 7, 5}, backend.AddScalar(a, 1).AsFloat64())
	assert.Equal(t, []float64{4, 3, 2}, backend.MulScalar(a, 0.5).AsFloat64())
	assert.Equal(t, []float64{0.125, 1.0 / 6, 0.25}, backend.Reciprocal(a).AsFloat64())

	sq := backend.Sqrt(fromValues([]float64{4, 9, -1}, tensor.Shape{3}, tensor.Float32)).AsFloat32()
	assert.Equal(t, float32(2), sq[0])
	assert.Equal(t, float32(3), sq[1])
	assert.True(t, math.IsNaN(float64(sq[2])))
}

func TestCPUBackend_Reductions(t *testing.T) {
	backend := New()
	// [[1, 2, 3],
	//  [4, 5, 6]]
	x := fromValues([]float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, tensor.Float64)

	t.Run("SumKeepDims", func(t *testing.T) {
		result := backend.SumAxes(x, []int{0}, true)
		assert.True(t, result.Shape().Equal(tensor.Shape{1, 3}))
		assert.Equal(t, []float64{5, 7, 9}, result.AsFloat64())
	})

	t.Run("SumNegativeAxis", func(t *testing.T) {
		result := backend.SumAxes(x, []int{-1}, false)
		assert.True(t, result.Shape().Equal(tensor.Shape{2}))
		assert.Equal(t, []float64{6, 15}, result.AsFloat64())
	})

	t.Run("SumAll", func(t *testing.T) {
		result := backend.SumAxes(x, []int{0, 1}, false)
		assert.Equal(t, 0, result.Shape().Rank())
		assert.Equal(t, []float64{21}, result.AsFloat64())
	})

	t.Run("Mean", func(t *testing.T) {
		result := backend.MeanAxes(x, []int{1}, true)
		assert.True(t, result.Shape().Equal(tensor.Shape{2, 1}))
		assert.Equal(t, []float64{2, 5}, result.AsFloat64())
	})

	t.Run("PopulationVariance", func(t *testing.T) {
		result := backend.VarAxes(x, []int{0}, false)
		assert.Equal(t, []float64{2.25, 2.25, 2.25}, result.AsFloat64())
	})

	t.Run("NoAxes", func(t *testing.T) {
		result := backend.SumAxes(x, nil, true)
		assert.Equal(t, x.AsFloat64(), result.AsFloat64())
	})

	t.Run("BadAxis", func(t *testing.T) {
		err := exceptions.TryCatch[error](func() { backend.SumAxes(x, []int{2}, true) })
		require.ErrorIs(t, err, tensor.ErrAxis)
	})
}

func TestCPUBackend_ReshapeAndExpand(t *testing.T) {
	backend := New()
	x := fromValues([]float64{1, 2, 3}, tensor.Shape{3}, tensor.Float32)

	assert.Same(t, x, backend.Reshape(x, tensor.Shape{3}))

	view := backend.Reshape(x, tensor.Shape{1, 3})
	assert.True(t, view.SharesStorage(x))

	expanded := backend.Expand(view, tensor.Shape{2, 3})
	assert.Equal(t, []float32{1, 2, 3, 1, 2, 3}, expanded.AsFloat32())

	column := fromValues([]float64{1, 2}, tensor.Shape{2, 1}, tensor.BFloat16)
	assert.Equal(t, []float64{1, 1, 2, 2}, backend.Expand(column, tensor.Shape{2, 2}).Float64s())

	err := exceptions.TryCatch[error](func() { backend.Reshape(x, tensor.Shape{2, 2}) })
	require.ErrorIs(t, err, tensor.ErrDimension)
}

func TestCPUBackend_CastAndInPlace(t *testing.T) {
	backend := New()
	x := fromValues([]float64{1.5, -2}, tensor.Shape{2}, tensor.Float64)

	assert.Same(t, x, backend.Cast(x, tensor.Float64))
	assert.Equal(t, []float32{1.5, -2}, backend.Cast(x, tensor.Float32).AsFloat32())
	assert.Equal(t, []float64{1.5, -2}, backend.Cast(x, tensor.Float16).Float64s())

	dst := must.M1(tensor.Zeros(tensor.Shape{2}, tensor.Float32, tensor.CPU))
	backend.CastInto(x, dst)
	assert.Equal(t, []float32{1.5, -2}, dst.AsFloat32())

	running := fromValues([]float64{1, 2}, tensor.Shape{2}, tensor.Float32)
	alias := running.Clone()
	backend.MulScalarInPlace(running, 0.5)
	backend.AddInPlace(running, x)
	assert.Equal(t, []float32{2, -1}, alias.AsFloat32(), "in-place updates are visible through every handle")

	err := exceptions.TryCatch[error](func() {
		backend.AddInPlace(running, fromValues([]float64{1, 2, 3, 4}, tensor.Shape{2, 2}, tensor.Float32))
	})
	require.ErrorIs(t, err, tensor.ErrDimension)
}

func TestCPUBackend_SequentialMatchesParallel(t *testing.T) {
	seq := NewWithConfig(Config{Parallel: parallel.Sequential()})
	par := NewWithConfig(Config{Parallel: parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1}})

	values := make([]float64, 64)
	for i := range values {
		values[i] = float64(i) * 0.5
	}
	a := fromValues(values, tensor.Shape{8, 8}, tensor.Float32)
	b := fromValues(values[:8], tensor.Shape{8}, tensor.Float32)

	assert.Equal(t, seq.Mul(a, b).AsFloat32(), par.Mul(a, b).AsFloat32())
	assert.Equal(t, seq.Sqrt(a).AsFloat32(), par.Sqrt(a).AsFloat32())
}
