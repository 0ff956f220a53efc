package tensor

import (
	"math"
	"math/rand"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRawAllTypes(t *testing.T) {
	for _, dt := range []DataType{Float16, BFloat16, Float32, Float64, Int32, Int64, Uint8, Bool} {
		raw, err := NewRaw(Shape{2, 3}, dt, CPU)
		require.NoError(t, err, dt)
		assert.Equal(t, 6, raw.NumElements())
		assert.Equal(t, 6*dt.Size(), raw.ByteSize(), dt)
		assert.Equal(t, []int{3, 1}, raw.Strides())
		assert.Equal(t, make([]float64, 6), raw.Float64s(), "zero-initialized %s", dt)
	}
}

func TestNewRawInvalidShape(t *testing.T) {
	for _, shape := range []Shape{{0}, {2, -1}, {3, 0, 2}, {1 << 32, 1 << 32}, {math.MaxInt/2 + 1, 2}} {
		_, err := NewRaw(shape, Float32, CPU)
		require.ErrorIs(t, err, ErrDimension, "%v", shape)
	}
}

func TestRawTensorScalar(t *testing.T) {
	raw := must.M1(Full(Shape{}, Float64, 2.5, CPU))
	assert.Equal(t, 1, raw.NumElements())
	assert.Equal(t, []float64{2.5}, raw.AsFloat64())
	assert.Equal(t, "()", raw.Shape().String())
}

func TestRawTensorZeroCopyViews(t *testing.T) {
	raw := must.M1(NewRaw(Shape{3, 2}, Int64, CPU))
	raw.AsInt64()[0] = 42
	assert.Equal(t, int64(42), raw.AsInt64()[0])

	view := must.M1(raw.Reshape(Shape{6}))
	assert.True(t, view.SharesStorage(raw))
	view.AsInt64()[5] = 7
	assert.Equal(t, int64(7), raw.AsInt64()[5])

	_, err := raw.Reshape(Shape{4})
	require.ErrorIs(t, err, ErrDimension)
}

func TestRawTensorCloneAndCopy(t *testing.T) {
	raw := must.M1(FromFloat64s([]float64{1, 2, 3}, Shape{3}, Float32, CPU))

	alias := raw.Clone()
	assert.True(t, alias.SharesStorage(raw))

	copied := raw.Copy()
	assert.False(t, copied.SharesStorage(raw))
	copied.AsFloat32()[0] = 9
	assert.Equal(t, []float32{1, 2, 3}, raw.AsFloat32())
	assert.Equal(t, Float32, copied.DType())
	assert.True(t, copied.Shape().Equal(raw.Shape()))
}

func TestRawTensorWrongTypePanics(t *testing.T) {
	raw := must.M1(NewRaw(Shape{2}, Float32, CPU))
	assert.Panics(t, func() { raw.AsFloat64() })
	assert.Panics(t, func() { raw.AsInt32() })
	assert.Panics(t, func() { raw.AsBool() })
	assert.Panics(t, func() { raw.SetFloat64s([]float64{1}) })
}

func TestSetFloat64sRoundTrip(t *testing.T) {
	values := []float64{-2, 0.5, 3}
	tests := []struct {
		dtype DataType
		want  []float64
	}{
		{Float16, []float64{-2, 0.5, 3}},
		{BFloat16, []float64{-2, 0.5, 3}},
		{Float32, []float64{-2, 0.5, 3}},
		{Float64, []float64{-2, 0.5, 3}},
		{Int32, []float64{-2, 0, 3}},
		{Int64, []float64{-2, 0, 3}},
		{Bool, []float64{1, 1, 1}},
	}
	for _, tt := range tests {
		raw := must.M1(FromFloat64s(values, Shape{3}, tt.dtype, CPU))
		assert.Equal(t, tt.want, raw.Float64s(), tt.dtype.String())
	}
}

func TestCreation(t *testing.T) {
	assert.Equal(t, []float32{0, 0}, must.M1(Zeros(Shape{2}, Float32, CPU)).AsFloat32())
	assert.Equal(t, []float64{1, 1}, must.M1(Ones(Shape{2}, Float64, CPU)).AsFloat64())
	assert.Equal(t, []int32{-3, -3}, must.M1(Full(Shape{2}, Int32, -3, CPU)).AsInt32())

	_, err := FromFloat64s([]float64{1, 2, 3}, Shape{2, 2}, Float32, CPU)
	require.ErrorIs(t, err, ErrDimension)

	like := EmptyLike(must.M1(Ones(Shape{4, 1}, BFloat16, CPU)))
	assert.Equal(t, BFloat16, like.DType())
	assert.Equal(t, Shape{4, 1}, like.Shape())
}

func TestRandn(t *testing.T) {
	a := must.M1(Randn(Shape{100, 50}, Float32, CPU, rand.New(rand.NewSource(1))))
	b := must.M1(Randn(Shape{100, 50}, Float32, CPU, rand.New(rand.NewSource(1))))
	assert.Equal(t, a.AsFloat32(), b.AsFloat32(), "same seed, same values")

	var sum float64
	for _, v := range a.Float64s() {
		sum += v
	}
	assert.InDelta(t, 0, sum/5000, 0.1)
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		a, b      Shape
		want      Shape
		broadcast bool
	}{
		{Shape{3, 1}, Shape{3, 5}, Shape{3, 5}, true},
		{Shape{1, 5}, Shape{3, 5}, Shape{3, 5}, true},
		{Shape{3, 5}, Shape{3, 5}, Shape{3, 5}, false},
		{Shape{5}, Shape{2, 3, 5}, Shape{2, 3, 5}, true},
		{Shape{}, Shape{2}, Shape{2}, true},
	}
	for _, tt := range tests {
		got, broadcast, err := BroadcastShapes(tt.a, tt.b)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%v + %v", tt.a, tt.b)
		assert.Equal(t, tt.broadcast, broadcast, "%v + %v", tt.a, tt.b)
	}

	_, _, err := BroadcastShapes(Shape{3, 4}, Shape{3, 5})
	require.ErrorIs(t, err, ErrDimension)
}

func TestSortedAxes(t *testing.T) {
	axes, err := SortedAxes([]int{2, -3}, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, axes)

	for _, bad := range [][]int{{3}, {-4}, {0, 0}, {1, -2}} {
		_, err := SortedAxes(bad, 3)
		require.ErrorIs(t, err, ErrAxis, "%v", bad)
	}
}

func TestReduceShape(t *testing.T) {
	shape := Shape{2, 3, 4}
	assert.Equal(t, Shape{3}, ReduceShape(shape, []int{0, 2}, false))
	assert.Equal(t, Shape{1, 3, 1}, ReduceShape(shape, []int{0, 2}, true))
	assert.Equal(t, Shape{}, ReduceShape(shape, []int{0, 1, 2}, false))
}

func TestResultType(t *testing.T) {
	tests := []struct {
		in   []DataType
		want DataType
	}{
		{[]DataType{Float32}, Float32},
		{[]DataType{Float32, Float64}, Float64},
		{[]DataType{Float16, Float32}, Float32},
		{[]DataType{Float16, BFloat16}, Float32},
		{[]DataType{Float16, Float16}, Float16},
		{[]DataType{Int64, Float16}, Float16},
		{[]DataType{Int32, Int64}, Int64},
		{[]DataType{BFloat16, Float32, Float64}, Float64},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResultType(tt.in...), "%v", tt.in)
	}
	assert.Panics(t, func() { ResultType() })
}
