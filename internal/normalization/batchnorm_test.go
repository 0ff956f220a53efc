package normalization

import (
	"math"
	"math/rand"
	"testing"

	"github.com/born-ml/batchnorm/internal/autodiff"
	"github.com/born-ml/batchnorm/internal/backend/cpu"
	"github.com/born-ml/batchnorm/internal/tensor"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func fromValues(values []float64, shape tensor.Shape, dtype tensor.DataType) *tensor.RawTensor {
	return must.M1(tensor.FromFloat64s(values, shape, dtype, tensor.CPU))
}

func full(shape tensor.Shape, dtype tensor.DataType, value float64) *tensor.RawTensor {
	return must.M1(tensor.Full(shape, dtype, value, tensor.CPU))
}

func randn(rng *rand.Rand, shape tensor.Shape, dtype tensor.DataType) *tensor.RawTensor {
	return must.M1(tensor.Randn(shape, dtype, tensor.CPU, rng))
}

// column extracts column j of a row-major (rows, cols) matrix.
func column(values []float64, cols, j int) []float64 {
	out := make([]float64, 0, len(values)/cols)
	for i := j; i < len(values); i += cols {
		out = append(out, values[i])
	}
	return out
}

func popVariance(values []float64) float64 {
	_, unbiased := stat.MeanVariance(values, nil)
	n := float64(len(values))
	return unbiased * (n - 1) / n
}

// Rank-2 input with the default axis.
func TestBatchNorm_Rank2DefaultAxis(t *testing.T) {
	backend := cpu.New()
	x := fromValues([]float64{1, 2, 3, 3, 4, 5, 5, 6, 7, 7, 8, 9}, tensor.Shape{4, 3}, tensor.Float32)
	gamma := full(tensor.Shape{3}, tensor.Float32, 1)
	beta := full(tensor.Shape{3}, tensor.Float32, 0)
	runningMean := full(tensor.Shape{3}, tensor.Float32, 0)
	runningVar := full(tensor.Shape{3}, tensor.Float32, 1)

	out, err := BatchNorm(backend, x, gamma, beta, runningMean, runningVar, 1e-5, 0.9, nil)
	require.NoError(t, err)
	assert.Equal(t, tensor.Float32, out.DType())
	assert.True(t, out.Shape().Equal(tensor.Shape{4, 3}))

	values := out.Float64s()
	for j := range 3 {
		col := column(values, 3, j)
		assert.InDelta(t, 0, stat.Mean(col, nil), 1e-6)
		assert.InDelta(t, 1, popVariance(col), 1e-4)
	}

	assert.InDeltaSlice(t, []float64{0.4, 0.5, 0.6}, runningMean.Float64s(), 1e-6)
	wantVar := 0.9 + 0.1*(4.0/3.0)*5
	assert.InDeltaSlice(t, []float64{wantVar, wantVar, wantVar}, runningVar.Float64s(), 1e-5)
}

// A batch that is already standardized is only scaled and shifted.
func TestBatchNorm_AffineIdentity(t *testing.T) {
	backend := cpu.New()
	// Columns [1, -1, 1, -1] and [-1, -1, 1, 1]: mean 0, population variance 1.
	x := fromValues([]float64{1, -1, -1, -1, 1, 1, -1, 1}, tensor.Shape{4, 2}, tensor.Float64)
	gamma := fromValues([]float64{2, 3}, tensor.Shape{2}, tensor.Float64)
	beta := fromValues([]float64{-1, 1}, tensor.Shape{2}, tensor.Float64)

	out, err := BatchNorm(backend, x, gamma, beta,
		full(tensor.Shape{2}, tensor.Float64, 0), full(tensor.Shape{2}, tensor.Float64, 1), 0, 0.9, nil)
	require.NoError(t, err)

	xs := x.AsFloat64()
	want := make([]float64, len(xs))
	for i, v := range xs {
		j := i % 2
		want[i] = v*gamma.AsFloat64()[j] + beta.AsFloat64()[j]
	}
	assert.InDeltaSlice(t, want, out.AsFloat64(), 1e-12)
}

func TestBatchNorm_DtypePromotion(t *testing.T) {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(1))
	x := randn(rng, tensor.Shape{5, 2}, tensor.Float32)
	gamma := fromValues([]float64{1.5, 0.5}, tensor.Shape{2}, tensor.Float64)
	beta := fromValues([]float64{0.1, -0.2}, tensor.Shape{2}, tensor.Float64)
	runningMean := full(tensor.Shape{2}, tensor.Float16, 0)
	runningVar := full(tensor.Shape{2}, tensor.BFloat16, 1)

	out, err := BatchNorm(backend, x, gamma, beta, runningMean, runningVar, 1e-5, 0.9, nil)
	require.NoError(t, err)
	assert.Equal(t, tensor.Float32, out.DType())
	assert.Equal(t, tensor.Float16, runningMean.DType())
	assert.Equal(t, tensor.BFloat16, runningVar.DType())

	// The output is the float64 computation rounded once to float32.
	xc := backend.Cast(x, tensor.Float64)
	mean := backend.MeanAxes(xc, []int{0}, true)
	variance := backend.VarAxes(xc, []int{0}, true)
	want := must.M1(FixedBatchNorm(backend, xc, gamma, beta, mean, variance, 1e-5, nil))
	assert.Equal(t, backend.Cast(want, tensor.Float32).AsFloat32(), out.AsFloat32())
}

func TestBatchNorm_HalfPrecisionMix(t *testing.T) {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(2))
	x := randn(rng, tensor.Shape{8, 3}, tensor.Float16)
	gamma := full(tensor.Shape{3}, tensor.BFloat16, 1)
	beta := full(tensor.Shape{3}, tensor.BFloat16, 0)

	out, err := BatchNorm(backend, x, gamma, beta,
		full(tensor.Shape{3}, tensor.Float32, 0), full(tensor.Shape{3}, tensor.Float32, 1), 1e-5, 0.9, nil)
	require.NoError(t, err)
	assert.Equal(t, tensor.Float16, out.DType())

	values := out.Float64s()
	for j := range 3 {
		assert.InDelta(t, 0, stat.Mean(column(values, 3, j), nil), 1e-2)
	}
}

func TestBatchNorm_AxisError(t *testing.T) {
	backend := cpu.New()
	x := full(tensor.Shape{2, 3, 4}, tensor.Float32, 1)
	gamma := full(tensor.Shape{3}, tensor.Float32, 1)
	runningMean := full(tensor.Shape{3}, tensor.Float32, 7)
	runningVar := full(tensor.Shape{3}, tensor.Float32, 9)

	for _, axes := range [][]int{{3}, {-4}, {0, 0}, {1, -2}} {
		_, err := BatchNorm(backend, x, gamma, gamma, runningMean, runningVar, 1e-5, 0.9, axes)
		require.ErrorIs(t, err, tensor.ErrAxis, "axes %v", axes)
	}
	assert.Equal(t, []float32{7, 7, 7}, runningMean.AsFloat32(), "no side effects on error")
	assert.Equal(t, []float32{9, 9, 9}, runningVar.AsFloat32())
}

func TestBatchNorm_SizeMismatch(t *testing.T) {
	backend := cpu.New()
	x := full(tensor.Shape{4, 3}, tensor.Float32, 1)
	gamma := full(tensor.Shape{4}, tensor.Float32, 1)
	ok := full(tensor.Shape{3}, tensor.Float32, 1)
	runningMean := full(tensor.Shape{3}, tensor.Float32, 5)

	_, err := BatchNorm(backend, x, gamma, ok, runningMean, ok, 1e-5, 0.9, nil)
	require.ErrorIs(t, err, tensor.ErrDimension)
	assert.Contains(t, err.Error(), "actual: 4, expected: 3")
	assert.Equal(t, []float32{5, 5, 5}, runningMean.AsFloat32())

	_, err = FixedBatchNorm(backend, x, ok, ok, ok, gamma, 1e-5, nil)
	require.ErrorIs(t, err, tensor.ErrDimension)
}

func TestBatchNorm_DtypeError(t *testing.T) {
	backend := cpu.New()
	x := full(tensor.Shape{4, 3}, tensor.Float32, 1)
	ok := full(tensor.Shape{3}, tensor.Float32, 1)
	ints := full(tensor.Shape{3}, tensor.Int32, 1)

	_, err := BatchNorm(backend, x, ok, ok, ints, ok, 1e-5, 0.9, nil)
	require.ErrorIs(t, err, tensor.ErrDtype)

	_, err = FixedBatchNorm(backend, full(tensor.Shape{4, 3}, tensor.Uint8, 1), ok, ok, ok, ok, 1e-5, nil)
	require.ErrorIs(t, err, tensor.ErrDtype)
}

// The inference path with the batch statistics reproduces the training output.
func TestFixedBatchNorm_MatchesTraining(t *testing.T) {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(3))
	x := randn(rng, tensor.Shape{6, 4}, tensor.Float64)
	gamma := full(tensor.Shape{4}, tensor.Float64, 1)
	beta := full(tensor.Shape{4}, tensor.Float64, 0)

	trained, err := BatchNorm(backend, x, gamma, beta,
		full(tensor.Shape{4}, tensor.Float64, 0), full(tensor.Shape{4}, tensor.Float64, 1), 1e-5, 0.9, nil)
	require.NoError(t, err)

	mean := backend.MeanAxes(x, []int{0}, false)
	variance := backend.VarAxes(x, []int{0}, false)
	fixed, err := FixedBatchNorm(backend, x, gamma, beta, mean, variance, 1e-5, nil)
	require.NoError(t, err)
	assert.InDeltaSlice(t, trained.AsFloat64(), fixed.AsFloat64(), 1e-12)
}

func TestFixedBatchNorm_Standardizes(t *testing.T) {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(4))
	x := randn(rng, tensor.Shape{2, 3, 4}, tensor.Float32)
	axes := []int{0, 2}
	mean := fromValues([]float64{0.5, -1, 2}, tensor.Shape{3}, tensor.Float64)
	variance := fromValues([]float64{1, 4, 0.25}, tensor.Shape{1, 3, 1}, tensor.Float32)
	eps := 1e-3

	out, err := FixedBatchNorm(backend, x, full(tensor.Shape{3}, tensor.Float32, 1),
		full(tensor.Shape{3}, tensor.Float32, 0), mean, variance, eps, axes)
	require.NoError(t, err)
	assert.Equal(t, tensor.Float32, out.DType())

	xs, got := x.Float64s(), out.Float64s()
	ms, vs := mean.Float64s(), variance.Float64s()
	for i := range xs {
		c := (i / 4) % 3
		want := (xs[i] - ms[c]) / math.Sqrt(vs[c]+eps)
		assert.InDelta(t, want, got[i], 1e-5)
	}
}

func TestFixedBatchNorm_DoesNotRecord(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()
	x := full(tensor.Shape{2, 3}, tensor.Float32, 1)
	aux := full(tensor.Shape{1, 3}, tensor.Float32, 1)

	_, err := FixedBatchNorm(backend, x, aux, aux, aux, aux, 1e-5, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, backend.Tape().NumOps())
}

func TestBatchNorm_DecayOneKeepsRunningStats(t *testing.T) {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(5))
	x := randn(rng, tensor.Shape{7, 3}, tensor.Float64)
	runningMean := fromValues([]float64{0.25, -3, 1e3}, tensor.Shape{3}, tensor.Float32)
	runningVar := fromValues([]float64{2, 0.5, 8}, tensor.Shape{3}, tensor.Float64)
	meanBefore := append([]float32(nil), runningMean.AsFloat32()...)
	varBefore := append([]float64(nil), runningVar.AsFloat64()...)

	_, err := BatchNorm(backend, x, full(tensor.Shape{3}, tensor.Float64, 1), full(tensor.Shape{3}, tensor.Float64, 0),
		runningMean, runningVar, 1e-5, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, meanBefore, runningMean.AsFloat32())
	assert.Equal(t, varBefore, runningVar.AsFloat64())
}

func TestBatchNorm_DecayZeroTakesBatchStats(t *testing.T) {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(6))
	x := randn(rng, tensor.Shape{5, 2}, tensor.Float64)
	runningMean := full(tensor.Shape{2}, tensor.Float64, 100)
	runningVar := full(tensor.Shape{2}, tensor.Float32, 100)

	_, err := BatchNorm(backend, x, full(tensor.Shape{2}, tensor.Float64, 1), full(tensor.Shape{2}, tensor.Float64, 0),
		runningMean, runningVar, 1e-5, 0, nil)
	require.NoError(t, err)

	values := x.AsFloat64()
	for j := range 2 {
		col := column(values, 2, j)
		assert.InDelta(t, stat.Mean(col, nil), runningMean.AsFloat64()[j], 1e-12)
		// Unbiased sample variance: n/(n-1) times the population variance.
		assert.InDelta(t, stat.Variance(col, nil), float64(runningVar.AsFloat32()[j]), 1e-5)
	}
}

func TestBatchNorm_SingleSampleVarianceFactor(t *testing.T) {
	backend := cpu.New()
	x := fromValues([]float64{1, 2, 3}, tensor.Shape{1, 3}, tensor.Float64)
	runningVar := full(tensor.Shape{3}, tensor.Float64, 1)

	out, err := BatchNorm(backend, x, full(tensor.Shape{3}, tensor.Float64, 1), full(tensor.Shape{3}, tensor.Float64, 0),
		full(tensor.Shape{3}, tensor.Float64, 0), runningVar, 1e-5, 0.5, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, out.AsFloat64())
	assert.Equal(t, []float64{0.5, 0.5, 0.5}, runningVar.AsFloat64())
}

// Each normalized cell has mean beta and variance gamma².
func TestBatchNorm_OutputStatistics(t *testing.T) {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(7))
	x := randn(rng, tensor.Shape{4, 2, 5}, tensor.Float64)
	axes := []int{0, -1}
	gamma := fromValues([]float64{2, -0.5}, tensor.Shape{1, 2, 1}, tensor.Float64)
	beta := fromValues([]float64{1, 3}, tensor.Shape{2}, tensor.Float64)

	out, err := BatchNorm(backend, x, gamma, beta,
		full(tensor.Shape{2}, tensor.Float64, 0), full(tensor.Shape{2}, tensor.Float64, 1), 1e-9, 0.9, axes)
	require.NoError(t, err)

	values := out.AsFloat64()
	for c := range 2 {
		var cell []float64
		for i, v := range values {
			if (i/5)%2 == c {
				cell = append(cell, v)
			}
		}
		g := gamma.AsFloat64()[c]
		assert.InDelta(t, beta.AsFloat64()[c], stat.Mean(cell, nil), 1e-9)
		assert.InDelta(t, g*g, popVariance(cell), 1e-6)
	}
}

func TestBatchNorm_RecordsOnlyWhenRecording(t *testing.T) {
	backend := autodiff.New(cpu.New())
	x := full(tensor.Shape{2, 3}, tensor.Float32, 1)
	aux := func() *tensor.RawTensor { return full(tensor.Shape{3}, tensor.Float32, 1) }

	_, err := BatchNorm(backend, x, aux(), aux(), aux(), aux(), 1e-5, 0.9, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, backend.Tape().NumOps())

	backend.Tape().StartRecording()
	_, err = BatchNorm(backend, x, aux(), aux(), aux(), aux(), 1e-5, 0.9, nil)
	require.NoError(t, err)
	// Reshapes of gamma and beta, and the batch normalization itself.
	assert.Equal(t, 3, backend.Tape().NumOps())
}
