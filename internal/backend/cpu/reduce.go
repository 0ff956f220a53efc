package cpu

import (
	"github.com/born-ml/batchnorm/internal/tensor"
	"github.com/pkg/errors"
)

// SumAxes sums tensor elements over the given axes.
//
// Axes may be negative (-1 = last dim). With keepDims the reduced dimensions
// stay in the result with size 1; otherwise they are removed.
//
// Example:
//
//	x := ... // shape [2, 3, 4]
//	y := backend.SumAxes(x, []int{0, 2}, true)  // shape: [1, 3, 1]
//	z := backend.SumAxes(x, []int{0, 2}, false) // shape: [3]
func (cpu *CPUBackend) SumAxes(x *tensor.RawTensor, axes []int, keepDims bool) *tensor.RawTensor {
	r := cpu.newReduction("sum_axes", x, axes)
	return r.result(cpu, r.sums(x.Float64s()), keepDims)
}

// MeanAxes computes the mean over the given axes.
func (cpu *CPUBackend) MeanAxes(x *tensor.RawTensor, axes []int, keepDims bool) *tensor.RawTensor {
	r := cpu.newReduction("mean_axes", x, axes)
	return r.result(cpu, r.means(x.Float64s()), keepDims)
}

// VarAxes computes the population variance (divisor n) over the given axes.
// It is computed in two passes around the mean.
func (cpu *CPUBackend) VarAxes(x *tensor.RawTensor, axes []int, keepDims bool) *tensor.RawTensor {
	r := cpu.newReduction("var_axes", x, axes)
	values := x.Float64s()
	means := r.means(values)

	vars := make([]float64, len(means))
	for i, v := range values {
		j := r.index.at(i)
		d := v - means[j]
		vars[j] += d * d
	}
	for j := range vars {
		vars[j] /= float64(r.count)
	}
	return r.result(cpu, vars, keepDims)
}

// reduction describes a reduction of one input over a set of axes.
type reduction struct {
	op       string
	dtype    tensor.DataType
	shape    tensor.Shape // input shape
	axes     []int        // resolved, sorted
	keptDims tensor.Shape // output shape with reduced axes kept as 1
	count    int          // number of input elements per output element
	index    *broadcastIndex
}

func (cpu *CPUBackend) newReduction(op string, x *tensor.RawTensor, axes []int) *reduction {
	requireFloat(op, x.DType())
	shape := x.Shape()
	sorted, err := tensor.SortedAxes(axes, len(shape))
	if err != nil {
		panic(errors.WithMessage(err, op))
	}

	count := 1
	for _, axis := range sorted {
		count *= shape[axis]
	}
	keptDims := tensor.ReduceShape(shape, sorted, true)

	// Mapping every input element onto its output slot is the inverse
	// broadcast of the kept-dims output to the input shape.
	return &reduction{
		op:       op,
		dtype:    x.DType(),
		shape:    shape,
		axes:     sorted,
		keptDims: keptDims,
		count:    count,
		index:    newBroadcastIndex(keptDims, shape),
	}
}

func (r *reduction) sums(values []float64) []float64 {
	sums := make([]float64, r.keptDims.NumElements())
	for i, v := range values {
		sums[r.index.at(i)] += v
	}
	return sums
}

func (r *reduction) means(values []float64) []float64 {
	means := r.sums(values)
	for j := range means {
		means[j] /= float64(r.count)
	}
	return means
}

// result packs per-output values into a tensor of the input dtype.
func (r *reduction) result(cpu *CPUBackend, values []float64, keepDims bool) *tensor.RawTensor {
	shape := r.keptDims
	if !keepDims {
		shape = tensor.ReduceShape(r.shape, r.axes, false)
	}
	result := cpu.newResult(r.op, shape, r.dtype)
	result.SetFloat64s(values)
	return result
}
