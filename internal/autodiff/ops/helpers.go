package ops

import (
	"github.com/born-ml/batchnorm/internal/tensor"
)

// reduceBroadcast reduces a gradient tensor to match the target shape.
// This is necessary when broadcasting was used in the forward pass.
//
// Example:
//
//	Forward: a[3,1] + b[3,4] -> c[3,4]  (a was broadcast along dim 1)
//	Backward: grad_c[3,4] -> grad_a[3,1] (sum along dim 1)
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	gradShape := grad.Shape()
	if gradShape.Equal(targetShape) {
		return grad
	}

	// NumPy broadcasting aligns shapes from the right: leading dimensions
	// missing in the target are summed, and so are target dimensions of 1.
	lead := len(gradShape) - len(targetShape)
	axes := make([]int, 0, len(gradShape))
	for i := range lead {
		axes = append(axes, i)
	}
	for i, dim := range targetShape {
		if dim == 1 && gradShape[lead+i] > 1 {
			axes = append(axes, lead+i)
		}
	}

	result := grad
	if len(axes) > 0 {
		result = backend.SumAxes(grad, axes, true)
	}
	return backend.Reshape(result, targetShape)
}

// gradFor adapts a gradient computed in the promoted dtype of an operation to
// one of its inputs: broadcast dimensions are summed away and the result is
// cast back to the input's dtype.
func gradFor(grad, input *tensor.RawTensor, backend tensor.Backend) *tensor.RawTensor {
	return backend.Cast(reduceBroadcast(grad, input.Shape(), backend), input.DType())
}

// keptDimsShape returns the shape a reduction over axes would have with
// keepDims, used to re-insert reduced dimensions into a gradient.
func keptDimsShape(shape tensor.Shape, axes []int) tensor.Shape {
	sorted, err := tensor.SortedAxes(axes, len(shape))
	if err != nil {
		panic(err) // the forward reduction already validated axes
	}
	return tensor.ReduceShape(shape, sorted, true)
}

// reducedCount is the number of input elements folded into each output
// element of a reduction.
func reducedCount(shape tensor.Shape, axes []int) int {
	return shape.NumElements() / keptDimsShape(shape, axes).NumElements()
}
