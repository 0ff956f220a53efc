package normalization

import (
	"github.com/born-ml/batchnorm/internal/tensor"
	"github.com/pkg/errors"
)

// defaultAxes is the axis selection used when the caller passes none:
// normalize over the batch dimension.
var defaultAxes = []int{0}

// preprocessed holds the auxiliary operands reshaped to the reduced shape.
type preprocessed struct {
	gamma, beta, mean, variance *tensor.RawTensor
	axes                        []int        // resolved and sorted
	reducedShape                tensor.Shape // x.Shape() with every axis in axes set to 1
}

// preprocess validates the operands of a batch normalization against the
// reduction induced by axes, and reshapes gamma, beta, mean and variance to
// the reduced shape.
//
// Reshapes are views and never copy data. gamma and beta are reshaped through
// b, so a recording backend routes their gradients back to the caller's
// shapes; the statistics are reshaped through the base backend. Nothing is
// reshaped unless every check passes.
func preprocess(b tensor.Backend, x, gamma, beta, mean, variance *tensor.RawTensor, axes []int) (*preprocessed, error) {
	operands := []struct {
		name string
		t    *tensor.RawTensor
	}{{"x", x}, {"gamma", gamma}, {"beta", beta}, {"mean", mean}, {"var", variance}}
	for _, op := range operands {
		if op.t == nil {
			return nil, errors.Wrapf(tensor.ErrInternal, "%s must not be nil", op.name)
		}
		if !op.t.DType().IsFloat() {
			return nil, errors.Wrapf(tensor.ErrDtype, "%s must be of a floating dtype, got %s", op.name, op.t.DType())
		}
	}

	if axes == nil {
		axes = defaultAxes
	}
	sorted, err := tensor.SortedAxes(axes, x.Shape().Rank())
	if err != nil {
		return nil, err
	}

	reducedShape := tensor.ReduceShape(x.Shape(), sorted, true)
	reducedSize := reducedShape.NumElements()
	for _, op := range operands[1:] {
		if size := op.t.NumElements(); size != reducedSize {
			return nil, errors.Wrapf(tensor.ErrDimension,
				"%s must have the same size as the reduced input. actual: %d, expected: %d",
				op.name, size, reducedSize)
		}
	}

	base := baseOf(b)
	return &preprocessed{
		gamma:        b.Reshape(gamma, reducedShape),
		beta:         b.Reshape(beta, reducedShape),
		mean:         base.Reshape(mean, reducedShape),
		variance:     base.Reshape(variance, reducedShape),
		axes:         sorted,
		reducedShape: reducedShape,
	}, nil
}
