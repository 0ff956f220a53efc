package cpu

import (
	"github.com/born-ml/batchnorm/internal/tensor"
	"github.com/pkg/errors"
)

// Reshape returns a view of t with newShape over the same storage.
// It returns t itself when the shape is unchanged.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	if t.Shape().Equal(newShape) {
		return t
	}
	result, err := t.Reshape(newShape)
	if err != nil {
		panic(errors.WithMessage(err, "reshape"))
	}
	return result
}

// Expand broadcasts the tensor to a new shape.
func (cpu *CPUBackend) Expand(x *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	xShape := x.Shape()

	if len(newShape) < len(xShape) {
		fail(tensor.ErrDimension, "expand: new shape %v has fewer dimensions than input shape %v",
			newShape, xShape)
	}

	// Align shapes from the right; each input dimension is either equal to
	// the new one or 1.
	offset := len(newShape) - len(xShape)
	for i, xDim := range xShape {
		newDim := newShape[offset+i]
		if xDim != 1 && xDim != newDim {
			fail(tensor.ErrDimension, "expand: cannot expand dimension %d from %d to %d",
				i, xDim, newDim)
		}
	}

	result := cpu.newResult("expand", newShape, x.DType())
	if xShape.Equal(newShape) {
		copy(result.Data(), x.Data())
		return result
	}

	// Element-size agnostic copy: works for every dtype.
	idx := newBroadcastIndex(xShape, newShape)
	size := x.DType().Size()
	src, dst := x.Data(), result.Data()
	for outIdx := 0; outIdx < result.NumElements(); outIdx++ {
		inIdx := idx.at(outIdx)
		copy(dst[outIdx*size:(outIdx+1)*size], src[inIdx*size:(inIdx+1)*size])
	}

	return result
}
