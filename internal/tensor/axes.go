package tensor

import (
	"slices"

	"github.com/pkg/errors"
)

// SortedAxes resolves negative axis indices against ndim and returns the
// axes sorted in ascending order.
//
// It returns an error wrapping ErrAxis if an axis is out of range or appears
// more than once (after resolution, so -1 and ndim-1 collide).
func SortedAxes(axes []int, ndim int) ([]int, error) {
	sorted := make([]int, len(axes))
	for i, axis := range axes {
		resolved := axis
		if resolved < 0 {
			resolved += ndim
		}
		if resolved < 0 || resolved >= ndim {
			return nil, errors.Wrapf(ErrAxis, "axis %d is out of bounds for array of dimension %d", axis, ndim)
		}
		sorted[i] = resolved
	}
	slices.Sort(sorted)
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			return nil, errors.Wrapf(ErrAxis, "duplicate axis %d in %v", sorted[i], axes)
		}
	}
	return sorted, nil
}

// ReduceShape returns shape with every axis in axes removed, or set to 1 when
// keepDims is true. Axes must already be resolved.
func ReduceShape(shape Shape, axes []int, keepDims bool) Shape {
	out := make(Shape, 0, len(shape))
	for i, dim := range shape {
		if !slices.Contains(axes, i) {
			out = append(out, dim)
		} else if keepDims {
			out = append(out, 1)
		}
	}
	return out
}
