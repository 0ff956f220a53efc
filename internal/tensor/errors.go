package tensor

import "github.com/pkg/errors"

// Error kinds reported by tensor routines. Use errors.Is to classify a
// returned error; the message carries the details.
var (
	ErrDtype     = errors.New("dtype error")
	ErrDimension = errors.New("dimension error")
	ErrAxis      = errors.New("axis error")
	ErrInternal  = errors.New("internal error")
)
