package cpu

import (
	"github.com/born-ml/batchnorm/internal/parallel"
)

// float is the set of element types kernels are instantiated for.
type float interface {
	~float32 | ~float64
}

func add[T float](x, y T) T { return x + y }
func sub[T float](x, y T) T { return x - y }
func mul[T float](x, y T) T { return x * y }
func div[T float](x, y T) T { return x / y }

// binaryKernel computes dst[i] = f(a[ai(i)], b[bi(i)]).
// A nil index means the operand already has the output shape.
func binaryKernel[T float](dst, a, b []T, ai, bi *broadcastIndex, cfg parallel.Config, f func(x, y T) T) {
	parallel.ForRange(len(dst), cfg, func(start, end int) {
		if ai == nil && bi == nil {
			for i := start; i < end; i++ {
				dst[i] = f(a[i], b[i])
			}
			return
		}
		for i := start; i < end; i++ {
			dst[i] = f(a[ai.at(i)], b[bi.at(i)])
		}
	})
}

// unaryKernel computes dst[i] = f(src[i]).
func unaryKernel[T float](dst, src []T, cfg parallel.Config, f func(x T) T) {
	parallel.ForRange(len(dst), cfg, func(start, end int) {
		for i := start; i < end; i++ {
			dst[i] = f(src[i])
		}
	})
}
