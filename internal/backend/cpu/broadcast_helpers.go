package cpu

import (
	"github.com/born-ml/batchnorm/internal/tensor"
)

// broadcastIndex maps a flat index of an output shape to the flat index of an
// input that broadcasts against it.
type broadcastIndex struct {
	outStrides []int
	inStrides  []int // broadcast-adjusted: 0 along padded or size-1 input dimensions
}

// newBroadcastIndex returns nil when no mapping is needed (shapes equal).
func newBroadcastIndex(inShape, outShape tensor.Shape) *broadcastIndex {
	if inShape.Equal(outShape) {
		return nil
	}
	return &broadcastIndex{
		outStrides: outShape.ComputeStrides(),
		inStrides:  computeBroadcastStridesForShape(inShape, outShape),
	}
}

// at returns the input flat index for output flat index outIdx.
func (b *broadcastIndex) at(outIdx int) int {
	if b == nil {
		return outIdx
	}
	flatIdx := 0
	for i, stride := range b.outStrides {
		coord := outIdx / stride
		outIdx %= stride
		flatIdx += coord * b.inStrides[i]
	}
	return flatIdx
}

// computeBroadcastStridesForShape computes strides for broadcasting a shape to outShape.
// Returns strides where dimensions of size 1 have stride 0 (for broadcasting).
func computeBroadcastStridesForShape(inShape, outShape tensor.Shape) []int {
	outDim := len(outShape)
	strides := make([]int, outDim)

	offset := outDim - len(inShape)
	origStrides := inShape.ComputeStrides()

	for i := 0; i < outDim; i++ {
		inIdx := i - offset
		switch {
		case inIdx < 0:
			strides[i] = 0 // padded dimension
		case inShape[inIdx] == 1:
			strides[i] = 0 // broadcast dimension
		default:
			strides[i] = origStrides[inIdx]
		}
	}

	return strides
}
