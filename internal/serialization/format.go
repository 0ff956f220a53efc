package serialization

import (
	"github.com/born-ml/batchnorm/internal/tensor"
	"github.com/pkg/errors"
)

// MetadataKey is the reserved header entry holding string metadata.
const MetadataKey = "__metadata__"

// TensorEntry describes a tensor in the header.
type TensorEntry struct {
	DType       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"` // [start, end) relative to the data section
}

// Size returns the number of data bytes of the entry.
func (e TensorEntry) Size() int64 {
	return e.DataOffsets[1] - e.DataOffsets[0]
}

var dtypeNames = map[tensor.DataType]string{
	tensor.Float16:  "F16",
	tensor.BFloat16: "BF16",
	tensor.Float32:  "F32",
	tensor.Float64:  "F64",
	tensor.Int32:    "I32",
	tensor.Int64:    "I64",
	tensor.Uint8:    "U8",
	tensor.Bool:     "BOOL",
}

// dtypeToName converts a tensor.DataType to its header name.
func dtypeToName(dt tensor.DataType) (string, error) {
	name, ok := dtypeNames[dt]
	if !ok {
		return "", errors.Wrapf(ErrUnsupportedDType, "%s", dt)
	}
	return name, nil
}

// nameToDtype converts a header dtype name to a tensor.DataType.
func nameToDtype(name string) (tensor.DataType, error) {
	for dt, n := range dtypeNames {
		if n == name {
			return dt, nil
		}
	}
	return 0, errors.Wrapf(ErrUnsupportedDType, "%q", name)
}
