package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"os"

	"github.com/born-ml/batchnorm/internal/tensor"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Header is the parsed JSON header.
type Header struct {
	Metadata map[string]string
	Tensors  map[string]TensorEntry
}

// UnmarshalJSON separates the metadata entry from the tensor entries.
func (h *Header) UnmarshalJSON(data []byte) error {
	var rawMap map[string]json.RawMessage
	if err := json.Unmarshal(data, &rawMap); err != nil {
		return err
	}

	if metadataRaw, ok := rawMap[MetadataKey]; ok {
		if err := json.Unmarshal(metadataRaw, &h.Metadata); err != nil {
			return errors.Wrap(err, "failed to unmarshal metadata")
		}
	}

	h.Tensors = make(map[string]TensorEntry, len(rawMap))
	for key, value := range rawMap {
		if key == MetadataKey {
			continue
		}
		var entry TensorEntry
		if err := json.Unmarshal(value, &entry); err != nil {
			return errors.Wrapf(err, "failed to unmarshal tensor %s", key)
		}
		h.Tensors[key] = entry
	}
	return nil
}

// ReadHeader reads the header size and JSON header from r.
func ReadHeader(r io.Reader) (*Header, error) {
	var headerSize uint64
	if err := binary.Read(r, binary.LittleEndian, &headerSize); err != nil {
		return nil, errors.Wrapf(ErrInvalidHeader, "failed to read header size: %v", err)
	}
	if headerSize > MaxHeaderSize {
		return nil, errors.Wrapf(ErrHeaderTooLarge, "%d bytes", headerSize)
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, errors.Wrapf(ErrInvalidHeader, "failed to read header: %v", err)
	}
	var header Header
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, errors.Wrapf(ErrInvalidHeader, "failed to parse header JSON: %v", err)
	}
	for name := range header.Tensors {
		if err := ValidateTensorName(name); err != nil {
			return nil, err
		}
	}
	return &header, nil
}

// Read reads all tensors and the metadata from r.
func Read(r io.Reader) (map[string]*tensor.RawTensor, map[string]string, error) {
	header, err := ReadHeader(r)
	if err != nil {
		return nil, nil, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to read tensor data")
	}
	if err := ValidateTensorOffsets(header.Tensors, int64(len(data))); err != nil {
		return nil, nil, err
	}

	tensors := make(map[string]*tensor.RawTensor, len(header.Tensors))
	for name, entry := range header.Tensors {
		t, err := newTensor(entry)
		if err != nil {
			return nil, nil, errors.WithMessagef(err, "tensor %q", name)
		}
		copy(t.Data(), data[entry.DataOffsets[0]:entry.DataOffsets[1]])
		tensors[name] = t
	}
	return tensors, header.Metadata, nil
}

// newTensor allocates the tensor described by entry and checks that its byte
// size matches the entry's data range.
func newTensor(entry TensorEntry) (*tensor.RawTensor, error) {
	dtype, err := nameToDtype(entry.DType)
	if err != nil {
		return nil, err
	}
	// The byte count is accumulated against the data range, so a shape whose
	// product overflows is rejected before anything is allocated.
	size := entry.Size()
	needed := int64(dtype.Size())
	shape := make(tensor.Shape, len(entry.Shape))
	for i, dim := range entry.Shape {
		if dim <= 0 {
			return nil, errors.Wrapf(ErrInvalidHeader, "shape %v: dimension %d is %d", entry.Shape, i, dim)
		}
		if needed > size/dim {
			return nil, errors.Wrapf(ErrInvalidHeader, "shape %v of %s does not fit in %d bytes",
				entry.Shape, dtype, size)
		}
		needed *= dim
		shape[i] = int(dim)
	}
	if needed != size {
		return nil, errors.Wrapf(ErrInvalidHeader, "shape %v of %s needs %d bytes, data_offsets hold %d",
			entry.Shape, dtype, needed, size)
	}
	t, err := tensor.NewRaw(shape, dtype, tensor.CPU)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidHeader, "%v", err)
	}
	return t, nil
}

// Load reads all tensors and the metadata from the file at path.
func Load(path string) (map[string]*tensor.RawTensor, map[string]string, error) {
	//nolint:gosec // G304: the path is chosen by the caller
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to open file")
	}
	tensors, metadata, err := Read(bytes.NewReader(data))
	if err != nil {
		return nil, nil, errors.WithMessagef(err, "loading %s", path)
	}
	klog.V(1).Infof("serialization: loaded %d tensors from %s", len(tensors), path)
	return tensors, metadata, nil
}
