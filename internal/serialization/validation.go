package serialization

import (
	"fmt"
	"sort"
	"strings"
)

// Validation limits for resource protection.
const (
	MaxHeaderSize    = 100 * 1024 * 1024 // 100MB
	MaxTensorCount   = 100_000
	MaxTensorNameLen = 4096
)

type namedEntry struct {
	name string
	TensorEntry
}

// ValidateTensorOffsets checks that every tensor lies inside a data section
// of dataSize bytes and that no two tensors overlap.
func ValidateTensorOffsets(entries map[string]TensorEntry, dataSize int64) error {
	if len(entries) > MaxTensorCount {
		return &ValidationError{
			Kind:    ErrTooManyTensors,
			Details: fmt.Sprintf("got %d, max %d", len(entries), MaxTensorCount),
		}
	}

	sorted := make([]namedEntry, 0, len(entries))
	for name, e := range entries {
		sorted = append(sorted, namedEntry{name, e})
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].DataOffsets[0] < sorted[j].DataOffsets[0]
	})

	for i, t := range sorted {
		start, end := t.DataOffsets[0], t.DataOffsets[1]
		if start < 0 || end < start {
			return &ValidationError{
				Kind:    ErrNegativeOffset,
				Tensor:  t.name,
				Details: fmt.Sprintf("data_offsets [%d, %d]", start, end),
			}
		}
		if end > dataSize {
			return &ValidationError{
				Kind:    ErrOutOfBounds,
				Tensor:  t.name,
				Details: fmt.Sprintf("end %d > data_size %d", end, dataSize),
			}
		}
		if i < len(sorted)-1 {
			next := sorted[i+1]
			if end > next.DataOffsets[0] {
				return &ValidationError{
					Kind:    ErrOffsetOverlap,
					Tensor:  t.name,
					Tensor2: next.name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						start, end, next.DataOffsets[0], next.DataOffsets[1]),
				}
			}
		}
	}
	return nil
}

// ValidateTensorName rejects empty, oversized and path-like tensor names.
func ValidateTensorName(name string) error {
	switch {
	case name == "" || name == MetadataKey:
		return &ValidationError{Kind: ErrInvalidTensorName, Tensor: name, Details: "reserved or empty name"}
	case len(name) > MaxTensorNameLen:
		return &ValidationError{
			Kind:    ErrInvalidTensorName,
			Tensor:  name,
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen),
		}
	case strings.Contains(name, ".."):
		return &ValidationError{Kind: ErrInvalidTensorName, Tensor: name, Details: "contains '..'"}
	case strings.ContainsAny(name, "/\\"):
		return &ValidationError{Kind: ErrInvalidTensorName, Tensor: name, Details: "contains path separator (/ or \\)"}
	case strings.Contains(name, "\x00"):
		return &ValidationError{Kind: ErrInvalidTensorName, Tensor: name, Details: "contains null byte"}
	}
	return nil
}
