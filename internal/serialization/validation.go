package serialization

import (
	"fmt"
	"sort"
	"strings"
)

// Validation limits applied when reading a header.
const (
	MaxHeaderSize    = 100 * 1024 * 1024
	MaxTensorCount   = 100_000
	MaxTensorNameLen = 4096
)

// ValidateTensorOffsets checks for overlapping tensor regions and regions
// that extend past the data section.
func ValidateTensorOffsets(tensors []TensorMeta, dataSize int64) error {
	if len(tensors) > MaxTensorCount {
		return &ValidationError{
			Type:    "too_many_tensors",
			Details: fmt.Sprintf("got %d, max %d", len(tensors), MaxTensorCount),
		}
	}

	sorted := make([]TensorMeta, len(tensors))
	copy(sorted, tensors)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Begin < sorted[j].Begin
	})

	for i, t := range sorted {
		if t.Begin < 0 || t.End < t.Begin {
			return &ValidationError{
				Type:    "negative_offset",
				Tensor:  t.Name,
				Details: fmt.Sprintf("data_offsets [%d, %d]", t.Begin, t.End),
			}
		}

		if t.End > dataSize {
			return &ValidationError{
				Type:    "out_of_bounds",
				Tensor:  t.Name,
				Details: fmt.Sprintf("end %d > data_size %d", t.End, dataSize),
			}
		}

		if i < len(sorted)-1 {
			next := sorted[i+1]
			if t.End > next.Begin {
				return &ValidationError{
					Type:    "offset_overlap",
					Tensor:  t.Name,
					Tensor2: next.Name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						t.Begin, t.End, next.Begin, next.End),
				}
			}
		}
	}

	return nil
}

// ValidateTensorName rejects names that are empty, overlong, reserved, or
// could be mistaken for paths.
func ValidateTensorName(name string) error {
	switch {
	case name == "":
		return &ValidationError{Type: "invalid_name", Details: "empty name"}
	case name == metadataKey:
		return &ValidationError{Type: "invalid_name", Tensor: name, Details: "reserved name"}
	case len(name) > MaxTensorNameLen:
		return &ValidationError{
			Type:    "name_too_long",
			Tensor:  name,
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen),
		}
	case strings.Contains(name, ".."):
		return &ValidationError{Type: "invalid_name", Tensor: name, Details: "contains '..'"}
	case strings.ContainsAny(name, "/\\"):
		return &ValidationError{Type: "invalid_name", Tensor: name, Details: "contains path separator (/ or \\)"}
	case strings.Contains(name, "\x00"):
		return &ValidationError{Type: "invalid_name", Tensor: name, Details: "contains null byte"}
	}
	return nil
}

// validateSize checks that a tensor's byte range matches its shape and dtype.
func validateSize(t TensorMeta) error {
	elemSize, ok := dtypeSize(t.DType)
	if !ok {
		return fmt.Errorf("tensor %q: %w %q", t.Name, ErrUnsupportedDType, t.DType)
	}
	n := int64(1)
	for _, d := range t.Shape {
		if d < 0 {
			return &ValidationError{Type: "invalid_shape", Tensor: t.Name, Details: fmt.Sprintf("shape %v", t.Shape)}
		}
		n *= d
	}
	if got, want := t.End-t.Begin, n*elemSize; got != want {
		return &ValidationError{
			Type:    "size_mismatch",
			Tensor:  t.Name,
			Details: fmt.Sprintf("%d bytes for shape %v of %s, want %d", got, t.Shape, t.DType, want),
		}
	}
	return nil
}
