package serialization

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/born-ml/resize/internal/tensor"
)

const (
	metadataKey = "__metadata__"
	gradSuffix  = ".grad"
)

// Tensor is one named entry of a SafeTensors file.
type Tensor struct {
	DType tensor.DataType
	Shape tensor.Shape
	Data  []byte // Little-endian element bytes; len must be Shape.NumElements()*DType.Size().
}

// SafeTensorHeader represents a tensor in the SafeTensors header.
type SafeTensorHeader struct {
	DType       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// AddBlob adds b's data under name and, if withGrad is set, its diff under
// name + ".grad". The entries alias the blob's buffers; write before mutating
// the blob again.
func AddBlob[T tensor.Float](dst map[string]Tensor, name string, b *tensor.Blob[T], withGrad bool) {
	dst[name] = Tensor{DType: b.DType(), Shape: b.Shape(), Data: b.DataBytes()}
	if withGrad {
		dst[name+gradSuffix] = Tensor{DType: b.DType(), Shape: b.Shape(), Data: b.DiffBytes()}
	}
}

// BlobTensors returns a new tensor map holding a single blob.
func BlobTensors[T tensor.Float](name string, b *tensor.Blob[T], withGrad bool) map[string]Tensor {
	out := make(map[string]Tensor, 2)
	AddBlob(out, name, b, withGrad)
	return out
}

// SafeTensorsWriter writes tensors in SafeTensors format.
type SafeTensorsWriter struct {
	file   *os.File
	closed bool
}

// NewSafeTensorsWriter creates a new SafeTensors file writer.
func NewSafeTensorsWriter(path string) (*SafeTensorsWriter, error) {
	//nolint:gosec // G304: dump path is chosen by the caller
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	return &SafeTensorsWriter{file: file}, nil
}

// WriteSafeTensors writes tensors to a SafeTensors file at path.
//
// Tensors are written in alphabetical order by name.
func WriteSafeTensors(path string, tensors map[string]Tensor, metadata map[string]string) (err error) {
	writer, err := NewSafeTensorsWriter(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := writer.Close(); err == nil {
			err = cerr
		}
	}()

	return writer.WriteTensors(tensors, metadata)
}

// WriteTensors writes the header followed by every tensor's bytes.
func (w *SafeTensorsWriter) WriteTensors(tensors map[string]Tensor, metadata map[string]string) error {
	if w.closed {
		return fmt.Errorf("writer is closed")
	}

	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]any, len(tensors)+1)
	if len(metadata) > 0 {
		header[metadataKey] = metadata
	}

	var offset int64
	for _, name := range names {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		t := tensors[name]
		size := int64(t.Shape.NumElements() * t.DType.Size())
		if int64(len(t.Data)) != size {
			return &ValidationError{
				Type:    "size_mismatch",
				Tensor:  name,
				Details: fmt.Sprintf("%d bytes for shape %v of %s, want %d", len(t.Data), t.Shape, t.DType, size),
			}
		}

		shape := make([]int64, len(t.Shape))
		for i, dim := range t.Shape {
			shape[i] = int64(dim)
		}
		header[name] = SafeTensorHeader{
			DType:       t.DType.SafeTensorsName(),
			Shape:       shape,
			DataOffsets: [2]int64{offset, offset + size},
		}
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	bw := bufio.NewWriter(w.file)
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := bw.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, name := range names {
		if _, err := bw.Write(tensors[name].Data); err != nil {
			return fmt.Errorf("failed to write tensor %s: %w", name, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	return nil
}

// Close closes the writer and the underlying file.
func (w *SafeTensorsWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}
