package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
)

// TensorMeta describes one tensor in a SafeTensors header.
// Begin and End are byte offsets relative to the start of the data section.
type TensorMeta struct {
	Name  string
	DType string
	Shape []int64
	Begin int64
	End   int64
}

// Header is a parsed SafeTensors header.
type Header struct {
	Tensors  []TensorMeta // Sorted by name.
	Metadata map[string]string
	DataSize int64 // Bytes following the header.
}

// Tensor returns the entry with the given name.
func (h *Header) Tensor(name string) (TensorMeta, bool) {
	i := sort.Search(len(h.Tensors), func(i int) bool { return h.Tensors[i].Name >= name })
	if i < len(h.Tensors) && h.Tensors[i].Name == name {
		return h.Tensors[i], true
	}
	return TensorMeta{}, false
}

// ReadSafeTensorsHeader parses and validates the header of the file at path.
func ReadSafeTensorsHeader(path string) (*Header, error) {
	//nolint:gosec // G304: path is chosen by the caller
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	return ReadHeader(f, info.Size())
}

// ReadHeader parses a SafeTensors header from r, which holds fileSize bytes.
func ReadHeader(r io.Reader, fileSize int64) (*Header, error) {
	var size uint64
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return nil, fmt.Errorf("failed to read header size: %w", err)
	}
	if size > MaxHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, size)
	}
	if int64(size) > fileSize-8 {
		return nil, fmt.Errorf("%w: header of %d bytes in %d byte file", ErrTruncated, size, fileSize)
	}

	raw := make([]byte, size)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}

	h := &Header{DataSize: fileSize - 8 - int64(size)}
	for name, msg := range entries {
		if name == metadataKey {
			if err := json.Unmarshal(msg, &h.Metadata); err != nil {
				return nil, fmt.Errorf("%w: metadata: %w", ErrInvalidHeader, err)
			}
			continue
		}
		if err := ValidateTensorName(name); err != nil {
			return nil, err
		}

		var th SafeTensorHeader
		if err := json.Unmarshal(msg, &th); err != nil {
			return nil, fmt.Errorf("%w: tensor %q: %w", ErrInvalidHeader, name, err)
		}
		meta := TensorMeta{
			Name:  name,
			DType: th.DType,
			Shape: th.Shape,
			Begin: th.DataOffsets[0],
			End:   th.DataOffsets[1],
		}
		if err := validateSize(meta); err != nil {
			return nil, err
		}
		h.Tensors = append(h.Tensors, meta)
	}

	sort.Slice(h.Tensors, func(i, j int) bool { return h.Tensors[i].Name < h.Tensors[j].Name })
	if err := ValidateTensorOffsets(h.Tensors, h.DataSize); err != nil {
		return nil, err
	}
	return h, nil
}

// dtypeSize returns the element size of a SafeTensors dtype name.
func dtypeSize(name string) (int64, bool) {
	switch name {
	case "F64", "I64", "U64":
		return 8, true
	case "F32", "I32", "U32":
		return 4, true
	case "F16", "BF16", "I16", "U16":
		return 2, true
	case "I8", "U8", "BOOL":
		return 1, true
	default:
		return 0, false
	}
}
