package tensor

import (
	"fmt"
	"unsafe"
)

// Blob is a 4-D [num, channels, height, width] container holding two
// contiguous row-major buffers of equal length: data (activations) and
// diff (gradients).
//
// Reshape keeps the backing arrays whenever their capacity suffices, so a
// layer that reshapes to the same size every iteration never reallocates.
// Newly exposed elements after a shrink-then-grow reshape are not cleared;
// callers that read before writing must zero the buffer themselves.
//
// Blob is not safe for concurrent mutation.
type Blob[T Float] struct {
	shape  Shape
	stride []int
	data   []T
	diff   []T
}

// NewBlob allocates a zeroed blob with the given dimensions.
func NewBlob[T Float](num, channels, height, width int) (*Blob[T], error) {
	b := &Blob[T]{}
	if err := b.Reshape(num, channels, height, width); err != nil {
		return nil, err
	}
	return b, nil
}

// FromSlice creates a blob whose data is a copy of values.
func FromSlice[T Float](values []T, num, channels, height, width int) (*Blob[T], error) {
	b, err := NewBlob[T](num, channels, height, width)
	if err != nil {
		return nil, err
	}
	if len(values) != b.Count() {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", b.shape, b.Count(), len(values))
	}
	copy(b.data, values)
	return b, nil
}

// Reshape changes the blob dimensions. Storage is grown only when the new
// element count exceeds the current capacity.
func (b *Blob[T]) Reshape(num, channels, height, width int) error {
	shape := Shape{num, channels, height, width}
	if err := shape.Validate(); err != nil {
		return fmt.Errorf("reshape %v: %w", shape, err)
	}

	count := shape.NumElements()
	if count > cap(b.data) {
		b.data = make([]T, count)
		b.diff = make([]T, count)
	} else {
		b.data = b.data[:count]
		b.diff = b.diff[:count]
	}
	b.shape = shape
	b.stride = shape.ComputeStrides()
	return nil
}

// ReshapeLike reshapes b to the dimensions of other.
func (b *Blob[T]) ReshapeLike(other *Blob[T]) error {
	if len(other.shape) != 4 {
		return fmt.Errorf("reshape like: source blob has no shape")
	}
	return b.Reshape(other.Num(), other.Channels(), other.Height(), other.Width())
}

// Shape returns a copy of the blob's shape. It is empty until the first Reshape.
func (b *Blob[T]) Shape() Shape {
	return b.shape.Clone()
}

// ShapeEquals reports whether the blob has exactly the given dimensions.
func (b *Blob[T]) ShapeEquals(num, channels, height, width int) bool {
	return b.shape.Equal(Shape{num, channels, height, width})
}

// Num returns the batch dimension.
func (b *Blob[T]) Num() int { return b.dim(0) }

// Channels returns the channel dimension.
func (b *Blob[T]) Channels() int { return b.dim(1) }

// Height returns the spatial height.
func (b *Blob[T]) Height() int { return b.dim(2) }

// Width returns the spatial width.
func (b *Blob[T]) Width() int { return b.dim(3) }

func (b *Blob[T]) dim(i int) int {
	if len(b.shape) != 4 {
		return 0
	}
	return b.shape[i]
}

// Count returns the total number of elements.
func (b *Blob[T]) Count() int {
	return len(b.data)
}

// Offset returns the flat index of element (n, c, 0, 0).
// Panics if n or c is out of range.
func (b *Blob[T]) Offset(n, c int) int {
	if n < 0 || n >= b.Num() {
		panic(fmt.Sprintf("offset: batch index %d out of bounds (num %d)", n, b.Num()))
	}
	if c < 0 || c >= b.Channels() {
		panic(fmt.Sprintf("offset: channel index %d out of bounds (channels %d)", c, b.Channels()))
	}
	return n*b.stride[0] + c*b.stride[1]
}

// At returns data[n, c, h, w]. Panics if any index is out of bounds.
func (b *Blob[T]) At(n, c, h, w int) T {
	return b.data[b.index(n, c, h, w)]
}

// Set stores value at data[n, c, h, w]. Panics if any index is out of bounds.
func (b *Blob[T]) Set(value T, n, c, h, w int) {
	b.data[b.index(n, c, h, w)] = value
}

func (b *Blob[T]) index(n, c, h, w int) int {
	if h < 0 || h >= b.Height() {
		panic(fmt.Sprintf("index: row %d out of bounds (height %d)", h, b.Height()))
	}
	if w < 0 || w >= b.Width() {
		panic(fmt.Sprintf("index: column %d out of bounds (width %d)", w, b.Width()))
	}
	return b.Offset(n, c) + h*b.stride[2] + w
}

// Data returns the activation buffer. Callers must treat it as read-only;
// use MutableData to write.
func (b *Blob[T]) Data() []T {
	return b.data
}

// MutableData returns the activation buffer for writing.
func (b *Blob[T]) MutableData() []T {
	return b.data
}

// Diff returns the gradient buffer. Callers must treat it as read-only;
// use MutableDiff to write.
func (b *Blob[T]) Diff() []T {
	return b.diff
}

// MutableDiff returns the gradient buffer for writing.
func (b *Blob[T]) MutableDiff() []T {
	return b.diff
}

// DType returns the element type of the blob.
func (b *Blob[T]) DType() DataType {
	return DTypeOf[T]()
}

// DataBytes returns a zero-copy byte view of the activation buffer.
func (b *Blob[T]) DataBytes() []byte {
	return asBytes(b.data)
}

// DiffBytes returns a zero-copy byte view of the gradient buffer.
func (b *Blob[T]) DiffBytes() []byte {
	return asBytes(b.diff)
}

func asBytes[T Float](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	//nolint:gosec // unsafe.Slice for zero-copy serialization, length derived from len(s)
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(zero)))
}

// Clone creates a deep copy of the blob, including its gradient buffer.
func (b *Blob[T]) Clone() *Blob[T] {
	return &Blob[T]{
		shape:  b.shape.Clone(),
		stride: append([]int(nil), b.stride...),
		data:   append([]T(nil), b.data...),
		diff:   append([]T(nil), b.diff...),
	}
}

// String returns a human-readable representation of the blob.
func (b *Blob[T]) String() string {
	return fmt.Sprintf("Blob[%s]%v", b.DType(), b.shape)
}
