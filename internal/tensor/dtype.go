// Package tensor provides the blob container shared by the layers and CPU kernels.
package tensor

// Float is a constraint for the element types a Blob can hold.
// The terms are exact (no ~) so kernels can type-switch slices for BLAS.
type Float interface {
	float32 | float64
}

// DataType represents runtime type information for blobs.
type DataType int

// Supported data types.
const (
	Float32 DataType = iota
	Float64
)

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32:
		return 4
	case Float64:
		return 8
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return "unknown"
	}
}

// SafeTensorsName returns the dtype tag used in SafeTensors headers.
func (dt DataType) SafeTensorsName() string {
	switch dt {
	case Float32:
		return "F32"
	case Float64:
		return "F64"
	default:
		return "UNKNOWN"
	}
}

// DTypeOf infers the DataType for a generic element type.
func DTypeOf[T Float]() DataType {
	var dummy T
	switch any(dummy).(type) {
	case float32:
		return Float32
	case float64:
		return Float64
	default:
		panic("unsupported type")
	}
}

// MaxExactIndex returns the largest integer a value of type T can represent
// without rounding. Location maps store flat offsets as T, so a plane larger
// than this cannot be addressed.
func MaxExactIndex[T Float]() int {
	if DTypeOf[T]() == Float32 {
		return 1 << 24
	}
	return 1 << 53
}
