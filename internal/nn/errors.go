package nn

import "errors"

// Errors returned by layers. They are wrapped with call-specific details;
// match with errors.Is.
var (
	// ErrInvalidParameter reports a layer configuration that can never
	// produce a valid output.
	ErrInvalidParameter = errors.New("invalid layer parameter")

	// ErrInvalidTargetSize reports non-positive output dimensions, usually
	// from a pyramid scale that truncates to zero.
	ErrInvalidTargetSize = errors.New("invalid target size")

	// ErrInvalidInput reports a missing or unshaped input blob.
	ErrInvalidInput = errors.New("invalid input blob")

	// ErrNotPrepared reports Forward called before PrepareShapes.
	ErrNotPrepared = errors.New("layer shapes not prepared")

	// ErrShapeMismatch reports blobs whose shape differs from the one the
	// layer was prepared for.
	ErrShapeMismatch = errors.New("blob shape mismatch")

	// ErrNoForward reports Backward called before any Forward.
	ErrNoForward = errors.New("backward called before forward")

	// ErrGeometryMismatch reports Backward called with blobs whose geometry
	// differs from the most recent Forward, which would scatter gradients to
	// the wrong offsets.
	ErrGeometryMismatch = errors.New("backward geometry does not match last forward")
)
