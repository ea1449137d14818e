// Package nn implements blob-based layers for the resize pipeline.
//
// This package provides:
//   - Layer interface: the Reshape/Forward/Backward lifecycle an execution
//     engine drives
//   - Resize: differentiable bilinear resize
//   - Scale: elementwise multiplier
//   - Net: a sequential runner owning the intermediate blobs
//
// Layers are stateful and not safe for concurrent use; run one instance
// per goroutine.
package nn

import (
	"github.com/born-ml/resize/internal/tensor"
)

// Layer is the lifecycle contract between a layer and the engine that runs it.
//
// The engine calls Reshape whenever input shapes may have changed, then
// Forward, then (for training) Backward. Backward relies on state written
// by the Forward immediately before it.
type Layer[T tensor.Float] interface {
	// Type returns a short layer type name such as "Resize".
	Type() string

	// Reshape sizes top (and any internal buffers) for bottom.
	// No data is written.
	Reshape(bottom, top *tensor.Blob[T]) error

	// Forward computes top's data from bottom's data.
	Forward(bottom, top *tensor.Blob[T]) error

	// Backward computes bottom's diff from top's diff. propagateDown has
	// one flag per bottom blob; layers may ignore it.
	Backward(top *tensor.Blob[T], propagateDown []bool, bottom *tensor.Blob[T]) error
}
