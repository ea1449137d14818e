package nn

import (
	"fmt"
	"math"

	"github.com/born-ml/resize/internal/backend/cpu"
	"github.com/born-ml/resize/internal/tensor"
)

// Scale multiplies its input by a constant factor.
//
// Forward:  top = factor * bottom
// Backward: bottom.diff = factor * top.diff
type Scale[T tensor.Float] struct {
	factor float64
}

// NewScale creates a Scale layer. The factor must be finite.
func NewScale[T tensor.Float](factor float64) (*Scale[T], error) {
	if math.IsNaN(factor) || math.IsInf(factor, 0) {
		return nil, fmt.Errorf("scale: %w: factor %v is not finite", ErrInvalidParameter, factor)
	}
	return &Scale[T]{factor: factor}, nil
}

// Type returns "Scale".
func (s *Scale[T]) Type() string {
	return "Scale"
}

// Reshape sizes top like bottom.
func (s *Scale[T]) Reshape(bottom, top *tensor.Blob[T]) error {
	if bottom == nil || top == nil {
		return fmt.Errorf("scale: %w: nil blob", ErrInvalidInput)
	}
	if err := top.ReshapeLike(bottom); err != nil {
		return fmt.Errorf("scale: %w", err)
	}
	return nil
}

// Forward computes top = factor * bottom.
func (s *Scale[T]) Forward(bottom, top *tensor.Blob[T]) error {
	if !bottom.Shape().Equal(top.Shape()) {
		return fmt.Errorf("scale forward: %w: bottom %v, top %v", ErrShapeMismatch, bottom.Shape(), top.Shape())
	}
	copy(top.MutableData(), bottom.Data())
	cpu.Scal(s.factor, top.MutableData())
	return nil
}

// Backward computes bottom.diff = factor * top.diff.
func (s *Scale[T]) Backward(top *tensor.Blob[T], _ []bool, bottom *tensor.Blob[T]) error {
	if !bottom.Shape().Equal(top.Shape()) {
		return fmt.Errorf("scale backward: %w: bottom %v, top %v", ErrShapeMismatch, bottom.Shape(), top.Shape())
	}
	copy(bottom.MutableDiff(), top.Diff())
	cpu.Scal(s.factor, bottom.MutableDiff())
	return nil
}

// Factor returns the multiplier.
func (s *Scale[T]) Factor() float64 {
	return s.factor
}

// String returns a string representation of the layer.
func (s *Scale[T]) String() string {
	return fmt.Sprintf("Scale(factor=%g)", s.factor)
}
