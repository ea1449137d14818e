// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"math/rand"

	"github.com/born-ml/resize/internal/backend/cpu"
	"github.com/born-ml/resize/internal/nn"
	"github.com/born-ml/resize/internal/tensor"
)

// Layer is the contract shared by every layer: Reshape, Forward and
// Backward over NCHW blobs.
type Layer[T tensor.Float] = nn.Layer[T]

// ResizeParameter configures a Resize layer.
type ResizeParameter = nn.ResizeParameter

// DefaultResizeParameter returns an identity-scale pyramid configuration.
func DefaultResizeParameter() ResizeParameter {
	return nn.DefaultResizeParameter()
}

// Resize is a differentiable bilinear resize layer.
type Resize[T tensor.Float] = nn.Resize[T]

// NewResize creates a Resize layer. A nil backend uses cpu.New().
func NewResize[T tensor.Float](param ResizeParameter, backend *cpu.CPUBackend) (*Resize[T], error) {
	return nn.NewResize[T](param, backend)
}

// Scale multiplies its input by a constant factor.
type Scale[T tensor.Float] = nn.Scale[T]

// NewScale creates a Scale layer.
func NewScale[T tensor.Float](factor float64) (*Scale[T], error) {
	return nn.NewScale[T](factor)
}

// Net runs a chain of layers.
type Net[T tensor.Float] = nn.Net[T]

// NewNet creates a Net from the given layers.
//
// Example:
//
//	net := nn.NewNet[float32](resize, scale)
//	out, err := net.Forward(input)
func NewNet[T tensor.Float](layers ...Layer[T]) *Net[T] {
	return nn.NewNet(layers...)
}

// GradCheckResult summarizes a finite-difference gradient check.
type GradCheckResult = nn.GradCheckResult

// GradCheck compares a layer's Backward against central finite differences.
func GradCheck[T tensor.Float](layer Layer[T], bottom *tensor.Blob[T], epsilon float64, maxProbes int, rng *rand.Rand) (GradCheckResult, error) {
	return nn.GradCheck(layer, bottom, epsilon, maxProbes, rng)
}

// Errors returned by layers; match with errors.Is.
var (
	ErrInvalidParameter  = nn.ErrInvalidParameter
	ErrInvalidTargetSize = nn.ErrInvalidTargetSize
	ErrInvalidInput      = nn.ErrInvalidInput
	ErrNotPrepared       = nn.ErrNotPrepared
	ErrShapeMismatch     = nn.ErrShapeMismatch
	ErrNoForward         = nn.ErrNoForward
	ErrGeometryMismatch  = nn.ErrGeometryMismatch
)
