// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public blob types used by the resize layers.
//
// A Blob is a 4-D NCHW container with a data buffer (forward values) and a
// same-sized diff buffer (gradients).
//
// Example:
//
//	b, err := tensor.NewBlob[float32](1, 3, 224, 224)
//	b.Set(0.5, 0, 0, 10, 10)
//	v := b.At(0, 0, 10, 10)
package tensor

import (
	"github.com/born-ml/resize/internal/tensor"
)

// Float is the element type constraint for blobs: float32 or float64.
type Float = tensor.Float

// DataType represents the element type of a blob.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
)

// Shape represents the dimensions of a blob.
type Shape = tensor.Shape

// Blob is a 4-D NCHW array with paired data and diff buffers.
type Blob[T Float] = tensor.Blob[T]

// NewBlob creates a zero-filled blob of shape [num, channels, height, width].
func NewBlob[T Float](num, channels, height, width int) (*Blob[T], error) {
	return tensor.NewBlob[T](num, channels, height, width)
}

// FromSlice creates a blob whose data is a copy of values.
func FromSlice[T Float](values []T, num, channels, height, width int) (*Blob[T], error) {
	return tensor.FromSlice(values, num, channels, height, width)
}

// DTypeOf returns the DataType for T.
func DTypeOf[T Float]() DataType {
	return tensor.DTypeOf[T]()
}
