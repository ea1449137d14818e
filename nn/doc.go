// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the differentiable bilinear resize layer.
//
// # Overview
//
// This package contains:
//   - Resize: bilinear resize with absolute or pyramid (scale) sizing
//   - Scale: constant elementwise multiplier
//   - Net: a chain of layers with owned intermediate blobs
//   - GradCheck: finite-difference verification of Backward
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/resize/backend/cpu"
//	    "github.com/born-ml/resize/nn"
//	    "github.com/born-ml/resize/tensor"
//	)
//
//	func main() {
//	    param := nn.DefaultResizeParameter()
//	    param.IsPyramidTest = false
//	    param.Height, param.Width = 64, 64
//
//	    layer, err := nn.NewResize[float32](param, cpu.New())
//	    bottom, err := tensor.NewBlob[float32](1, 3, 32, 32)
//	    top := &tensor.Blob[float32]{}
//
//	    _, err = layer.PrepareShapes(bottom, top)
//	    err = layer.Forward(bottom, top)
//	    // fill top.MutableDiff()
//	    err = layer.Backward(top, []bool{true}, bottom)
//	}
//
// # Call Order
//
// PrepareShapes must precede Forward, and Backward uses the location maps of
// the most recent Forward. Violations return ErrNotPrepared, ErrShapeMismatch,
// ErrNoForward or ErrGeometryMismatch instead of reading stale state.
package nn
