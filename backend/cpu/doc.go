// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go CPU backend for the resize layers.
//
// # Overview
//
// This package implements a CPU backend with:
//   - Pure Go implementation (no CGO)
//   - Float32 and Float64 support
//   - Plane-parallel bilinear kernels
//   - gonum BLAS for in-place scaling
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/resize/backend/cpu"
//	    "github.com/born-ml/resize/nn"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    param := nn.DefaultResizeParameter()
//	    param.OutHeightScale, param.OutWidthScale = 0.5, 0.5
//	    layer, err := nn.NewResize[float32](param, backend)
//	}
//
// # Thread Safety
//
// A backend holds only configuration and may be shared. Layers built on it
// are not safe for concurrent use; give each goroutine its own layer.
package cpu
