// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/born-ml/resize/internal/backend/cpu"
	"github.com/born-ml/resize/internal/parallel"
)

// Backend represents the CPU backend implementation.
//
// Kernels run in pure Go and split work over independent (n, c) planes.
type Backend = internalcpu.CPUBackend

// ParallelConfig controls how kernels split work across goroutines.
type ParallelConfig = parallel.Config

// CoordinateMode selects how output pixels map to input coordinates.
type CoordinateMode = internalcpu.CoordinateMode

// Coordinate modes.
const (
	Asymmetric   CoordinateMode = internalcpu.Asymmetric
	AlignCorners CoordinateMode = internalcpu.AlignCorners
	HalfPixel    CoordinateMode = internalcpu.HalfPixel
)

// New creates a new CPU backend using all available cores.
//
// Example:
//
//	backend := cpu.New()
//	layer, err := nn.NewResize[float32](param, backend)
func New() *Backend {
	return internalcpu.New()
}

// NewWithConfig creates a CPU backend with an explicit parallel configuration.
func NewWithConfig(cfg ParallelConfig) *Backend {
	return internalcpu.NewWithConfig(cfg)
}

// DefaultParallelConfig returns the configuration used by New.
func DefaultParallelConfig() ParallelConfig {
	return parallel.DefaultConfig()
}

// SequentialConfig returns a configuration that runs kernels on the caller's
// goroutine.
func SequentialConfig() ParallelConfig {
	return parallel.Sequential()
}

// ParseCoordinateMode parses "asymmetric", "align_corners" or "half_pixel".
func ParseCoordinateMode(s string) (CoordinateMode, error) {
	return internalcpu.ParseCoordinateMode(s)
}
