// Package cpu implements the CPU kernels for bilinear resizing, with BLAS
// integration for scaling and per-plane parallelism.
package cpu

import (
	"fmt"

	"github.com/born-ml/resize/internal/parallel"
)

// CPUBackend carries the execution settings shared by the CPU kernels.
type CPUBackend struct {
	parallel parallel.Config
}

// New creates a new CPU backend using the default parallel configuration.
func New() *CPUBackend {
	return &CPUBackend{
		parallel: parallel.DefaultConfig(),
	}
}

// NewWithConfig creates a CPU backend with an explicit parallel configuration.
func NewWithConfig(cfg parallel.Config) *CPUBackend {
	if cfg.Enabled && cfg.NumWorkers <= 0 {
		panic(fmt.Sprintf("cpu: invalid worker count %d", cfg.NumWorkers))
	}
	return &CPUBackend{
		parallel: cfg,
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Parallel returns the parallel configuration kernels run with.
func (cpu *CPUBackend) Parallel() parallel.Config {
	return cpu.parallel
}
