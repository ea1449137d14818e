// Package parallel splits independent per-plane work across goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled     bool // Whether parallel execution is enabled.
	NumWorkers  int  // Number of worker goroutines to use.
	MinElements int  // Minimum total elements touched before fanning out.
}

// DefaultConfig returns sensible defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:     n > 1,
		NumWorkers:  n,
		MinElements: 1 << 15,
	}
}

// Sequential returns a configuration that never spawns goroutines.
func Sequential() Config {
	return Config{Enabled: false, NumWorkers: 1}
}

// For executes f(i) for i in [0, n). Items are split into contiguous chunks,
// one per worker, when parallelism is enabled and the total work (in
// elements) reaches cfg.MinElements. f must be safe to call concurrently for
// distinct i.
func For(n, work int, f func(i int), cfg Config) {
	workers := min(cfg.NumWorkers, n)
	if !cfg.Enabled || workers <= 1 || work < cfg.MinElements {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var wg sync.WaitGroup
	chunkSize := (n + workers - 1) / workers

	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// ForPlanes runs f once per (n, c) plane of an NCHW blob. planeSize is the
// number of elements each call touches and feeds the fan-out heuristic.
func ForPlanes(num, channels, planeSize int, f func(n, c int), cfg Config) {
	total := num * channels
	For(total, total*planeSize, func(k int) {
		f(k/channels, k%channels)
	}, cfg)
}
