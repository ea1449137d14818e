// Package metrics exposes Prometheus instrumentation for the resize layers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReshapeTotal counts PrepareShapes calls that completed successfully.
	ReshapeTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "born_resize_reshape_total",
		Help: "Total number of resize shape preparations",
	})

	// MapAllocations counts lazy allocations of the four location maps.
	MapAllocations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "born_resize_map_allocations_total",
		Help: "Total number of location map allocations",
	})

	// ForwardTotal counts completed forward passes.
	ForwardTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "born_resize_forward_total",
		Help: "Total number of resize forward passes",
	})

	// BackwardTotal counts completed backward passes.
	BackwardTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "born_resize_backward_total",
		Help: "Total number of resize backward passes",
	})

	// ContractViolations counts calls rejected for call-order or shape
	// errors, labelled by operation.
	ContractViolations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "born_resize_contract_violations_total",
		Help: "Total number of resize calls rejected for shape or call-order errors",
	}, []string{"op"})

	ForwardSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "born_resize_forward_seconds",
		Help:    "Time spent in resize forward passes",
		Buckets: prometheus.ExponentialBuckets(1e-5, 4, 10),
	})

	BackwardSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "born_resize_backward_seconds",
		Help:    "Time spent in resize backward passes",
		Buckets: prometheus.ExponentialBuckets(1e-5, 4, 10),
	})

	// OutputElements tracks the total number of output elements produced.
	OutputElements = promauto.NewCounter(prometheus.CounterOpts{
		Name: "born_resize_output_elements_total",
		Help: "Total number of output elements written by resize forward passes",
	})
)

// WriteTextfile writes the default registry in the node-exporter textfile
// format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
