package cpu

import (
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/blas/blas64"

	"github.com/born-ml/resize/internal/tensor"
)

// Scal multiplies every element of x by alpha in place (BLAS ?scal).
func Scal[T tensor.Float](alpha float64, x []T) {
	if len(x) == 0 || alpha == 1 {
		return
	}

	switch v := any(x).(type) {
	case []float32:
		blas32.Scal(float32(alpha), blas32.Vector{N: len(v), Data: v, Inc: 1})
	case []float64:
		blas64.Scal(alpha, blas64.Vector{N: len(v), Data: v, Inc: 1})
	default:
		panic("scal: unsupported dtype")
	}
}
