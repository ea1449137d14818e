package nn

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/born-ml/resize/internal/tensor"
)

// GradCheckResult summarizes a finite-difference gradient check.
type GradCheckResult struct {
	Checked     int     // Number of input elements probed.
	MaxAbsError float64 // Largest |analytic - numerical| seen.
	WorstIndex  int     // Flat input index of MaxAbsError.
}

// GradCheck compares a layer's Backward against central finite differences
// of the scalar loss L = sum(top * g) for a random projection g.
//
// bottom's data is used as the evaluation point and restored afterwards.
// At most maxProbes input elements are perturbed (all of them when
// maxProbes <= 0); probes are spread evenly over the blob.
func GradCheck[T tensor.Float](layer Layer[T], bottom *tensor.Blob[T], epsilon float64, maxProbes int, rng *rand.Rand) (GradCheckResult, error) {
	var res GradCheckResult
	if epsilon <= 0 {
		return res, fmt.Errorf("gradcheck: epsilon must be positive, got %v", epsilon)
	}

	top := &tensor.Blob[T]{}
	if err := layer.Reshape(bottom, top); err != nil {
		return res, err
	}

	proj := make([]float64, top.Count())
	for i := range proj {
		proj[i] = rng.Float64()*2 - 1
	}
	loss := func() (float64, error) {
		if err := layer.Forward(bottom, top); err != nil {
			return 0, err
		}
		var l float64
		for i, v := range top.Data() {
			l += float64(v) * proj[i]
		}
		return l, nil
	}

	// Analytic gradient.
	if _, err := loss(); err != nil {
		return res, err
	}
	for i := range proj {
		top.MutableDiff()[i] = T(proj[i])
	}
	if err := layer.Backward(top, []bool{true}, bottom); err != nil {
		return res, err
	}
	analytic := append([]T(nil), bottom.Diff()...)

	stride := 1
	if maxProbes > 0 && bottom.Count() > maxProbes {
		stride = (bottom.Count() + maxProbes - 1) / maxProbes
	}

	data := bottom.MutableData()
	for i := 0; i < len(data); i += stride {
		orig := data[i]

		data[i] = orig + T(epsilon)
		plus, err := loss()
		if err != nil {
			data[i] = orig
			return res, err
		}
		data[i] = orig - T(epsilon)
		minus, err := loss()
		data[i] = orig
		if err != nil {
			return res, err
		}

		numerical := (plus - minus) / (2 * epsilon)
		if diff := math.Abs(numerical - float64(analytic[i])); diff > res.MaxAbsError {
			res.MaxAbsError = diff
			res.WorstIndex = i
		}
		res.Checked++
	}
	return res, nil
}
