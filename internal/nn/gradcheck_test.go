package nn

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/resize/internal/tensor"
)

func newTestRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// brokenScale reports a gradient that is off by a constant factor.
type brokenScale struct {
	Scale[float64]
}

func (b *brokenScale) Backward(top *tensor.Blob[float64], down []bool, bottom *tensor.Blob[float64]) error {
	if err := b.Scale.Backward(top, down, bottom); err != nil {
		return err
	}
	for i := range bottom.MutableDiff() {
		bottom.MutableDiff()[i] *= 2
	}
	return nil
}

func TestGradCheck_DetectsWrongGradient(t *testing.T) {
	layer := &brokenScale{Scale: Scale[float64]{factor: 1}}

	bottom, err := tensor.FromSlice([]float64{1, 2, 3, 4}, 1, 1, 2, 2)
	require.NoError(t, err)

	res, err := GradCheck[float64](layer, bottom, 1e-4, 0, newTestRand(1))
	require.NoError(t, err)
	assert.Equal(t, 4, res.Checked)
	assert.Greater(t, res.MaxAbsError, 1e-3)
}

func TestGradCheck_ProbeLimit(t *testing.T) {
	layer, err := NewResize[float64](pyramidParam(1.5, 1.5), seqBackend())
	require.NoError(t, err)

	bottom := randomBlob[float64](t, newTestRand(2), 1, 3, 8, 8)
	res, err := GradCheck[float64](layer, bottom, 1e-4, 10, newTestRand(3))
	require.NoError(t, err)

	// 192 elements with stride ceil(192/10) = 20 gives 10 probes.
	assert.Equal(t, 10, res.Checked)
	assert.Less(t, res.MaxAbsError, 1e-8)
}

func TestGradCheck_RestoresInput(t *testing.T) {
	layer, err := NewResize[float32](pyramidParam(2, 2), seqBackend())
	require.NoError(t, err)

	bottom := randomBlob[float32](t, newTestRand(4), 1, 1, 3, 3)
	before := append([]float32(nil), bottom.Data()...)

	_, err = GradCheck[float32](layer, bottom, 1e-2, 0, newTestRand(5))
	require.NoError(t, err)
	assert.Equal(t, before, bottom.Data())
}

func TestGradCheck_Errors(t *testing.T) {
	layer, err := NewResize[float64](absoluteParam(2, 2), seqBackend())
	require.NoError(t, err)

	bottom, err := tensor.NewBlob[float64](1, 1, 2, 2)
	require.NoError(t, err)

	_, err = GradCheck[float64](layer, bottom, 0, 0, newTestRand(1))
	assert.Error(t, err)

	_, err = GradCheck[float64](layer, &tensor.Blob[float64]{}, 1e-4, 0, newTestRand(1))
	assert.ErrorIs(t, err, ErrInvalidInput)
}
