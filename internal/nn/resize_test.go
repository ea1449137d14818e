package nn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/resize/internal/backend/cpu"
	"github.com/born-ml/resize/internal/metrics"
	"github.com/born-ml/resize/internal/parallel"
	"github.com/born-ml/resize/internal/tensor"
)

func absoluteParam(h, w int) ResizeParameter {
	p := DefaultResizeParameter()
	p.IsPyramidTest = false
	p.Height = h
	p.Width = w
	return p
}

func pyramidParam(sh, sw float64) ResizeParameter {
	p := DefaultResizeParameter()
	p.OutHeightScale = sh
	p.OutWidthScale = sw
	return p
}

func seqBackend() *cpu.CPUBackend {
	return cpu.NewWithConfig(parallel.Sequential())
}

func randomBlob[T tensor.Float](t *testing.T, rng *rand.Rand, n, c, h, w int) *tensor.Blob[T] {
	t.Helper()
	b, err := tensor.NewBlob[T](n, c, h, w)
	require.NoError(t, err)
	for i := range b.MutableData() {
		b.MutableData()[i] = T(rng.Float64()*2 - 1)
	}
	return b
}

func TestResize_ForwardReference(t *testing.T) {
	layer, err := NewResize[float32](absoluteParam(4, 4), seqBackend())
	require.NoError(t, err)

	bottom, err := tensor.FromSlice([]float32{1, 2, 3, 4}, 1, 1, 2, 2)
	require.NoError(t, err)
	top := &tensor.Blob[float32]{}

	shape, err := layer.PrepareShapes(bottom, top)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 1, 4, 4}, shape)

	require.NoError(t, layer.Forward(bottom, top))

	expected := []float32{
		1, 1.5, 2, 2,
		2, 2.5, 3, 3,
		3, 3.5, 4, 4,
		3, 3.5, 4, 4,
	}
	for i, exp := range expected {
		assert.InDelta(t, exp, top.Data()[i], 1e-6, "output mismatch at index %d", i)
	}
}

func TestResize_PyramidTruncation(t *testing.T) {
	tests := []struct {
		name   string
		scale  float64
		in     int
		expect int
	}{
		{"exact", 1.5, 10, 15},
		{"truncates 14.9", 1.49, 10, 14},
		{"downscale", 0.5, 7, 3},
		{"identity", 1, 9, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			layer, err := NewResize[float32](pyramidParam(tt.scale, tt.scale), seqBackend())
			require.NoError(t, err)

			bottom, err := tensor.NewBlob[float32](2, 3, tt.in, tt.in)
			require.NoError(t, err)
			top := &tensor.Blob[float32]{}

			shape, err := layer.PrepareShapes(bottom, top)
			require.NoError(t, err)
			assert.Equal(t, tensor.Shape{2, 3, tt.expect, tt.expect}, shape)
			assert.True(t, top.ShapeEquals(2, 3, tt.expect, tt.expect))
			for _, m := range layer.LocationMaps() {
				assert.True(t, m.ShapeEquals(1, 1, tt.expect, tt.expect))
			}
		})
	}
}

func TestResize_PyramidIndependentAxes(t *testing.T) {
	layer, err := NewResize[float64](pyramidParam(1.5, 0.25), seqBackend())
	require.NoError(t, err)

	bottom, err := tensor.NewBlob[float64](1, 1, 10, 10)
	require.NoError(t, err)

	shape, err := layer.PrepareShapes(bottom, &tensor.Blob[float64]{})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 1, 15, 2}, shape)
}

func TestResize_DegenerateTarget(t *testing.T) {
	layer, err := NewResize[float32](pyramidParam(0.05, 1), seqBackend())
	require.NoError(t, err)

	bottom, err := tensor.NewBlob[float32](1, 1, 10, 10)
	require.NoError(t, err)
	top := &tensor.Blob[float32]{}

	_, err = layer.PrepareShapes(bottom, top)
	require.ErrorIs(t, err, ErrInvalidTargetSize)

	// Nothing was reshaped or allocated.
	assert.Equal(t, 0, top.Count())
	assert.False(t, layer.LocationMaps().Allocated())
	assert.Nil(t, layer.OutputShape())
	assert.ErrorIs(t, layer.Forward(bottom, top), ErrNotPrepared)
}

func TestResize_OversizedAbsoluteTarget(t *testing.T) {
	huge := math.MaxInt/4 + 1
	p := absoluteParam(huge, huge)

	_, _, err := p.TargetSize(3, 3)
	require.ErrorIs(t, err, ErrInvalidTargetSize)

	// A layer built around Validate still refuses at PrepareShapes.
	layer := &Resize[float32]{param: p, backend: seqBackend()}
	bottom, err := tensor.NewBlob[float32](1, 1, 3, 3)
	require.NoError(t, err)
	top := &tensor.Blob[float32]{}

	_, err = layer.PrepareShapes(bottom, top)
	require.ErrorIs(t, err, ErrInvalidTargetSize)
	assert.Equal(t, 0, top.Count())
	assert.False(t, layer.LocationMaps().Allocated())
	assert.ErrorIs(t, layer.Forward(bottom, top), ErrNotPrepared)
}

func TestResizeParameter_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *ResizeParameter)
		wantErr error
	}{
		{"default", func(_ *ResizeParameter) {}, nil},
		{"absolute ok", func(p *ResizeParameter) { *p = absoluteParam(3, 5) }, nil},
		{"absolute zero height", func(p *ResizeParameter) { *p = absoluteParam(0, 5) }, ErrInvalidTargetSize},
		{"absolute negative width", func(p *ResizeParameter) { *p = absoluteParam(3, -1) }, ErrInvalidTargetSize},
		{"absolute height too large", func(p *ResizeParameter) { *p = absoluteParam(maxTargetDim, 4) }, ErrInvalidTargetSize},
		{"absolute width overflows", func(p *ResizeParameter) { *p = absoluteParam(2, math.MaxInt/2+1) }, ErrInvalidTargetSize},
		{"pyramid zero scale", func(p *ResizeParameter) { p.OutHeightScale = 0 }, ErrInvalidParameter},
		{"pyramid negative scale", func(p *ResizeParameter) { p.OutWidthScale = -2 }, ErrInvalidParameter},
		{"pyramid NaN scale", func(p *ResizeParameter) { p.OutWidthScale = math.NaN() }, ErrInvalidParameter},
		{"infinite multiple", func(p *ResizeParameter) { p.MultipleScale = math.Inf(1) }, ErrInvalidParameter},
		{"bad mode", func(p *ResizeParameter) { p.Mode = cpu.CoordinateMode(42) }, ErrInvalidParameter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultResizeParameter()
			tt.mutate(&p)

			err := p.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)

			_, err = NewResize[float32](p, nil)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestResize_LocationMapInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for _, mode := range []cpu.CoordinateMode{cpu.Asymmetric, cpu.AlignCorners, cpu.HalfPixel} {
		p := absoluteParam(11, 6)
		p.Mode = mode
		layer, err := NewResize[float32](p, seqBackend())
		require.NoError(t, err)

		bottom := randomBlob[float32](t, rng, 1, 2, 7, 9)
		top := &tensor.Blob[float32]{}
		require.NoError(t, layer.Reshape(bottom, top))
		require.NoError(t, layer.Forward(bottom, top))

		locs := layer.LocationMaps()
		for idx := 0; idx < 11*6; idx++ {
			var sum float64
			for k := range locs {
				sum += float64(locs[k].Diff()[idx])
				off := int(locs[k].Data()[idx])
				assert.GreaterOrEqual(t, off, 0)
				assert.Less(t, off, 7*9)
			}
			assert.InDelta(t, 1.0, sum, 1e-6, "%v: weights at %d", mode, idx)
		}
	}
}

func TestResize_MultipleScaleIsLinear(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	bottom := randomBlob[float64](t, rng, 2, 3, 5, 4)

	run := func(k float64) []float64 {
		p := absoluteParam(8, 7)
		p.MultipleScale = k
		layer, err := NewResize[float64](p, seqBackend())
		require.NoError(t, err)

		top := &tensor.Blob[float64]{}
		require.NoError(t, layer.Reshape(bottom, top))
		require.NoError(t, layer.Forward(bottom, top))
		return top.Data()
	}

	base := run(1)
	for _, k := range []float64{0, -1, 0.5, 3.25, 1e3} {
		scaled := run(k)
		for i := range base {
			assert.InDelta(t, k*base[i], scaled[i], 1e-9*math.Max(1, math.Abs(k)), "k=%v index %d", k, i)
		}
	}
}

func TestResize_BackwardMassConservation(t *testing.T) {
	const outPixels = 9 * 5 * 2 * 3

	tests := []struct {
		name      string
		multiple  float64
		scaleGrad bool
		want      float64
	}{
		{"unit", 1, false, outPixels},
		{"half", 0.5, false, outPixels},
		{"triple", 3, false, outPixels},
		{"half scaled gradient", 0.5, true, 0.5 * outPixels},
		{"triple scaled gradient", 3, true, 3 * outPixels},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := absoluteParam(9, 5)
			p.MultipleScale = tt.multiple
			p.ScaleGradient = tt.scaleGrad
			layer, err := NewResize[float64](p, seqBackend())
			require.NoError(t, err)

			rng := rand.New(rand.NewSource(3))
			bottom := randomBlob[float64](t, rng, 2, 3, 4, 6)
			top := &tensor.Blob[float64]{}
			require.NoError(t, layer.Reshape(bottom, top))
			require.NoError(t, layer.Forward(bottom, top))

			for i := range top.MutableDiff() {
				top.MutableDiff()[i] = 1
			}
			require.NoError(t, layer.Backward(top, []bool{true}, bottom))

			assert.InDelta(t, tt.want, floats.Sum(bottom.Diff()), 1e-9)
		})
	}
}

func TestResize_BackwardIgnoresPropagateDown(t *testing.T) {
	layer, err := NewResize[float32](absoluteParam(4, 4), seqBackend())
	require.NoError(t, err)

	bottom, err := tensor.NewBlob[float32](1, 1, 2, 2)
	require.NoError(t, err)
	top := &tensor.Blob[float32]{}
	require.NoError(t, layer.Reshape(bottom, top))
	require.NoError(t, layer.Forward(bottom, top))
	for i := range top.MutableDiff() {
		top.MutableDiff()[i] = 1
	}

	require.NoError(t, layer.Backward(top, []bool{false}, bottom))
	assert.InDelta(t, 2.25, bottom.Diff()[0], 1e-6)

	require.NoError(t, layer.Backward(top, nil, bottom))
	assert.InDelta(t, 6.25, bottom.Diff()[3], 1e-6)
}

func TestResize_BackwardMultipleScale(t *testing.T) {
	tests := []struct {
		name      string
		scaleGrad bool
		want      []float32
	}{
		{"weights only", false, []float32{2.25, 3.75, 3.75, 6.25}},
		{"scaled gradient", true, []float32{6.75, 11.25, 11.25, 18.75}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := absoluteParam(4, 4)
			p.MultipleScale = 3
			p.ScaleGradient = tt.scaleGrad
			layer, err := NewResize[float32](p, seqBackend())
			require.NoError(t, err)

			bottom, err := tensor.NewBlob[float32](1, 1, 2, 2)
			require.NoError(t, err)
			top := &tensor.Blob[float32]{}
			require.NoError(t, layer.Reshape(bottom, top))
			require.NoError(t, layer.Forward(bottom, top))
			for i := range top.MutableDiff() {
				top.MutableDiff()[i] = 1
			}
			require.NoError(t, layer.Backward(top, []bool{true}, bottom))

			for i, exp := range tt.want {
				assert.InDelta(t, exp, bottom.Diff()[i], 1e-5)
			}
		})
	}
}

func TestResize_CallOrderGuards(t *testing.T) {
	layer, err := NewResize[float32](pyramidParam(2, 2), seqBackend())
	require.NoError(t, err)

	bottom, err := tensor.NewBlob[float32](1, 2, 3, 3)
	require.NoError(t, err)
	top := &tensor.Blob[float32]{}

	assert.ErrorIs(t, layer.Forward(bottom, top), ErrNotPrepared)
	assert.ErrorIs(t, layer.Backward(top, nil, bottom), ErrNoForward)

	require.NoError(t, layer.Reshape(bottom, top))
	assert.ErrorIs(t, layer.Backward(top, nil, bottom), ErrNoForward)
	require.NoError(t, layer.Forward(bottom, top))
	require.NoError(t, layer.Backward(top, nil, bottom))

	// Reshape to a new geometry without running Forward: Backward must refuse.
	bigger, err := tensor.NewBlob[float32](1, 2, 5, 5)
	require.NoError(t, err)
	require.NoError(t, layer.Reshape(bigger, top))
	assert.ErrorIs(t, layer.Backward(top, nil, bigger), ErrGeometryMismatch)
	assert.ErrorIs(t, layer.Backward(top, nil, bottom), ErrGeometryMismatch)

	// Forward with a bottom the layer was not prepared for.
	assert.ErrorIs(t, layer.Forward(bottom, top), ErrShapeMismatch)

	// A top resized behind the layer's back.
	require.NoError(t, top.Reshape(1, 2, 9, 9))
	assert.ErrorIs(t, layer.Forward(bigger, top), ErrShapeMismatch)

	// After a matching Forward the pair works again.
	require.NoError(t, layer.Reshape(bigger, top))
	require.NoError(t, layer.Forward(bigger, top))
	require.NoError(t, layer.Backward(top, nil, bigger))
}

func TestResize_BackwardRejectsForeignBlobs(t *testing.T) {
	layer, err := NewResize[float64](absoluteParam(3, 3), seqBackend())
	require.NoError(t, err)

	bottom, err := tensor.NewBlob[float64](2, 1, 6, 6)
	require.NoError(t, err)
	top := &tensor.Blob[float64]{}
	require.NoError(t, layer.Reshape(bottom, top))
	require.NoError(t, layer.Forward(bottom, top))

	otherBottom, err := tensor.NewBlob[float64](1, 1, 6, 6)
	require.NoError(t, err)
	otherTop, err := tensor.NewBlob[float64](1, 1, 3, 3)
	require.NoError(t, err)

	assert.ErrorIs(t, layer.Backward(otherTop, nil, otherBottom), ErrGeometryMismatch)
	assert.ErrorIs(t, layer.Backward(otherTop, nil, bottom), ErrGeometryMismatch)
	assert.ErrorIs(t, layer.Backward(nil, nil, bottom), ErrInvalidInput)
}

func TestResize_InvalidInput(t *testing.T) {
	layer, err := NewResize[float32](absoluteParam(2, 2), seqBackend())
	require.NoError(t, err)

	_, err = layer.PrepareShapes(nil, &tensor.Blob[float32]{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = layer.PrepareShapes(&tensor.Blob[float32]{}, &tensor.Blob[float32]{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	bottom, err := tensor.NewBlob[float32](1, 1, 2, 2)
	require.NoError(t, err)
	_, err = layer.PrepareShapes(bottom, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestResize_PrepareShapesIdempotent(t *testing.T) {
	layer, err := NewResize[float32](absoluteParam(6, 8), seqBackend())
	require.NoError(t, err)

	bottom, err := tensor.NewBlob[float32](1, 3, 4, 4)
	require.NoError(t, err)
	top := &tensor.Blob[float32]{}

	require.NoError(t, layer.Reshape(bottom, top))
	allocs := testutil.ToFloat64(metrics.MapAllocations)
	first := layer.LocationMaps()
	var dataPtrs, diffPtrs [4]*float32
	for k, m := range first {
		dataPtrs[k] = &m.Data()[0]
		diffPtrs[k] = &m.Diff()[0]
	}
	topPtr := &top.Data()[0]

	for i := 0; i < 3; i++ {
		require.NoError(t, layer.Reshape(bottom, top))
		require.NoError(t, layer.Forward(bottom, top))
	}

	again := layer.LocationMaps()
	for k := range again {
		assert.Same(t, first[k], again[k], "map %d reallocated", k)
		assert.Same(t, dataPtrs[k], &again[k].Data()[0], "map %d data reallocated", k)
		assert.Same(t, diffPtrs[k], &again[k].Diff()[0], "map %d diff reallocated", k)
	}
	assert.Same(t, topPtr, &top.Data()[0])
	assert.InDelta(t, allocs, testutil.ToFloat64(metrics.MapAllocations), 0)
}

func TestResize_ReshapeOnShapeChange(t *testing.T) {
	layer, err := NewResize[float64](pyramidParam(2, 2), seqBackend())
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(4))
	top := &tensor.Blob[float64]{}

	for _, size := range []int{3, 5, 2} {
		bottom := randomBlob[float64](t, rng, 1, 1, size, size)
		require.NoError(t, layer.Reshape(bottom, top))
		require.NoError(t, layer.Forward(bottom, top))

		assert.True(t, top.ShapeEquals(1, 1, 2*size, 2*size))
		for _, m := range layer.LocationMaps() {
			assert.True(t, m.ShapeEquals(1, 1, 2*size, 2*size))
		}
		// Top-left output pixel is always the top-left input pixel.
		assert.InDelta(t, bottom.Data()[0], top.Data()[0], 1e-12)
	}
}

func TestResize_GradCheck(t *testing.T) {
	for _, mode := range []cpu.CoordinateMode{cpu.Asymmetric, cpu.AlignCorners, cpu.HalfPixel} {
		for _, p := range []ResizeParameter{absoluteParam(7, 5), pyramidParam(0.6, 1.7)} {
			p.Mode = mode
			p.MultipleScale = 1.3
			p.ScaleGradient = true
			layer, err := NewResize[float64](p, seqBackend())
			require.NoError(t, err)

			rng := rand.New(rand.NewSource(5))
			bottom := randomBlob[float64](t, rng, 2, 2, 5, 6)

			res, err := GradCheck[float64](layer, bottom, 1e-4, 0, rng)
			require.NoError(t, err)
			assert.Equal(t, bottom.Count(), res.Checked)
			assert.Less(t, res.MaxAbsError, 1e-7, "%v %s: worst index %d", mode, layer, res.WorstIndex)
		}
	}
}

func TestResize_DownUpRoundTrip(t *testing.T) {
	const size = 24
	bottom, err := tensor.NewBlob[float32](1, 1, size, size)
	require.NoError(t, err)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			// Distinct slopes on each axis expose an axis swap.
			bottom.Set(float32(0.1*float64(y)+0.03*float64(x)), 0, 0, y, x)
		}
	}

	downParam := absoluteParam(size/2, size/3)
	downParam.Mode = cpu.AlignCorners
	upParam := absoluteParam(size, size)
	upParam.Mode = cpu.AlignCorners

	down, err := NewResize[float32](downParam, seqBackend())
	require.NoError(t, err)
	up, err := NewResize[float32](upParam, seqBackend())
	require.NoError(t, err)

	net := NewNet[float32](down, up)
	out, err := net.Forward(bottom)
	require.NoError(t, err)

	// A linear ramp is reproduced exactly by align-corners bilinear sampling.
	for i := range bottom.Data() {
		assert.InDelta(t, bottom.Data()[i], out.Data()[i], 1e-4, "index %d", i)
	}
}

func TestResize_String(t *testing.T) {
	layer, err := NewResize[float32](absoluteParam(3, 4), nil)
	require.NoError(t, err)
	assert.Equal(t, "Resize(height=3, width=4, multiple_scale=1, mode=asymmetric)", layer.String())
	assert.Equal(t, "Resize", layer.Type())

	layer, err = NewResize[float32](pyramidParam(0.5, 2), nil)
	require.NoError(t, err)
	assert.Equal(t, "Resize(scale=0.5x2, multiple_scale=1, mode=asymmetric)", layer.String())
	assert.Equal(t, 0.5, layer.Param().OutHeightScale)
}

func TestResize_ParallelBackendMatchesSequential(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	bottom := randomBlob[float32](t, rng, 4, 8, 10, 12)

	run := func(backend *cpu.CPUBackend) ([]float32, []float32) {
		layer, err := NewResize[float32](absoluteParam(15, 7), backend)
		require.NoError(t, err)
		in := bottom.Clone()
		top := &tensor.Blob[float32]{}
		require.NoError(t, layer.Reshape(in, top))
		require.NoError(t, layer.Forward(in, top))
		for i := range top.MutableDiff() {
			top.MutableDiff()[i] = float32(i%7) - 3
		}
		require.NoError(t, layer.Backward(top, nil, in))
		return top.Data(), in.Diff()
	}

	seqOut, seqGrad := run(seqBackend())
	parOut, parGrad := run(cpu.NewWithConfig(parallel.Config{Enabled: true, NumWorkers: 3, MinElements: 0}))
	assert.Equal(t, seqOut, parOut)
	assert.Equal(t, seqGrad, parGrad)
}
