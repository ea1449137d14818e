package nn

import (
	"fmt"
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/born-ml/resize/internal/backend/cpu"
	"github.com/born-ml/resize/internal/metrics"
	"github.com/born-ml/resize/internal/tensor"
)

// maxTargetDim bounds computed output dimensions so float-to-int
// conversion stays well defined.
const maxTargetDim = 1 << 30

// ResizeParameter configures a Resize layer.
//
// In absolute mode the output plane is Height x Width. In pyramid mode it is
// int(OutHeightScale*in_height) x int(OutWidthScale*in_width); the product
// is truncated toward zero, never rounded.
type ResizeParameter struct {
	IsPyramidTest  bool
	Height         int
	Width          int
	OutHeightScale float64
	OutWidthScale  float64

	// MultipleScale multiplies every output value after interpolation.
	MultipleScale float64

	// ScaleGradient also multiplies the input gradient by MultipleScale in
	// Backward. Off by default: the scatter then passes output gradients
	// through the interpolation weights only.
	ScaleGradient bool

	Mode cpu.CoordinateMode
}

// DefaultResizeParameter returns an identity-scale pyramid configuration.
func DefaultResizeParameter() ResizeParameter {
	return ResizeParameter{
		IsPyramidTest:  true,
		OutHeightScale: 1,
		OutWidthScale:  1,
		MultipleScale:  1,
		Mode:           cpu.Asymmetric,
	}
}

// Validate checks the parameter independently of any input.
// Pyramid scales that truncate to zero for a particular input are only
// detected by TargetSize.
func (p ResizeParameter) Validate() error {
	if !p.Mode.Valid() {
		return fmt.Errorf("%w: coordinate mode %v", ErrInvalidParameter, p.Mode)
	}
	if math.IsNaN(p.MultipleScale) || math.IsInf(p.MultipleScale, 0) {
		return fmt.Errorf("%w: multiple_scale %v is not finite", ErrInvalidParameter, p.MultipleScale)
	}

	if !p.IsPyramidTest {
		return p.checkAbsolute()
	}

	for _, s := range []float64{p.OutHeightScale, p.OutWidthScale} {
		if math.IsNaN(s) || math.IsInf(s, 0) || s <= 0 {
			return fmt.Errorf("%w: pyramid scale %v must be positive and finite", ErrInvalidParameter, s)
		}
	}
	return nil
}

// TargetSize returns the output plane size for an inH x inW input.
func (p ResizeParameter) TargetSize(inH, inW int) (int, int, error) {
	if !p.IsPyramidTest {
		if err := p.checkAbsolute(); err != nil {
			return 0, 0, err
		}
		return p.Height, p.Width, nil
	}

	h := p.OutHeightScale * float64(inH)
	w := p.OutWidthScale * float64(inW)
	if !(h >= 1 && w >= 1) || h >= maxTargetDim || w >= maxTargetDim {
		return 0, 0, fmt.Errorf("%w: scales %vx%v on %dx%d input give %vx%v",
			ErrInvalidTargetSize, p.OutHeightScale, p.OutWidthScale, inH, inW, h, w)
	}
	return int(h), int(w), nil
}

func (p ResizeParameter) checkAbsolute() error {
	if p.Height <= 0 || p.Width <= 0 || p.Height >= maxTargetDim || p.Width >= maxTargetDim {
		return fmt.Errorf("%w: height %d, width %d", ErrInvalidTargetSize, p.Height, p.Width)
	}
	return nil
}

// geometry identifies the blob shapes a forward pass ran with.
type geometry struct {
	num, channels       int
	inHeight, inWidth   int
	outNum, outChannels int
	outHeight, outWidth int
}

// Resize is a differentiable bilinear resize layer.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, out_height, out_width]
//
// The layer owns four location maps (see cpu.LocationMaps) that record, for
// every output pixel, which input neighbours contribute and with what
// weight. They are allocated on the first PrepareShapes, reshaped on every
// PrepareShapes, and rewritten by every Forward. Backward scatters
// gradients using the maps from the most recent Forward and refuses to run
// if the blob geometry has changed since.
//
// Example:
//
//	param := nn.DefaultResizeParameter()
//	param.OutHeightScale, param.OutWidthScale = 2, 2
//	layer, err := nn.NewResize[float32](param, cpu.New())
//
//	_, err = layer.PrepareShapes(bottom, top) // top: [N, C, 2H, 2W]
//	err = layer.Forward(bottom, top)
//	err = layer.Backward(top, []bool{true}, bottom)
type Resize[T tensor.Float] struct {
	param   ResizeParameter
	backend *cpu.CPUBackend

	locs cpu.LocationMaps[T]

	inShape     tensor.Shape
	outNum      int
	outChannels int
	outHeight   int
	outWidth    int

	last      geometry
	forwarded bool
}

// NewResize creates a Resize layer. It fails fast on a parameter that can
// never produce a valid output.
func NewResize[T tensor.Float](param ResizeParameter, backend *cpu.CPUBackend) (*Resize[T], error) {
	if err := param.Validate(); err != nil {
		return nil, err
	}
	if backend == nil {
		backend = cpu.New()
	}
	return &Resize[T]{
		param:   param,
		backend: backend,
	}, nil
}

// Type returns "Resize".
func (r *Resize[T]) Type() string {
	return "Resize"
}

// PrepareShapes computes the output shape for bottom, reshapes top and the
// location maps to match, and returns the output shape. No data is written.
func (r *Resize[T]) PrepareShapes(bottom, top *tensor.Blob[T]) (tensor.Shape, error) {
	if bottom == nil || len(bottom.Shape()) != 4 {
		return nil, fmt.Errorf("resize: %w: bottom must be a shaped 4-D blob", ErrInvalidInput)
	}
	if top == nil {
		return nil, fmt.Errorf("resize: %w: top is nil", ErrInvalidInput)
	}
	if plane := bottom.Height() * bottom.Width(); plane > tensor.MaxExactIndex[T]() {
		return nil, fmt.Errorf("resize: %w: input plane of %d elements cannot be indexed with %s offsets",
			ErrInvalidInput, plane, tensor.DTypeOf[T]())
	}

	outH, outW, err := r.param.TargetSize(bottom.Height(), bottom.Width())
	if err != nil {
		return nil, fmt.Errorf("resize: %w", err)
	}

	if !r.locs.Allocated() {
		locs, err := cpu.NewLocationMaps[T](outH, outW)
		if err != nil {
			return nil, fmt.Errorf("resize: %w", err)
		}
		r.locs = locs
		metrics.MapAllocations.Inc()
		log.Debug().
			Int("out_height", outH).
			Int("out_width", outW).
			Str("dtype", tensor.DTypeOf[T]().String()).
			Msg("allocated resize location maps")
	}

	if err := top.Reshape(bottom.Num(), bottom.Channels(), outH, outW); err != nil {
		return nil, fmt.Errorf("resize: top: %w", err)
	}
	if err := r.locs.Reshape(outH, outW); err != nil {
		return nil, fmt.Errorf("resize: %w", err)
	}

	r.inShape = bottom.Shape()
	r.outNum = bottom.Num()
	r.outChannels = bottom.Channels()
	r.outHeight = outH
	r.outWidth = outW

	metrics.ReshapeTotal.Inc()
	return r.OutputShape(), nil
}

// Reshape implements Layer by delegating to PrepareShapes.
func (r *Resize[T]) Reshape(bottom, top *tensor.Blob[T]) error {
	_, err := r.PrepareShapes(bottom, top)
	return err
}

// Forward interpolates bottom into top and applies MultipleScale.
//
// Steps:
//  1. Rebuild the location maps for the current geometry
//  2. Interpolate every (n, c) plane through the maps
//  3. Scale top in place by MultipleScale
func (r *Resize[T]) Forward(bottom, top *tensor.Blob[T]) error {
	if r.inShape == nil {
		metrics.ContractViolations.WithLabelValues("forward").Inc()
		return fmt.Errorf("resize forward: %w", ErrNotPrepared)
	}
	if bottom == nil || !bottom.Shape().Equal(r.inShape) {
		metrics.ContractViolations.WithLabelValues("forward").Inc()
		return fmt.Errorf("resize forward: %w: bottom %v, prepared for %v", ErrShapeMismatch, shapeOf(bottom), r.inShape)
	}
	if top == nil || !top.ShapeEquals(r.outNum, r.outChannels, r.outHeight, r.outWidth) {
		metrics.ContractViolations.WithLabelValues("forward").Inc()
		return fmt.Errorf("resize forward: %w: top %v, want %v", ErrShapeMismatch, shapeOf(top), r.OutputShape())
	}
	if !r.locs.Matches(r.outHeight, r.outWidth) {
		metrics.ContractViolations.WithLabelValues("forward").Inc()
		return fmt.Errorf("resize forward: %w: location maps out of date", ErrShapeMismatch)
	}

	timer := prometheus.NewTimer(metrics.ForwardSeconds)
	defer timer.ObserveDuration()

	cpu.BilinearRules(bottom.Height(), bottom.Width(), r.outHeight, r.outWidth, r.param.Mode, r.locs)
	cpu.ResizeBlob(bottom, top, r.locs, r.backend.Parallel())
	cpu.Scal(r.param.MultipleScale, top.MutableData())

	r.last = geometryOf(bottom, top)
	r.forwarded = true

	metrics.ForwardTotal.Inc()
	metrics.OutputElements.Add(float64(top.Count()))
	return nil
}

// Backward writes d(loss)/d(bottom) into bottom's diff from top's diff.
//
// The input gradient is zeroed and then every output gradient is split
// across its four recorded neighbours (additive: many output pixels share
// an input). MultipleScale is not applied unless ScaleGradient is set.
//
// propagateDown is accepted for the Layer contract; the gradient is always
// computed.
func (r *Resize[T]) Backward(top *tensor.Blob[T], _ []bool, bottom *tensor.Blob[T]) error {
	if !r.forwarded {
		metrics.ContractViolations.WithLabelValues("backward").Inc()
		return fmt.Errorf("resize backward: %w", ErrNoForward)
	}
	if top == nil || bottom == nil {
		metrics.ContractViolations.WithLabelValues("backward").Inc()
		return fmt.Errorf("resize backward: %w: nil blob", ErrInvalidInput)
	}
	if g := geometryOf(bottom, top); g != r.last || !r.locs.Matches(g.outHeight, g.outWidth) {
		metrics.ContractViolations.WithLabelValues("backward").Inc()
		return fmt.Errorf("resize backward: %w: bottom %v top %v, last forward %+v",
			ErrGeometryMismatch, bottom.Shape(), top.Shape(), r.last)
	}

	timer := prometheus.NewTimer(metrics.BackwardSeconds)
	defer timer.ObserveDuration()

	cpu.ResizeBlobBackward(top, bottom, r.locs, r.backend.Parallel())
	if r.param.ScaleGradient {
		cpu.Scal(r.param.MultipleScale, bottom.MutableDiff())
	}

	metrics.BackwardTotal.Inc()
	return nil
}

// OutputShape returns the shape computed by the last PrepareShapes, or nil.
func (r *Resize[T]) OutputShape() tensor.Shape {
	if r.inShape == nil {
		return nil
	}
	return tensor.Shape{r.outNum, r.outChannels, r.outHeight, r.outWidth}
}

// LocationMaps returns the layer's location maps. They are nil until the
// first PrepareShapes and must be treated as read-only.
func (r *Resize[T]) LocationMaps() cpu.LocationMaps[T] {
	return r.locs
}

// Param returns the layer configuration.
func (r *Resize[T]) Param() ResizeParameter {
	return r.param
}

// String returns a string representation of the layer.
func (r *Resize[T]) String() string {
	if r.param.IsPyramidTest {
		return fmt.Sprintf("Resize(scale=%gx%g, multiple_scale=%g, mode=%s)",
			r.param.OutHeightScale, r.param.OutWidthScale, r.param.MultipleScale, r.param.Mode)
	}
	return fmt.Sprintf("Resize(height=%d, width=%d, multiple_scale=%g, mode=%s)",
		r.param.Height, r.param.Width, r.param.MultipleScale, r.param.Mode)
}

func geometryOf[T tensor.Float](bottom, top *tensor.Blob[T]) geometry {
	return geometry{
		num:         bottom.Num(),
		channels:    bottom.Channels(),
		inHeight:    bottom.Height(),
		inWidth:     bottom.Width(),
		outNum:      top.Num(),
		outChannels: top.Channels(),
		outHeight:   top.Height(),
		outWidth:    top.Width(),
	}
}

func shapeOf[T tensor.Float](b *tensor.Blob[T]) tensor.Shape {
	if b == nil {
		return nil
	}
	return b.Shape()
}
