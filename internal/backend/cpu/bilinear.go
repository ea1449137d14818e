package cpu

import (
	"fmt"

	"github.com/born-ml/resize/internal/parallel"
	"github.com/born-ml/resize/internal/tensor"
)

// LocationMaps holds the per-output-pixel interpolation rules of a bilinear
// resize. Each entry is a [1, 1, out_height, out_width] blob; its data holds
// the flat offset of one input neighbour within an (n, c) plane and its diff
// holds the weight of that neighbour.
//
// Index 0..3 are the top-left, top-right, bottom-left and bottom-right
// neighbours. For every pixel the four weights sum to 1.
type LocationMaps[T tensor.Float] [4]*tensor.Blob[T]

// NewLocationMaps allocates four [1, 1, height, width] maps.
func NewLocationMaps[T tensor.Float](height, width int) (LocationMaps[T], error) {
	var locs LocationMaps[T]
	for i := range locs {
		b, err := tensor.NewBlob[T](1, 1, height, width)
		if err != nil {
			return locs, fmt.Errorf("location map %d: %w", i, err)
		}
		locs[i] = b
	}
	return locs, nil
}

// Allocated reports whether all four maps exist.
func (l LocationMaps[T]) Allocated() bool {
	for _, b := range l {
		if b == nil {
			return false
		}
	}
	return true
}

// Reshape reshapes every map to [1, 1, height, width].
func (l LocationMaps[T]) Reshape(height, width int) error {
	for i, b := range l {
		if err := b.Reshape(1, 1, height, width); err != nil {
			return fmt.Errorf("location map %d: %w", i, err)
		}
	}
	return nil
}

// Matches reports whether every map is shaped [1, 1, height, width].
func (l LocationMaps[T]) Matches(height, width int) bool {
	if !l.Allocated() {
		return false
	}
	for _, b := range l {
		if !b.ShapeEquals(1, 1, height, width) {
			return false
		}
	}
	return true
}

// BilinearRules fills locs with the neighbour offsets and weights for
// resizing a srcH x srcW plane to dstH x dstW.
//
// For output pixel (oy, ox) with source coordinate (fy, fx):
//
//	y0 = floor(fy), y1 = min(y0+1, srcH-1), ty = fy - y0
//	x0 = floor(fx), x1 = min(x0+1, srcW-1), tx = fx - x0
//
//	loc[0] = y0*srcW + x0   weight (1-ty)(1-tx)
//	loc[1] = y0*srcW + x1   weight (1-ty)tx
//	loc[2] = y1*srcW + x0   weight ty(1-tx)
//	loc[3] = y1*srcW + x1   weight ty*tx
//
// Coordinates past the border replicate the edge pixel with its full weight.
// The rules depend on geometry only, so one call serves every (n, c) plane.
func BilinearRules[T tensor.Float](srcH, srcW, dstH, dstW int, mode CoordinateMode, locs LocationMaps[T]) {
	if srcH <= 0 || srcW <= 0 || dstH <= 0 || dstW <= 0 {
		panic(fmt.Sprintf("bilinear: invalid geometry %dx%d -> %dx%d", srcH, srcW, dstH, dstW))
	}
	if !mode.Valid() {
		panic(fmt.Sprintf("bilinear: invalid coordinate mode %v", mode))
	}
	if srcH*srcW > tensor.MaxExactIndex[T]() {
		panic(fmt.Sprintf("bilinear: input plane %dx%d too large to index with %s offsets",
			srcH, srcW, tensor.DTypeOf[T]()))
	}
	if !locs.Matches(dstH, dstW) {
		panic(fmt.Sprintf("bilinear: location maps not shaped [1 1 %d %d]", dstH, dstW))
	}

	ys := axisTaps(srcH, dstH, mode)
	xs := axisTaps(srcW, dstW, mode)

	loc1, w1 := locs[0].MutableData(), locs[0].MutableDiff()
	loc2, w2 := locs[1].MutableData(), locs[1].MutableDiff()
	loc3, w3 := locs[2].MutableData(), locs[2].MutableDiff()
	loc4, w4 := locs[3].MutableData(), locs[3].MutableDiff()

	for oy, ty := range ys {
		top := ty.lo * srcW
		bottom := ty.hi * srcW
		row := oy * dstW

		for ox, tx := range xs {
			idx := row + ox

			loc1[idx] = T(top + tx.lo)
			loc2[idx] = T(top + tx.hi)
			loc3[idx] = T(bottom + tx.lo)
			loc4[idx] = T(bottom + tx.hi)

			w1[idx] = T((1 - ty.frac) * (1 - tx.frac))
			w2[idx] = T((1 - ty.frac) * tx.frac)
			w3[idx] = T(ty.frac * (1 - tx.frac))
			w4[idx] = T(ty.frac * tx.frac)
		}
	}
}

// ResizeBlob interpolates every (n, c) plane of src into dst using the rules
// stored in locs (see BilinearRules).
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, out_height, out_width]
//
// Example (2x2 -> 4x4, asymmetric):
//
//	Input: [[1, 2],    Output: [[1, 1.5, 2, 2],
//	        [3, 4]]             [2, 2.5, 3, 3],
//	                            [3, 3.5, 4, 4],
//	                            [3, 3.5, 4, 4]]
func ResizeBlob[T tensor.Float](src, dst *tensor.Blob[T], locs LocationMaps[T], cfg parallel.Config) {
	N := src.Num()
	C := src.Channels()
	if dst.Num() != N || dst.Channels() != C {
		panic(fmt.Sprintf("resize: batch/channel mismatch: src %v, dst %v", src.Shape(), dst.Shape()))
	}

	srcPlane := src.Height() * src.Width()
	dstPlane := dst.Height() * dst.Width()
	if !locs.Matches(dst.Height(), dst.Width()) {
		panic(fmt.Sprintf("resize: location maps do not match output plane %dx%d", dst.Height(), dst.Width()))
	}

	loc1, w1 := locs[0].Data(), locs[0].Diff()
	loc2, w2 := locs[1].Data(), locs[1].Diff()
	loc3, w3 := locs[2].Data(), locs[2].Diff()
	loc4, w4 := locs[3].Data(), locs[3].Diff()

	srcData := src.Data()
	dstData := dst.MutableData()

	parallel.ForPlanes(N, C, dstPlane, func(n, c int) {
		// Pre-slice planes: a stale offset trips the bounds check
		// instead of reading a neighbouring channel.
		srcOffset := src.Offset(n, c)
		in := srcData[srcOffset : srcOffset+srcPlane]
		dstOffset := dst.Offset(n, c)
		out := dstData[dstOffset : dstOffset+dstPlane]

		for idx := range out {
			out[idx] = in[int(loc1[idx])]*w1[idx] +
				in[int(loc2[idx])]*w2[idx] +
				in[int(loc3[idx])]*w3[idx] +
				in[int(loc4[idx])]*w4[idx]
		}
	}, cfg)
}
