package cpu

import (
	"fmt"

	"github.com/born-ml/resize/internal/parallel"
	"github.com/born-ml/resize/internal/tensor"
)

// ResizeBlobBackward scatters the gradient of a bilinear resize back onto
// the input.
//
// Algorithm:
//   - bottom.diff is zero-filled
//   - every output gradient is split across its four input neighbours in
//     proportion to the weights recorded by BilinearRules
//   - contributions accumulate (+=): several output pixels usually share
//     an input neighbour
//
// Example (2x2 -> 4x4, asymmetric, all-ones output gradient):
//
//	Input Grad: [[2.25, 3.75],
//	             [3.75, 6.25]]
//
// Each (n, c) plane writes only to its own slice of bottom.diff, so planes
// run in parallel without synchronization.
func ResizeBlobBackward[T tensor.Float](top, bottom *tensor.Blob[T], locs LocationMaps[T], cfg parallel.Config) {
	N := bottom.Num()
	C := bottom.Channels()
	if top.Num() != N || top.Channels() != C {
		panic(fmt.Sprintf("resize backward: batch/channel mismatch: top %v, bottom %v", top.Shape(), bottom.Shape()))
	}

	srcPlane := bottom.Height() * bottom.Width()
	dstPlane := top.Height() * top.Width()
	if !locs.Matches(top.Height(), top.Width()) {
		panic(fmt.Sprintf("resize backward: location maps do not match output plane %dx%d", top.Height(), top.Width()))
	}

	loc1, w1 := locs[0].Data(), locs[0].Diff()
	loc2, w2 := locs[1].Data(), locs[1].Diff()
	loc3, w3 := locs[2].Data(), locs[2].Diff()
	loc4, w4 := locs[3].Data(), locs[3].Diff()

	bottomDiff := bottom.MutableDiff()
	topDiff := top.Diff()

	clear(bottomDiff)

	parallel.ForPlanes(N, C, dstPlane, func(n, c int) {
		bottomOffset := bottom.Offset(n, c)
		grad := bottomDiff[bottomOffset : bottomOffset+srcPlane]
		topOffset := top.Offset(n, c)
		outGrad := topDiff[topOffset : topOffset+dstPlane]

		for idx, g := range outGrad {
			grad[int(loc1[idx])] += g * w1[idx]
			grad[int(loc2[idx])] += g * w2[idx]
			grad[int(loc3[idx])] += g * w3[idx]
			grad[int(loc4[idx])] += g * w4[idx]
		}
	}, cfg)
}
