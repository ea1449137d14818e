package cpu

import (
	"fmt"
	"math"
)

// CoordinateMode selects how an output pixel index maps to a fractional
// input coordinate.
type CoordinateMode int

const (
	// Asymmetric maps o to o*in/out. Pixel 0 of the output lines up with
	// pixel 0 of the input, and the last output pixel may fall short of
	// the last input pixel.
	Asymmetric CoordinateMode = iota

	// AlignCorners maps o to o*(in-1)/(out-1), so the corner pixels of
	// input and output coincide.
	AlignCorners

	// HalfPixel maps pixel centers: (o+0.5)*in/out - 0.5.
	HalfPixel
)

// String returns the mode name as accepted by ParseCoordinateMode.
func (m CoordinateMode) String() string {
	switch m {
	case Asymmetric:
		return "asymmetric"
	case AlignCorners:
		return "align_corners"
	case HalfPixel:
		return "half_pixel"
	default:
		return fmt.Sprintf("CoordinateMode(%d)", int(m))
	}
}

// Valid reports whether m is a known mode.
func (m CoordinateMode) Valid() bool {
	return m >= Asymmetric && m <= HalfPixel
}

// ParseCoordinateMode parses a mode name.
func ParseCoordinateMode(s string) (CoordinateMode, error) {
	switch s {
	case "asymmetric", "":
		return Asymmetric, nil
	case "align_corners":
		return AlignCorners, nil
	case "half_pixel":
		return HalfPixel, nil
	default:
		return 0, fmt.Errorf("unknown coordinate mode %q (want asymmetric, align_corners or half_pixel)", s)
	}
}

// SourceCoord returns the fractional input coordinate of output index o
// along an axis with in input and out output pixels. The result is not
// clamped.
func SourceCoord(o, in, out int, mode CoordinateMode) float64 {
	switch mode {
	case AlignCorners:
		if out == 1 {
			return 0
		}
		return float64(o) * float64(in-1) / float64(out-1)
	case HalfPixel:
		return (float64(o)+0.5)*float64(in)/float64(out) - 0.5
	default:
		return float64(o) * float64(in) / float64(out)
	}
}

// tap is the pair of input indices along one axis and the fractional
// weight of the second.
type tap struct {
	lo, hi int
	frac   float64
}

// axisTaps computes the interpolation taps for every output index along
// one axis. Coordinates outside [0, in-1] replicate the nearest edge pixel.
func axisTaps(in, out int, mode CoordinateMode) []tap {
	taps := make([]tap, out)
	last := in - 1
	for o := range taps {
		f := SourceCoord(o, in, out, mode)
		if f <= 0 {
			taps[o] = tap{lo: 0, hi: min(1, last)}
			continue
		}

		lo := int(math.Floor(f))
		if lo >= last {
			taps[o] = tap{lo: last, hi: last}
			continue
		}
		taps[o] = tap{lo: lo, hi: lo + 1, frac: f - float64(lo)}
	}
	return taps
}
