// Package imageio converts between image files and float32 NCHW blobs.
//
// Decoded pixels are scaled to [0, 1]. Gray images give one channel, every
// other color model gives three (R, G, B; alpha is dropped after
// un-premultiplying). Encoding clamps to [0, 1] and rounds to 8 bits.
package imageio

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	// Register decoders with image.Decode.
	_ "image/gif"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/born-ml/resize/internal/tensor"
)

// Format names an encoder.
type Format string

// Supported output formats.
const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
	BMP  Format = "bmp"
	TIFF Format = "tiff"
)

// ErrUnsupportedFormat is returned for unknown output formats.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// ErrChannels is returned when a blob has a channel count that cannot be
// encoded as an image.
var ErrChannels = errors.New("blob must have 1 or 3 channels")

// FormatFromPath picks an output format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return PNG, nil
	case ".jpg", ".jpeg":
		return JPEG, nil
	case ".bmp":
		return BMP, nil
	case ".tif", ".tiff":
		return TIFF, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Load decodes the image file at path into a 1xCxHxW blob.
func Load(path string) (*tensor.Blob[float32], string, error) {
	//nolint:gosec // G304: input images are chosen by the caller
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer func() {
		_ = f.Close()
	}()
	return Decode(f)
}

// Decode reads any registered image format (png, jpeg, gif, bmp, tiff,
// webp) into a 1xCxHxW blob and returns the format name.
func Decode(r io.Reader) (*tensor.Blob[float32], string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	blob, err := FromImage(img)
	if err != nil {
		return nil, "", err
	}
	return blob, format, nil
}

// FromImage converts img into a 1xCxHxW blob.
func FromImage(img image.Image) (*tensor.Blob[float32], error) {
	bounds := img.Bounds()
	h, w := bounds.Dy(), bounds.Dx()

	gray := isGray(img.ColorModel())
	channels := 3
	if gray {
		channels = 1
	}

	blob, err := tensor.NewBlob[float32](1, channels, h, w)
	if err != nil {
		return nil, fmt.Errorf("image %dx%d: %w", w, h, err)
	}
	data := blob.MutableData()
	plane := h * w

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := y*w + x
			c := img.At(bounds.Min.X+x, bounds.Min.Y+y)
			if gray {
				g := color.Gray16Model.Convert(c).(color.Gray16)
				data[idx] = float32(g.Y) / 0xffff
				continue
			}
			n := color.NRGBA64Model.Convert(c).(color.NRGBA64)
			data[idx] = float32(n.R) / 0xffff
			data[plane+idx] = float32(n.G) / 0xffff
			data[2*plane+idx] = float32(n.B) / 0xffff
		}
	}
	return blob, nil
}

// ToImage converts image n of blob into an 8-bit image.
func ToImage(blob *tensor.Blob[float32], n int) (image.Image, error) {
	if n < 0 || n >= blob.Num() {
		return nil, fmt.Errorf("image index %d out of range for batch of %d", n, blob.Num())
	}
	h, w := blob.Height(), blob.Width()
	rect := image.Rect(0, 0, w, h)

	switch blob.Channels() {
	case 1:
		img := image.NewGray(rect)
		src := blob.Data()[blob.Offset(n, 0):]
		for i := 0; i < h*w; i++ {
			img.Pix[i] = to8(src[i])
		}
		return img, nil
	case 3:
		img := image.NewNRGBA(rect)
		r := blob.Data()[blob.Offset(n, 0):]
		g := blob.Data()[blob.Offset(n, 1):]
		b := blob.Data()[blob.Offset(n, 2):]
		for i := 0; i < h*w; i++ {
			img.Pix[4*i] = to8(r[i])
			img.Pix[4*i+1] = to8(g[i])
			img.Pix[4*i+2] = to8(b[i])
			img.Pix[4*i+3] = 0xff
		}
		return img, nil
	default:
		return nil, fmt.Errorf("%w: got %d", ErrChannels, blob.Channels())
	}
}

// Encode writes image n of blob to w.
func Encode(w io.Writer, blob *tensor.Blob[float32], n int, format Format) error {
	img, err := ToImage(blob, n)
	if err != nil {
		return err
	}
	switch format {
	case PNG:
		return png.Encode(w, img)
	case JPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 95})
	case BMP:
		return bmp.Encode(w, img)
	case TIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// Save writes image n of blob to path, choosing the format by extension.
func Save(path string, blob *tensor.Blob[float32], n int) (err error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	//nolint:gosec // G304: output path is chosen by the caller
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return Encode(f, blob, n, format)
}

func isGray(m color.Model) bool {
	return m == color.GrayModel || m == color.Gray16Model
}

func to8(v float32) uint8 {
	switch {
	case !(v > 0): // also catches NaN
		return 0
	case v >= 1:
		return 0xff
	default:
		return uint8(math.Round(float64(v) * 0xff))
	}
}
