package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/resize/internal/imageio"
	"github.com/born-ml/resize/internal/serialization"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(10 * x), G: uint8(10 * y), B: 128, A: 0xff})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "born-resize "+version+"\n", out)
}

func TestResizeCommand_Absolute(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	require.NoError(t, os.Mkdir(in, 0o750))
	outDir := filepath.Join(dir, "out")

	var files []string
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		p := filepath.Join(in, name)
		writePNG(t, p, 6, 4)
		files = append(files, p)
	}

	args := append([]string{"resize", "--height", "8", "--width", "3", "--jobs", "2",
		"--out-dir", outDir, "--dump", "--metrics-textfile", filepath.Join(dir, "resize.prom"),
		"--log-level", "warn"}, files...)
	_, err := execute(t, args...)
	require.NoError(t, err)

	for _, name := range []string{"a", "b", "c"} {
		blob, format, err := imageio.Load(filepath.Join(outDir, name+".png"))
		require.NoError(t, err)
		assert.Equal(t, "png", format)
		assert.True(t, blob.ShapeEquals(1, 3, 8, 3))

		hdr, err := serialization.ReadSafeTensorsHeader(filepath.Join(outDir, name+".safetensors"))
		require.NoError(t, err)
		assert.Len(t, hdr.Tensors, 9)
		assert.Equal(t, "asymmetric", hdr.Metadata["mode"])
		loc, ok := hdr.Tensor("loc4.weight")
		require.True(t, ok)
		assert.Equal(t, []int64{1, 1, 8, 3}, loc.Shape)
	}

	out, err := execute(t, "inspect", filepath.Join(outDir, "a.safetensors"))
	require.NoError(t, err)
	assert.Contains(t, out, "9 tensors")
	assert.Contains(t, out, "loc4.weight")
	assert.Contains(t, out, "[1 1 8 3]")
	assert.Contains(t, out, "source = a.png")

	prom, err := os.ReadFile(filepath.Join(dir, "resize.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(prom), "born_resize_forward_total")
}

func TestResizeCommand_Pyramid(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "img.png")
	writePNG(t, src, 10, 10)

	_, err := execute(t, "resize", "--pyramid", "--scale-h", "1.49", "--scale-w", "0.5",
		"--mode", "half_pixel", "--format", "bmp", "-o", dir, src)
	require.NoError(t, err)

	blob, format, err := imageio.Load(filepath.Join(dir, "img.bmp"))
	require.NoError(t, err)
	assert.Equal(t, "bmp", format)
	assert.True(t, blob.ShapeEquals(1, 3, 14, 5))
}

func TestResizeCommand_Errors(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "img.png")
	writePNG(t, src, 4, 4)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no target", []string{"resize", src}, "invalid target size"},
		{"bad mode", []string{"resize", "--height", "2", "--width", "2", "--mode", "nearest", src}, "unknown coordinate mode"},
		{"bad format", []string{"resize", "--height", "2", "--width", "2", "--format", "xcf", src}, "unsupported image format"},
		{"bad jobs", []string{"resize", "--height", "2", "--width", "2", "--jobs", "0", src}, "--jobs"},
		{"degenerate pyramid", []string{"resize", "--pyramid", "--scale-h", "0.1", "-o", dir, src}, "invalid target size"},
		{"missing file", []string{"resize", "--height", "2", "--width", "2", "-o", dir, filepath.Join(dir, "nope.png")}, "nope.png"},
		{"duplicate output", []string{"resize", "--height", "2", "--width", "2", "-o", dir, src, filepath.Join(dir, "sub", "img.jpg")}, "both write output"},
		{"inspect missing file", []string{"inspect", filepath.Join(dir, "nope.safetensors")}, "nope.safetensors"},
		{"bad log level", []string{"version", "--log-level", "loud"}, "--log-level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.want), "error %q lacks %q", err, tt.want)
		})
	}
}

func TestGradCheckCommand(t *testing.T) {
	for _, mode := range []string{"asymmetric", "align_corners", "half_pixel"} {
		out, err := execute(t, "gradcheck", "--mode", mode, "--multiple-scale", "0.7", "--in-h", "4", "--in-w", "5",
			"--out-h", "7", "--out-w", "3")
		require.NoError(t, err, mode)
		assert.Contains(t, out, "checked 40 inputs")
	}

	_, err := execute(t, "gradcheck", "--out-h", "0")
	assert.Error(t, err)
}
