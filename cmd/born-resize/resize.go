package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/born-ml/resize/internal/backend/cpu"
	"github.com/born-ml/resize/internal/imageio"
	"github.com/born-ml/resize/internal/metrics"
	"github.com/born-ml/resize/internal/nn"
	"github.com/born-ml/resize/internal/parallel"
	"github.com/born-ml/resize/internal/serialization"
	"github.com/born-ml/resize/internal/tensor"
)

type resizeOptions struct {
	height, width   int
	pyramid         bool
	scaleH, scaleW  float64
	multipleScale   float64
	mode            string
	outDir          string
	format          string
	jobs            int
	dump            bool
	metricsTextfile string
}

func newResizeCmd() *cobra.Command {
	opts := resizeOptions{}

	resizeCmd := &cobra.Command{
		Use:   "resize FILE...",
		Short: "Resize images with bilinear interpolation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResize(cmd.Context(), opts, args)
		},
	}

	f := resizeCmd.Flags()
	f.IntVar(&opts.height, "height", 0, "Output height (absolute mode)")
	f.IntVar(&opts.width, "width", 0, "Output width (absolute mode)")
	f.BoolVar(&opts.pyramid, "pyramid", false, "Scale the input size by --scale-h/--scale-w instead")
	f.Float64Var(&opts.scaleH, "scale-h", 1, "Height scale in pyramid mode")
	f.Float64Var(&opts.scaleW, "scale-w", 1, "Width scale in pyramid mode")
	f.Float64Var(&opts.multipleScale, "multiple-scale", 1, "Multiply every output value by this factor")
	f.StringVar(&opts.mode, "mode", cpu.Asymmetric.String(), "Coordinate mode: asymmetric, align_corners, half_pixel")
	f.StringVarP(&opts.outDir, "out-dir", "o", ".", "Directory for resized images")
	f.StringVar(&opts.format, "format", "png", "Output format: png, jpeg, bmp, tiff")
	f.IntVarP(&opts.jobs, "jobs", "j", 1, "Number of images processed concurrently")
	f.BoolVar(&opts.dump, "dump", false, "Also write output and location maps as .safetensors")
	f.StringVar(&opts.metricsTextfile, "metrics-textfile", "", "Write Prometheus metrics to this file when done")

	return resizeCmd
}

func (o resizeOptions) param() (nn.ResizeParameter, error) {
	mode, err := cpu.ParseCoordinateMode(o.mode)
	if err != nil {
		return nn.ResizeParameter{}, err
	}
	p := nn.DefaultResizeParameter()
	p.IsPyramidTest = o.pyramid
	p.Height = o.height
	p.Width = o.width
	p.OutHeightScale = o.scaleH
	p.OutWidthScale = o.scaleW
	p.MultipleScale = o.multipleScale
	p.Mode = mode
	return p, p.Validate()
}

func runResize(ctx context.Context, opts resizeOptions, files []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	param, err := opts.param()
	if err != nil {
		return err
	}
	format, err := imageio.FormatFromPath("out." + opts.format)
	if err != nil {
		return err
	}
	if opts.jobs < 1 {
		return fmt.Errorf("--jobs must be at least 1, got %d", opts.jobs)
	}
	if err := checkOutputNames(files); err != nil {
		return err
	}
	if err := os.MkdirAll(opts.outDir, 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	// Plane-level parallelism only pays off when images are not already
	// spread across workers.
	backendCfg := parallel.DefaultConfig()
	if opts.jobs > 1 {
		backendCfg = parallel.Sequential()
	}

	workers := min(opts.jobs, len(files))
	queue := make(chan string)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(queue)
		for _, file := range files {
			select {
			case queue <- file:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	start := time.Now()
	for range workers {
		g.Go(func() error {
			// Each worker owns its layer and blobs; the location maps are
			// reused across images.
			layer, err := nn.NewResize[float32](param, cpu.NewWithConfig(backendCfg))
			if err != nil {
				return err
			}
			top := &tensor.Blob[float32]{}
			for file := range queue {
				if err := resizeFile(layer, top, file, opts, format); err != nil {
					return fmt.Errorf("%s: %w", file, err)
				}
			}
			return nil
		})
	}

	err = g.Wait()
	if opts.metricsTextfile != "" {
		if werr := metrics.WriteTextfile(opts.metricsTextfile); werr != nil {
			err = errors.Join(err, fmt.Errorf("write metrics: %w", werr))
		}
	}
	if err != nil {
		return err
	}

	log.Info().
		Int("images", len(files)).
		Int("jobs", workers).
		Dur("elapsed", time.Since(start)).
		Msg("resize complete")
	return nil
}

func resizeFile(layer *nn.Resize[float32], top *tensor.Blob[float32], file string, opts resizeOptions, format imageio.Format) error {
	bottom, srcFormat, err := imageio.Load(file)
	if err != nil {
		return err
	}

	if _, err := layer.PrepareShapes(bottom, top); err != nil {
		return err
	}
	if err := layer.Forward(bottom, top); err != nil {
		return err
	}

	base := outputBase(file)
	out := filepath.Join(opts.outDir, base+"."+string(format))
	if err := imageio.Save(out, top, 0); err != nil {
		return err
	}

	log.Debug().
		Str("in", file).
		Str("in_format", srcFormat).
		Str("out", out).
		Ints("in_shape", bottom.Shape()).
		Ints("out_shape", top.Shape()).
		Msg("resized")

	if !opts.dump {
		return nil
	}
	return dumpLayer(filepath.Join(opts.outDir, base+".safetensors"), layer, top, file)
}

func outputBase(file string) string {
	return strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
}

// checkOutputNames rejects inputs that would write the same output file.
func checkOutputNames(files []string) error {
	seen := make(map[string]string, len(files))
	for _, file := range files {
		base := outputBase(file)
		if prev, ok := seen[base]; ok {
			return fmt.Errorf("%s and %s both write output %q", prev, file, base)
		}
		seen[base] = file
	}
	return nil
}

// dumpLayer writes the output blob and the location maps: offsets under
// loc1..loc4 and weights under loc1.weight..loc4.weight.
func dumpLayer(path string, layer *nn.Resize[float32], top *tensor.Blob[float32], source string) error {
	tensors := serialization.BlobTensors("output", top, false)
	for k, m := range layer.LocationMaps() {
		name := "loc" + strconv.Itoa(k+1)
		tensors[name] = serialization.Tensor{DType: m.DType(), Shape: m.Shape(), Data: m.DataBytes()}
		tensors[name+".weight"] = serialization.Tensor{DType: m.DType(), Shape: m.Shape(), Data: m.DiffBytes()}
	}

	p := layer.Param()
	meta := map[string]string{
		"source":         filepath.Base(source),
		"layer":          layer.String(),
		"mode":           p.Mode.String(),
		"multiple_scale": strconv.FormatFloat(p.MultipleScale, 'g', -1, 64),
	}
	return serialization.WriteSafeTensors(path, tensors, meta)
}
