package main

import (
	"fmt"
	"math/rand"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/born-ml/resize/internal/backend/cpu"
	"github.com/born-ml/resize/internal/nn"
	"github.com/born-ml/resize/internal/tensor"
)

type gradCheckOptions struct {
	num, channels int
	inH, inW      int
	outH, outW    int
	multipleScale float64
	mode          string
	epsilon       float64
	tolerance     float64
	probes        int
	seed          int64
}

func newGradCheckCmd() *cobra.Command {
	opts := gradCheckOptions{}

	gradCheckCmd := &cobra.Command{
		Use:   "gradcheck",
		Short: "Compare Backward against finite differences on random data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := runGradCheck(opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "checked %d inputs, max abs error %.3g (index %d)\n",
				res.Checked, res.MaxAbsError, res.WorstIndex)
			if res.MaxAbsError > opts.tolerance {
				return fmt.Errorf("max abs error %.3g exceeds tolerance %.3g", res.MaxAbsError, opts.tolerance)
			}
			return nil
		},
	}

	f := gradCheckCmd.Flags()
	f.IntVar(&opts.num, "num", 1, "Batch size")
	f.IntVar(&opts.channels, "channels", 2, "Channels")
	f.IntVar(&opts.inH, "in-h", 5, "Input height")
	f.IntVar(&opts.inW, "in-w", 7, "Input width")
	f.IntVar(&opts.outH, "out-h", 9, "Output height")
	f.IntVar(&opts.outW, "out-w", 4, "Output width")
	f.Float64Var(&opts.multipleScale, "multiple-scale", 1, "Output multiplier")
	f.StringVar(&opts.mode, "mode", cpu.Asymmetric.String(), "Coordinate mode: asymmetric, align_corners, half_pixel")
	f.Float64Var(&opts.epsilon, "epsilon", 1e-4, "Finite-difference step")
	f.Float64Var(&opts.tolerance, "tolerance", 1e-6, "Maximum accepted absolute error")
	f.IntVar(&opts.probes, "probes", 0, "Maximum inputs to perturb (0 = all)")
	f.Int64Var(&opts.seed, "seed", 1, "Random seed")

	return gradCheckCmd
}

func runGradCheck(opts gradCheckOptions) (nn.GradCheckResult, error) {
	mode, err := cpu.ParseCoordinateMode(opts.mode)
	if err != nil {
		return nn.GradCheckResult{}, err
	}
	param := nn.DefaultResizeParameter()
	param.IsPyramidTest = false
	param.Height = opts.outH
	param.Width = opts.outW
	param.MultipleScale = opts.multipleScale
	// Finite differences see the multiplier, so Backward must apply it too.
	param.ScaleGradient = true
	param.Mode = mode

	layer, err := nn.NewResize[float64](param, cpu.New())
	if err != nil {
		return nn.GradCheckResult{}, err
	}

	bottom, err := tensor.NewBlob[float64](opts.num, opts.channels, opts.inH, opts.inW)
	if err != nil {
		return nn.GradCheckResult{}, err
	}
	rng := rand.New(rand.NewSource(opts.seed)) //nolint:gosec // reproducible test data
	for i := range bottom.MutableData() {
		bottom.MutableData()[i] = rng.Float64()*2 - 1
	}

	log.Debug().
		Stringer("layer", layer).
		Ints("bottom", bottom.Shape()).
		Msg("running gradient check")

	return nn.GradCheck[float64](layer, bottom, opts.epsilon, opts.probes, rng)
}
