package main

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/born-ml/resize/internal/serialization"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE.safetensors...",
		Short: "List the tensors and metadata of a --dump file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				hdr, err := serialization.ReadSafeTensorsHeader(path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				printHeader(cmd.OutOrStdout(), path, hdr)
			}
			return nil
		},
	}
}

func printHeader(w io.Writer, path string, hdr *serialization.Header) {
	fmt.Fprintf(w, "%s: %d tensors, %d data bytes\n", path, len(hdr.Tensors), hdr.DataSize)
	for _, t := range hdr.Tensors {
		fmt.Fprintf(w, "  %-14s %-4s %v [%d, %d)\n", t.Name, t.DType, t.Shape, t.Begin, t.End)
	}
	for _, k := range slices.Sorted(maps.Keys(hdr.Metadata)) {
		fmt.Fprintf(w, "  %s = %s\n", k, hdr.Metadata[k])
	}
}
