package main

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var level string

	rootCmd := &cobra.Command{
		Use:           "born-resize",
		Short:         "Differentiable bilinear resize",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupLogging(cmd.ErrOrStderr(), level)
		},
	}
	rootCmd.PersistentFlags().StringVar(&level, "log-level", "info", "Log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(
		newResizeCmd(),
		newGradCheckCmd(),
		newInspectCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func setupLogging(w io.Writer, level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339})
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "born-resize %s\n", version)
		},
	}
}
