// Package main provides the born-resize CLI: bilinear image resizing,
// finite-difference gradient checks, and location-map dumps.
package main

import (
	"os"

	"github.com/rs/zerolog/log"
)

const version = "v0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("born-resize failed")
		os.Exit(1)
	}
}
