// Command searchctl drives the search engine against the tic-tac-toe demo
// rules engine for one-shot searches, arena benchmarking between two
// configurations, and a live analysis server — a concrete CLI in the
// teacher's absence of one, built the way the rest of the retrieved pack
// builds its cobra-based command-line tools.
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var configPath string

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})

	root := &cobra.Command{
		Use:   "searchctl",
		Short: "Drive the PUCT search engine: one-shot search, arena benchmarks, and a live analysis server.",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "searchctl.yaml", "path to the engine configuration file")

	root.AddCommand(newSearchCmd())
	root.AddCommand(newBenchCmd())
	root.AddCommand(newServeCmd())

	if err := root.Execute(); err != nil {
		log.Fatal().Err(err).Msg("searchctl: command failed")
	}
}
