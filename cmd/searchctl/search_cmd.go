package main

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/oakmoss/puctsearch/examples/toygame"
	"github.com/oakmoss/puctsearch/pkg/mcts"
)

func newSearchCmd() *cobra.Command {
	var movetime time.Duration
	var noPass, noResign bool

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Run one search episode from the empty starting position and print the chosen move.",
		RunE: func(cmd *cobra.Command, args []string) error {
			lc, err := newLiveConfig(configPath)
			if err != nil {
				return err
			}
			cfg := lc.get()
			if movetime > 0 {
				cfg.Movetime = movetime
			}

			evaluator, closeEvaluator, err := buildEvaluator(cfg.ModelPath, cfg.Engine.MaxCacheBytes)
			if err != nil {
				return err
			}
			defer closeEvaluator()

			initial := toygame.NewPosition()
			engine := mcts.NewEngine(toygame.Rules{}, evaluator, mctsConfig(cfg.Engine), initial)
			defer engine.Stop()
			engine.SetMovetime(cfg.Movetime)

			var flag mcts.PassFlag
			if noPass {
				flag |= mcts.NoPass
			}
			if noResign {
				flag |= mcts.NoResign
			}

			move, err := engine.Think(flag)
			if err != nil {
				return err
			}

			stats := engine.TreeStats()
			log.Info().
				Int("move", int(move)).
				Int64("nodes", stats.Nodes).
				Int64("playouts", stats.Playouts).
				Int64("collisions", stats.Collisions).
				Float64("rate", stats.Rate).
				Str("stop_reason", stats.StopReason.String()).
				Msg("searchctl: search finished")
			printAnalysis(engine.AnalysisLines())
			return nil
		},
	}

	cmd.Flags().DurationVar(&movetime, "movetime", 0, "override the configured per-move time budget")
	cmd.Flags().BoolVar(&noPass, "no-pass", false, "forbid returning the pass move")
	cmd.Flags().BoolVar(&noResign, "no-resign", false, "forbid synthesizing a resignation")
	return cmd
}
