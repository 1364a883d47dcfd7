package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/oakmoss/puctsearch/examples/toygame"
	"github.com/oakmoss/puctsearch/pkg/bench"
	"github.com/oakmoss/puctsearch/pkg/mcts"
)

func newBenchCmd() *cobra.Command {
	var nGames, nThreads int
	var movetime time.Duration
	var puct1, puct2 float64

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Play a series of games between two PUCT-constant configurations and report the score.",
		RunE: func(cmd *cobra.Command, args []string) error {
			lc, err := newLiveConfig(configPath)
			if err != nil {
				return err
			}
			base := lc.get()

			evaluator, closeEvaluator, err := buildEvaluator(base.ModelPath, base.Engine.MaxCacheBytes)
			if err != nil {
				return err
			}
			defer closeEvaluator()

			cfg1 := mctsConfig(base.Engine).WithPUCTConst(puct1)
			cfg2 := mctsConfig(base.Engine).WithPUCTConst(puct2)

			arena := bench.NewArena(
				toygame.Rules{},
				func() mcts.State { return toygame.NewPosition() },
				newEngineFactory(evaluator, cfg1),
				newEngineFactory(evaluator, cfg2),
			)
			arena.NGames = nGames
			arena.NThreads = nThreads
			arena.Movetime = movetime
			arena.Listener = bench.LogListener{}

			arena.Run(context.Background())
			return nil
		},
	}

	cmd.Flags().IntVar(&nGames, "games", 20, "number of games to play")
	cmd.Flags().IntVar(&nThreads, "threads", 2, "number of concurrent game workers")
	cmd.Flags().DurationVar(&movetime, "movetime", 200*time.Millisecond, "per-move time budget for both players")
	cmd.Flags().Float64Var(&puct1, "puct1", 0.8, "PUCT constant for player 1")
	cmd.Flags().Float64Var(&puct2, "puct2", 1.4, "PUCT constant for player 2")
	return cmd
}
