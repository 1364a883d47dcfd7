package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oakmoss/puctsearch/examples/toygame"
	"github.com/oakmoss/puctsearch/pkg/mcts"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Ponder from the starting position indefinitely, exposing Prometheus metrics and a read-only analysis websocket.",
		RunE: func(cmd *cobra.Command, args []string) error {
			lc, err := newLiveConfig(configPath)
			if err != nil {
				return err
			}
			cfg := lc.get()

			evaluator, closeEvaluator, err := buildEvaluator(cfg.ModelPath, cfg.Engine.MaxCacheBytes)
			if err != nil {
				return err
			}
			defer closeEvaluator()

			initial := toygame.NewPosition()
			engine := mcts.NewEngine(toygame.Rules{}, evaluator, mctsConfig(cfg.Engine), initial)
			defer engine.Stop()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			go func() {
				_ = lc.watch(ctx.Done())
			}()
			go func() {
				_, _ = engine.Ponder()
			}()

			return serveAnalysis(ctx, engine, cfg.MetricsAddr, cfg.WSAddr)
		},
	}
	return cmd
}
