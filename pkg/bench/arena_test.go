package bench

import (
	"context"
	"testing"
	"time"

	"github.com/oakmoss/puctsearch/examples/toygame"
	"github.com/oakmoss/puctsearch/pkg/evalnet"
	"github.com/oakmoss/puctsearch/pkg/mcts"
	"github.com/stretchr/testify/require"
)

func newToygameFactory(cfg *mcts.Config) EngineFactory {
	eval := evalnet.NewMockEvaluator(nil)
	return func(initial mcts.State) *mcts.Engine {
		return mcts.NewEngine(toygame.Rules{}, eval, cfg, initial)
	}
}

func TestArenaRunTalliesEveryGame(t *testing.T) {
	cfg := mcts.DefaultConfig().WithThreads(1)
	arena := NewArena(toygame.Rules{}, func() mcts.State { return toygame.NewPosition() },
		newToygameFactory(cfg), newToygameFactory(cfg))
	arena.NGames = 4
	arena.NThreads = 2
	arena.Movetime = 10 * time.Millisecond
	arena.MaxPlies = 9

	summary := arena.Run(context.Background())

	require.Equal(t, 4, summary.TotalGames)
	require.Equal(t, summary.P1Wins+summary.P2Wins+summary.Draws, summary.TotalGames)
	require.Equal(t, 2, summary.Workers)
}

func TestArenaRunRespectsContextCancellation(t *testing.T) {
	cfg := mcts.DefaultConfig().WithThreads(1)
	arena := NewArena(toygame.Rules{}, func() mcts.State { return toygame.NewPosition() },
		newToygameFactory(cfg), newToygameFactory(cfg))
	arena.NGames = 100
	arena.NThreads = 1
	arena.Movetime = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := arena.Run(ctx)
	require.Equal(t, 0, summary.TotalGames, "a context cancelled before Run must stop every worker before its first game")
}

func TestNopListenerNeverPanics(t *testing.T) {
	var l NopListener
	l.OnGameFinished(GameReport{})
	l.OnSummary(Summary{})
}
