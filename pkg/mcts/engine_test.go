package mcts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEngineThinkReturnsALegalMove(t *testing.T) {
	rules := &fakeRules{boardSize: 9}
	eval := &syncEvaluator{winRate: 0.5}
	engine := NewEngine(rules, eval, DefaultConfig().WithThreads(2), &fakeState{})
	defer engine.Stop()

	engine.SetMovetime(50 * time.Millisecond)
	move, err := engine.Think(PassFlagNone)

	require.NoError(t, err)
	require.GreaterOrEqual(t, int(move), 0)
	require.Less(t, int(move), 9)
}

func TestEngineThinkRespectsVisitLimit(t *testing.T) {
	rules := &fakeRules{boardSize: 9}
	eval := &syncEvaluator{winRate: 0.5}
	engine := NewEngine(rules, eval, DefaultConfig().WithThreads(2), &fakeState{})
	defer engine.Stop()

	engine.SetVisitLimit(20)
	_, err := engine.Think(PassFlagNone)
	require.NoError(t, err)

	require.GreaterOrEqual(t, int64(engine.currentRoot().Visits()), int64(20))
	require.Equal(t, StopVisits, engine.TreeStats().StopReason)
}

func TestEngineTreeStatsReportsMovetimeStopReason(t *testing.T) {
	rules := &fakeRules{boardSize: 9}
	eval := &syncEvaluator{winRate: 0.5}
	engine := NewEngine(rules, eval, DefaultConfig().WithThreads(2), &fakeState{})
	defer engine.Stop()

	engine.SetMovetime(20 * time.Millisecond)
	_, err := engine.Think(PassFlagNone)
	require.NoError(t, err)
	require.Equal(t, StopMovetime, engine.TreeStats().StopReason)
}

func TestEngineTreeStatsReportsPlayoutStopReason(t *testing.T) {
	rules := &fakeRules{boardSize: 9}
	eval := &syncEvaluator{winRate: 0.5}
	engine := NewEngine(rules, eval, DefaultConfig().WithThreads(2), &fakeState{})
	defer engine.Stop()

	engine.SetPlayoutLimit(15)
	_, err := engine.Think(PassFlagNone)
	require.NoError(t, err)
	require.Equal(t, StopPlayouts, engine.TreeStats().StopReason)
}

func TestEngineTreeStatsReportsPositiveRateAfterAnEpisode(t *testing.T) {
	rules := &fakeRules{boardSize: 9}
	eval := &syncEvaluator{winRate: 0.5}
	engine := NewEngine(rules, eval, DefaultConfig().WithThreads(2), &fakeState{})
	defer engine.Stop()

	engine.SetMovetime(30 * time.Millisecond)
	_, err := engine.Think(PassFlagNone)
	require.NoError(t, err)
	require.Greater(t, engine.TreeStats().Rate, 0.0)
}

func TestEngineUpdateRootThenThinkAgain(t *testing.T) {
	rules := &fakeRules{boardSize: 9}
	eval := &syncEvaluator{winRate: 0.5}
	engine := NewEngine(rules, eval, DefaultConfig().WithThreads(2), &fakeState{})
	defer engine.Stop()

	engine.SetMovetime(30 * time.Millisecond)
	move, err := engine.Think(PassFlagNone)
	require.NoError(t, err)

	newState := &fakeState{}
	require.NoError(t, rules.Play(newState, move))
	require.NoError(t, engine.UpdateRoot(newState, []Move{move}))

	move2, err := engine.Think(PassFlagNone)
	require.NoError(t, err)
	require.NotEqual(t, move, move2, "the move just played should no longer be legal")
}

func TestEngineTreeStatsReportsTreeSizeStopReason(t *testing.T) {
	rules := &fakeRules{boardSize: 9}
	eval := &syncEvaluator{winRate: 0.5}
	cfg := DefaultConfig().WithThreads(2).WithMaxTreeNodes(1) // the root itself already meets the cap
	engine := NewEngine(rules, eval, cfg, &fakeState{})
	defer engine.Stop()

	engine.SetMovetime(50 * time.Millisecond)
	_, err := engine.Think(PassFlagNone)
	require.NoError(t, err)
	require.Equal(t, StopTreeSize, engine.TreeStats().StopReason)
}

func TestEngineCollisionFactorIsZeroWithNoCollisions(t *testing.T) {
	rules := &fakeRules{boardSize: 9}
	eval := &syncEvaluator{winRate: 0.5}
	engine := NewEngine(rules, eval, DefaultConfig().WithThreads(1), &fakeState{})
	defer engine.Stop()

	engine.SetPlayoutLimit(10)
	_, err := engine.Think(PassFlagNone)
	require.NoError(t, err)
	require.Equal(t, 0.0, engine.CollisionFactor())
}
