// Package bench plays series of games between two differently configured
// search engines and tallies the result — a concrete, non-generic version
// of the teacher's VersusArena (pkg/bench/versus_arena.go), adapted from
// its MCTS[T,S,R,P] type parameters down to the concrete mcts.Engine this
// module builds.
package bench

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oakmoss/puctsearch/pkg/mcts"
)

// MatchResult is the outcome of one game from Player1's perspective.
type MatchResult int

const (
	Player1Win MatchResult = 1
	Player2Win MatchResult = -1
	Draw       MatchResult = 0
)

// Stats tallies results across every game an Arena has run, safe for
// concurrent updates from worker goroutines.
type Stats struct {
	p1Wins uint32
	p2Wins uint32
	draws  uint32
}

func (s *Stats) Total() int    { return s.P1Wins() + s.P2Wins() + s.Draws() }
func (s *Stats) P1Wins() int   { return int(atomic.LoadUint32(&s.p1Wins)) }
func (s *Stats) P2Wins() int   { return int(atomic.LoadUint32(&s.p2Wins)) }
func (s *Stats) Draws() int    { return int(atomic.LoadUint32(&s.draws)) }

// GameReport is handed to a Listener after every finished game — grounded
// on the teacher's VersusWorkerInfo, trimmed to the fields a concrete
// arena actually needs.
type GameReport struct {
	WorkerID int
	Moves    []mcts.Move
	Result   MatchResult
	Total    int
}

// Summary is handed to a Listener once, after every worker has finished.
type Summary struct {
	TotalGames int
	P1Wins     int
	P2Wins     int
	Draws      int
	Workers    int
}

// Listener observes an Arena run. Every method may be called concurrently
// from different worker goroutines except Summary, which fires once.
type Listener interface {
	OnGameFinished(GameReport)
	OnSummary(Summary)
}

// NopListener discards every event; the zero value of Arena uses it.
type NopListener struct{}

func (NopListener) OnGameFinished(GameReport) {}
func (NopListener) OnSummary(Summary)         {}

// EngineFactory builds a fresh engine bound to a freshly cloned starting
// position — Arena calls it once per game per side, since mcts.Engine owns
// a persistent worker pool that is cheapest to spin up per match rather
// than reset in place.
type EngineFactory func(initial mcts.State) *mcts.Engine

// Arena plays NGames games between two engine factories, picking at random
// (per game, from a per-worker seeded source) who moves first, split across
// NThreads concurrent workers.
type Arena struct {
	Stats

	Rules    mcts.Rules
	NewGame  func() mcts.State
	Player1  EngineFactory
	Player2  EngineFactory
	Movetime time.Duration
	NGames   int
	NThreads int
	MaxPlies int

	Listener Listener
}

// NewArena returns an Arena with the teacher's defaults (100 games, 2
// worker threads, 1s per move) — see versus_arena.go's NewVersusArena.
func NewArena(rules mcts.Rules, newGame func() mcts.State, p1, p2 EngineFactory) *Arena {
	return &Arena{
		Rules:    rules,
		NewGame:  newGame,
		Player1:  p1,
		Player2:  p2,
		Movetime: 1 * time.Second,
		NGames:   100,
		NThreads: 2,
		MaxPlies: 4096,
		Listener: NopListener{},
	}
}

// Run plays every game to completion or until ctx is cancelled, and
// returns the final Summary.
func (a *Arena) Run(ctx context.Context) Summary {
	nThreads := max(a.NThreads, 1)
	base := a.NGames / nThreads
	rest := a.NGames % nThreads

	var wg sync.WaitGroup
	for i := 0; i < nThreads; i++ {
		n := base
		if i < rest {
			n++
		}
		wg.Add(1)
		go a.worker(ctx, i, n, &wg)
	}
	wg.Wait()

	summary := Summary{
		TotalGames: a.Total(),
		P1Wins:     a.P1Wins(),
		P2Wins:     a.P2Wins(),
		Draws:      a.Draws(),
		Workers:    nThreads,
	}
	a.Listener.OnSummary(summary)
	return summary
}

func (a *Arena) worker(ctx context.Context, id, nGames int, wg *sync.WaitGroup) {
	defer wg.Done()
	r := rand.New(rand.NewSource(int64(id) + 1))

	for i := 0; i < nGames; i++ {
		select {
		case <-ctx.Done():
			return
		default:
		}

		p1First := r.Intn(2) == 0
		var result MatchResult
		if p1First {
			result = a.playGame(ctx, a.Player1, a.Player2)
		} else {
			result = -a.playGame(ctx, a.Player2, a.Player1)
		}

		switch result {
		case Player1Win:
			atomic.AddUint32(&a.p1Wins, 1)
		case Player2Win:
			atomic.AddUint32(&a.p2Wins, 1)
		default:
			atomic.AddUint32(&a.draws, 1)
		}

		a.Listener.OnGameFinished(GameReport{WorkerID: id, Result: result, Total: a.Total()})
	}
}

// playGame runs one game to completion with first moving first, returning
// the result from first's perspective. Both engines are kept in sync via
// UpdateRoot after every ply, exactly as an external GTP-style driver
// would — the arena never reaches into engine internals.
func (a *Arena) playGame(ctx context.Context, first, second EngineFactory) MatchResult {
	state := a.NewGame()
	engineFirst := first(state.Clone())
	engineSecond := second(state.Clone())
	defer engineFirst.Stop()
	defer engineSecond.Stop()

	engineFirst.SetMovetime(a.Movetime)
	engineSecond.SetMovetime(a.Movetime)

	moves := make([]mcts.Move, 0, 64)
	toMove := a.Rules.ToMove(state)
	firstIsToMove := true

	for ply := 0; ply < a.MaxPlies; ply++ {
		select {
		case <-ctx.Done():
			return Draw
		default:
		}

		if len(a.Rules.LegalMoves(state, toMove)) == 0 {
			break
		}

		var move mcts.Move
		var err error
		if firstIsToMove {
			move, err = engineFirst.Think(mcts.PassFlagNone)
		} else {
			move, err = engineSecond.Think(mcts.PassFlagNone)
		}
		if err != nil || move == mcts.Resign {
			if firstIsToMove {
				return Player2Win
			}
			return Player1Win
		}

		if err := a.Rules.Play(state, move); err != nil {
			break
		}
		moves = append(moves, move)

		if err := engineFirst.UpdateRoot(state.Clone(), []mcts.Move{move}); err != nil {
			break
		}
		if err := engineSecond.UpdateRoot(state.Clone(), []mcts.Move{move}); err != nil {
			break
		}

		toMove = a.Rules.ToMove(state)
		firstIsToMove = !firstIsToMove
	}

	score := a.Rules.FinalScore(state)
	switch {
	case score > 0:
		return Player1Win
	case score < 0:
		return Player2Win
	default:
		return Draw
	}
}
