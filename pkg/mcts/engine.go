package mcts

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// counter64 is a plain atomic counter, used for node counts and playouts —
// grounded on the teacher's atomic.Int32 cycle/size counters (search.go),
// widened to 64 bits since tree-size caps are configured in nodes, not a
// 32-bit-safe quantity.
type counter64 struct{ v atomic.Int64 }

func (c *counter64) add(n int64) int64 { return c.v.Add(n) }
func (c *counter64) load() int64       { return c.v.Load() }
func (c *counter64) store(n int64)     { c.v.Store(n) }

// pendingCounter tracks in-flight simulations for one episode. The
// reclaimer reads it before freeing a detached subtree; see spec §4.G.
type pendingCounter struct{ v atomic.Int64 }

func (p *pendingCounter) add(n int64)  { p.v.Add(n) }
func (p *pendingCounter) done()        { p.v.Add(-1) }
func (p *pendingCounter) load() int64  { return p.v.Load() }

// episodeCounters are the atomics shared across a single episode's workers.
type episodeCounters struct {
	pending  pendingCounter
	playouts counter64
}

// Engine is the concurrent PUCT search engine: the root controller plus the
// persistent worker pool that all episodes share. It depends only on the
// Rules and Evaluator contracts (contracts.go) — never on a concrete game
// or network implementation (spec §9, "Dynamic dispatch").
type Engine struct {
	rules     Rules
	evaluator Evaluator
	cfg       *Config

	rootMu    sync.Mutex // guards root swaps; distinct from the root node's own latch
	root      *Node
	rootState State
	rootColor Color

	nodeCount     counter64
	inflatedCount counter64
	collisions    counter64

	// stopReason and rate are the diagnostics TreeStats reports: why the
	// most recent episode's wait loop exited, and its most recently
	// measured playouts/sec — both written only from within runEpisode's
	// own goroutine, read concurrently by TreeStats.
	stopReason atomic.Int32
	rate       atomic.Uint64 // float64 bits

	counters atomic.Pointer[episodeCounters]

	limitsMu sync.Mutex
	limits   episodeLimits

	run       atomic.Bool
	terminate atomic.Bool
	cond      *sync.Cond
	condMu    sync.Mutex
	wg        sync.WaitGroup

	episodeID string
	reclaimer *reclaimer
}

// NewEngine builds an engine around an already-created root position,
// starts its persistent worker pool, and returns it ready for Think/Ponder.
func NewEngine(rules Rules, evaluator Evaluator, cfg *Config, initial State) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	e := &Engine{
		rules:     rules,
		evaluator: evaluator,
		cfg:       cfg,
		root:      newRootNode(),
		rootState: initial,
		rootColor: rules.ToMove(initial),
	}
	e.cond = sync.NewCond(&e.condMu)
	e.counters.Store(&episodeCounters{})
	e.nodeCount.add(1)
	e.reclaimer = newReclaimer(&e.nodeCount, &e.inflatedCount)
	e.startWorkers()
	return e
}

func (e *Engine) currentEpisodeCounters() *episodeCounters {
	return e.counters.Load()
}

func (e *Engine) currentRoot() *Node {
	e.rootMu.Lock()
	defer e.rootMu.Unlock()
	return e.root
}

// startWorkers launches cfg.NumThreads long-lived goroutines that sleep on
// e.cond until an episode sets run=true (spec §4.F step 3 / §5).
func (e *Engine) startWorkers() {
	for i := 0; i < e.cfg.NumThreads; i++ {
		e.wg.Add(1)
		go e.workerLoop(i)
	}
}

func (e *Engine) workerLoop(id int) {
	defer e.wg.Done()
	for {
		e.condMu.Lock()
		for !e.run.Load() && !e.terminate.Load() {
			e.cond.Wait()
		}
		terminate := e.terminate.Load()
		e.condMu.Unlock()

		if terminate {
			return
		}

		e.runOneSimulation()
	}
}

// runOneSimulation clones the root state, walks it, and loops back to sleep
// only when the episode's run flag drops. It never blocks inside a
// simulation beyond the evaluator's (non-blocking) Submit call.
func (e *Engine) runOneSimulation() {
	if !e.run.Load() {
		return
	}
	root := e.currentRoot()
	st := e.rootState.Clone()
	counters := e.counters.Load()
	counters.pending.add(1)
	e.runSimulation(root, st, e.rootColor)
}

// Stop requests the worker pool to shut down permanently. The engine is
// unusable afterwards.
func (e *Engine) Stop() {
	e.terminate.Store(true)
	e.condMu.Lock()
	e.cond.Broadcast()
	e.condMu.Unlock()
	e.wg.Wait()
	e.reclaimer.stop()
}

// CollisionCount returns the number of simulations that failed on latch
// contention during the most recent episode — grounded on the teacher's
// identically-named method in mcts.go.
func (e *Engine) CollisionCount() int64 {
	return e.collisions.load()
}

// CollisionFactor is CollisionCount relative to total playouts, 0 when no
// playouts have run yet.
func (e *Engine) CollisionFactor() float64 {
	playouts := e.counters.Load().playouts.load()
	if playouts == 0 {
		return 0
	}
	return float64(e.collisions.load()) / float64(playouts)
}

func (e *Engine) setStopReason(r StopReason) { e.stopReason.Store(int32(r)) }

func (e *Engine) loadStopReason() StopReason { return StopReason(e.stopReason.Load()) }

func (e *Engine) setRate(r float64) { e.rate.Store(math.Float64bits(r)) }

func (e *Engine) loadRate() float64 { return math.Float64frombits(e.rate.Load()) }

func (e *Engine) newEpisodeID() string {
	id := uuid.New().String()
	log.Debug().Str("episode", id).Msg("mcts: starting episode")
	return id
}
