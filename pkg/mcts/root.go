package mcts

import (
	"math"
	"runtime"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// episodeLimits mirrors the teacher's Limits (limits.go), trimmed to the
// stop conditions spec §4.F step 4 actually names. Zero means "no cap".
type episodeLimits struct {
	maxVisits   int64
	maxPlayouts int64
	movetime    time.Duration
}

// SetVisitLimit caps the next episode's root visit count.
func (e *Engine) SetVisitLimit(n int64) {
	e.limitsMu.Lock()
	e.limits.maxVisits = n
	e.limitsMu.Unlock()
}

// SetPlayoutLimit caps the next episode's playout count.
func (e *Engine) SetPlayoutLimit(n int64) {
	e.limitsMu.Lock()
	e.limits.maxPlayouts = n
	e.limitsMu.Unlock()
}

// SetMovetime caps the next episode's wall-clock budget; zero means no time
// cap. Think with no time, visit or playout cap set returns at once without
// searching.
func (e *Engine) SetMovetime(d time.Duration) {
	e.limitsMu.Lock()
	e.limits.movetime = d
	e.limitsMu.Unlock()
}

func (e *Engine) snapshotLimits() episodeLimits {
	e.limitsMu.Lock()
	defer e.limitsMu.Unlock()
	return e.limits
}

// episodeTickInterval is how often the controller's wait loop re-evaluates
// stop conditions — grounded on the teacher's timer.go tick granularity
// (movetime is measured, not slept, in whole-millisecond deltas).
const episodeTickInterval = 5 * time.Millisecond

// Think runs one search episode to completion and returns the chosen move,
// applying the pass/resign heuristics of spec §4.F. It blocks until a stop
// condition fires.
func (e *Engine) Think(flag PassFlag) (Move, error) {
	return e.runEpisode(flag, false)
}

// Ponder runs an open-ended episode until the caller calls Stop or the
// engine is torn down — spec §6, "ponder(infinite)".
func (e *Engine) Ponder() (Move, error) {
	return e.runEpisode(PassFlagNone, true)
}

func (e *Engine) runEpisode(flag PassFlag, infinite bool) (Move, error) {
	limits := e.snapshotLimits()
	counters := &episodeCounters{}
	e.counters.Store(counters)
	e.collisions.store(0)

	root := e.currentRoot()
	start := time.Now()
	e.episodeID = e.newEpisodeID()
	e.setStopReason(StopNone)

	if limits.maxPlayouts == 0 && !infinite && limits.movetime == 0 && limits.maxVisits == 0 {
		return e.finalize(root, flag), nil
	}

	e.run.Store(true)
	e.condMu.Lock()
	e.cond.Broadcast()
	e.condMu.Unlock()

	rate := 0.0
	ticker := time.NewTicker(episodeTickInterval)
	defer ticker.Stop()

stopWait:
	for range ticker.C {
		elapsed := time.Since(start)
		playouts := counters.playouts.load()
		if elapsed > 0 {
			rate = float64(playouts) / elapsed.Seconds()
		}
		e.setRate(rate)

		if !infinite {
			if limits.maxVisits > 0 && int64(root.Visits()) >= limits.maxVisits {
				e.setStopReason(StopVisits)
				break stopWait
			}
			if limits.maxPlayouts > 0 && playouts >= limits.maxPlayouts {
				e.setStopReason(StopPlayouts)
				break stopWait
			}
			if limits.movetime > 0 && elapsed >= limits.movetime {
				e.setStopReason(StopMovetime)
				break stopWait
			}
		}
		if e.nodeCount.load() >= e.cfg.MaxTreeNodes {
			log.Warn().Err(ErrTreeExhausted).Msg("mcts: tree-size cap reached, stopping episode")
			e.setStopReason(StopTreeSize)
			break stopWait
		}
		if e.terminate.Load() {
			e.setStopReason(StopInterrupt)
			break stopWait
		}

		remaining := limits.movetime - elapsed
		if e.pruneNonContenders(root, elapsed, limits.movetime, rate) && !infinite {
			if remaining > 500*time.Millisecond {
				e.setStopReason(StopNoAlternates)
				break stopWait
			}
		}
	}

	e.run.Store(false)
	// Give any worker mid-simulation a moment to reach its next check point
	// (spec §8 boundary behavior: root.visits may exceed the cap by up to
	// one trailing simulation per worker).
	runtime.Gosched()

	return e.finalize(root, flag), nil
}

// pruneNonContenders implements spec §4.F's pruning paragraph: estimate
// remaining playouts from the measured rate, deactivate children that
// cannot catch the leader, and report whether only the leader remains
// active (the caller decides whether that's worth an early stop).
func (e *Engine) pruneNonContenders(root *Node, elapsed, movetime time.Duration, rate float64) bool {
	children := root.Children()
	if len(children) == 0 {
		return false
	}

	remainingTime := movetime - elapsed
	var estRemaining int64
	if movetime > 0 && remainingTime > 0 {
		estRemaining = int64(rate * remainingTime.Seconds())
	} else {
		estRemaining = 1 << 30 // no time budget known: never prune
	}

	var leaderVisits int32
	for i := range children {
		c := &children[i]
		if n := c.node.Load(); n != nil && c.isValid() {
			if v := n.Visits(); v > leaderVisits {
				leaderVisits = v
			}
		}
	}
	minRequired := int64(leaderVisits) - estRemaining

	activeCount := 0
	for i := range children {
		c := &children[i]
		if !c.isValid() {
			continue
		}
		n := c.node.Load()
		if n == nil {
			var created bool
			n, created = c.inflate()
			if created {
				e.nodeCount.add(1)
				e.inflatedCount.add(1)
			}
		}
		if int64(n.Visits()) < minRequired {
			n.setActive(false)
		} else {
			n.setActive(true)
			activeCount++
		}
	}
	return activeCount <= 1
}

// reactivatePrunedChildren undoes pruneNonContenders' Active=false marks so
// the next episode starts with every legal move visible again.
func reactivatePrunedChildren(root *Node) {
	for i := range root.Children() {
		if n := root.Children()[i].node.Load(); n != nil {
			n.setActive(true)
		}
	}
}

// finalize implements spec §4.F step 5: reactivate pruned children, apply
// pass/resign heuristics, and return the chosen move.
func (e *Engine) finalize(root *Node, flag PassFlag) Move {
	reactivatePrunedChildren(root)

	best := bestRootChild(root)
	if best == nil {
		return Pass
	}

	move := best.move
	if n := best.node.Load(); n != nil {
		if resign := e.checkResign(n, flag); resign {
			return Resign
		}
	}

	if move == Pass {
		move = e.applyPassRules(root, best, flag)
	}
	return move
}

// bestRootChild picks the root child with the most real visits, tie-broken
// by policy prior — the teacher's BestChildMostVisits policy (mcts.go),
// restricted to children still marked valid.
func bestRootChild(root *Node) *childPtr {
	children := root.Children()
	var best *childPtr
	var bestVisits int32 = -1
	for i := range children {
		c := &children[i]
		if !c.isValid() {
			continue
		}
		n := c.node.Load()
		var visits int32
		if n != nil {
			visits = n.Visits()
		}
		if visits > bestVisits || (visits == bestVisits && best != nil && c.prior > best.prior) {
			best = c
			bestVisits = visits
		}
	}
	return best
}

// checkResign implements spec §4.F's resignation rule, ported from Leela
// Zero's should_resign (original_source/src/UCTSearch.cpp). moveNum must
// clear num_intersections/4 before resignation is considered at all; below
// that threshold cfg_resignpct is ignored outright.
func (e *Engine) checkResign(leader *Node, flag PassFlag) bool {
	if flag&NoResign != 0 {
		return false
	}
	numIntersections := e.rules.BoardIntersections(e.rootState)
	moveNum := e.rules.MoveNum(e.rootState)
	if moveNum <= numIntersections/4 {
		return false
	}
	eval := relativeValue(leader.MeanValue(), e.rootColor)
	resignThreshold := e.cfg.ResignPercentage
	if eval > resignThreshold {
		return false
	}

	// PlayerB is white (spec §6: FinalScore is positive when PlayerA,
	// black, wins). In handicap games white's threshold is blended down
	// towards resignThreshold/(1+handicap) — harder to trigger early,
	// giving the opponent room to fumble the handicap away — converging
	// back to resignThreshold by move ~0.6*numIntersections.
	if e.rootColor == PlayerB && e.cfg.HandicapStones > 0 {
		handicapResignThreshold := resignThreshold / (1 + float64(e.cfg.HandicapStones))
		blendRatio := math.Min(1.0, float64(moveNum)/(0.6*float64(numIntersections)))
		blended := blendRatio*resignThreshold + (1-blendRatio)*handicapResignThreshold
		return eval <= blended
	}

	return true
}

// applyPassRules implements spec §4.F's pass paragraph.
func (e *Engine) applyPassRules(root *Node, passChild *childPtr, flag PassFlag) Move {
	if flag&NoPass != 0 {
		if alt := bestNonPassChild(root); alt != nil {
			return alt.move
		}
		return Pass
	}

	score := e.rules.FinalScore(passingState(e.rules, e.rootState))
	relScore := score
	if e.rootColor == PlayerB {
		relScore = -score
	}

	switch {
	case relScore < 0:
		if alt := bestNonPassChild(root); alt != nil {
			return alt.move
		}
		return Pass
	case relScore > 0:
		return Pass
	default:
		if alt := bestNonPassChild(root); alt != nil {
			if n := alt.node.Load(); n != nil && n.MeanValue() > 0.5 {
				return alt.move
			}
		}
		return Pass
	}
}

// passingState clones state and plays Pass, purely to read the resulting
// final_score without mutating the engine's own root state.
func passingState(rules Rules, state State) State {
	st := state.Clone()
	_ = rules.Play(st, Pass)
	return st
}

func bestNonPassChild(root *Node) *childPtr {
	children := root.Children()
	var best *childPtr
	var bestVisits int32 = -1
	for i := range children {
		c := &children[i]
		if c.move == Pass || !c.isValid() {
			continue
		}
		n := c.node.Load()
		var visits int32
		if n != nil {
			visits = n.Visits()
		}
		if visits > bestVisits {
			best = c
			bestVisits = visits
		}
	}
	return best
}

// UpdateRoot resynchronises the engine with an externally advanced game
// state, replaying moves from the current root to find the reusable
// subtree (spec §4.F step 1, §6 "update_root"). When replay fails —
// moves don't connect, or the hash mismatches at the end — the entire
// tree is discarded and a fresh root is created.
func (e *Engine) UpdateRoot(newState State, moves []Move) error {
	e.rootMu.Lock()
	defer e.rootMu.Unlock()

	for !e.root.latch.acquireWriter() {
		runtime.Gosched()
	}
	defer e.root.latch.releaseWriter()

	oldRoot := e.root
	newRoot, ok := e.replay(oldRoot, e.rootState, moves, newState)

	if !ok {
		newRoot = newRootNode()
		e.nodeCount.add(1)
	}

	if newRoot != oldRoot {
		if ok {
			// Unlink the reused subtree from its old parent first: the
			// reclaimer frees everything still reachable from oldRoot.
			parent := oldRoot
			for _, m := range moves {
				for i := range parent.children {
					c := &parent.children[i]
					if n := c.node.Load(); n != nil && c.move == m && c.isValid() {
						if n == newRoot {
							c.node.Store(nil)
						}
						parent = n
						break
					}
				}
			}
		}
		e.reclaimer.schedule(oldRoot, e.counters.Load())
	}

	e.root = newRoot
	e.rootState = newState
	e.rootColor = e.rules.ToMove(newState)
	return nil
}

// replay walks moves one at a time from oldRoot/oldState, following the
// matching child pointer at each step, and verifies the final position's
// hash against target (spec §8, testable property 5).
func (e *Engine) replay(oldRoot *Node, oldState State, moves []Move, target State) (*Node, bool) {
	node := oldRoot
	st := oldState.Clone()

	for _, m := range moves {
		children := node.Children()
		var next *childPtr
		for i := range children {
			if children[i].move == m && children[i].isValid() {
				next = &children[i]
				break
			}
		}
		if next == nil {
			return nil, false
		}
		if err := e.rules.Play(st, m); err != nil {
			return nil, false
		}
		if e.rules.Superko(st) {
			return nil, false
		}
		inflated, created := next.inflate()
		if created {
			e.nodeCount.add(1)
			e.inflatedCount.add(1)
		}
		node = inflated
	}

	if e.rules.Hash(st) != e.rules.Hash(target) {
		return nil, false
	}
	return node, true
}

// AnalysisLine is one root child's current statistics, grounded on the
// teacher's MultiPv/PvResult (mcts.go) and Leela Zero's dump_analysis.
type AnalysisLine struct {
	Move    Move
	Visits  int32
	WinRate float64
	Prior   float32
	PV      []Move
}

// AnalysisLines returns one line per root child, sorted by visit count —
// spec §6's supplemental DumpAnalysis/OutputAnalysis equivalent. Sorting
// happens only here, never inside the selector (spec §9's closing note).
func (e *Engine) AnalysisLines() []AnalysisLine {
	root := e.currentRoot()
	children := root.Children()
	lines := make([]AnalysisLine, 0, len(children))

	for i := range children {
		c := &children[i]
		n := c.node.Load()
		var visits int32
		winRate := 0.5
		var pv []Move
		if n != nil {
			visits = n.Visits()
			// A root child's value is backed up from the perspective of the
			// player to move at the root — the side actually choosing among
			// these candidates — same convention checkResign uses for the
			// same kind of node.
			winRate = relativeValue(n.MeanValue(), e.rootColor)
			pv = principalVariation(n)
		}
		lines = append(lines, AnalysisLine{
			Move:    c.move,
			Visits:  visits,
			WinRate: winRate,
			Prior:   c.prior,
			PV:      pv,
		})
	}

	sort.Slice(lines, func(i, j int) bool { return lines[i].Visits > lines[j].Visits })
	return lines
}

func principalVariation(from *Node) []Move {
	pv := make([]Move, 0, 8)
	node := from
	for {
		children := node.Children()
		if len(children) == 0 {
			break
		}
		best := bestRootChild(node)
		if best == nil {
			break
		}
		n := best.node.Load()
		if n == nil {
			break
		}
		pv = append(pv, best.move)
		node = n
		if len(pv) >= 64 {
			break
		}
	}
	return pv
}

// TreeStats reports the diagnostics spec §10 pulls from Leela Zero's
// end-of-search dump: node/inflated counts, playouts, cycles/sec, and
// collisions.
type TreeStats struct {
	Nodes      int64
	Inflated   int64
	Playouts   int64
	Collisions int64
	// Rate is the most recently measured playouts/sec ("cycles/sec" in
	// Leela Zero's own end-of-search diagnostic), live-updated once per
	// episodeTickInterval while an episode runs.
	Rate       float64
	StopReason StopReason
}

func (e *Engine) TreeStats() TreeStats {
	return TreeStats{
		Nodes:      e.nodeCount.load(),
		Inflated:   e.inflatedCount.load(),
		Playouts:   e.currentEpisodeCounters().playouts.load(),
		Collisions: e.collisions.load(),
		Rate:       e.loadRate(),
		StopReason: e.loadStopReason(),
	}
}
