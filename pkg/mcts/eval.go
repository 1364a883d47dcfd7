package mcts

import (
	"math/rand"

	"github.com/rs/zerolog/log"
)

// backupData is the continuation handed to the evaluator on WRITE: enough
// state to resume backup when the callback fires, possibly on a completely
// different goroutine and in any delivery order relative to other pending
// requests (spec §4.E).
type backupData struct {
	path     []pathStep // full chain from root to the expansion node
	state    State
	symmetry Symmetry
	moves    []Move
	toMove   Color
}

// submitExpansion hands the expansion node off to the evaluator and
// returns, still holding the writer latch on node until the callback runs.
// The worker that called this is now free to pick up the next simulation;
// nothing about this call blocks.
func (e *Engine) submitExpansion(sim *simulation, node *Node) {
	color := sim.color
	moves := e.rules.LegalMoves(sim.state, color)

	symmetry := SymmetryIdentity
	if e.cfg.UseSymmetries {
		symmetry = Symmetry(rand.Intn(int(numSymmetries)))
	}

	bd := &backupData{
		path:     sim.path,
		state:    sim.state,
		symmetry: symmetry,
		moves:    moves,
		toMove:   color,
	}

	e.evaluator.Submit(sim.state, symmetry, func(result NetResult, err error) {
		e.completeExpansion(bd, node, result, err)
	})
}

// completeExpansion runs the expansion step of spec §4.E item 2: install
// children, consume accumulated_vl, record the first-visit update, release
// the writer latch, then back up the ancestors.
//
// On evaluator failure the expansion does not happen: no children are
// installed, no first-visit is recorded, and the path's virtual loss is
// drained via failure accounting instead of backup (spec §7, "Evaluator
// failure").
func (e *Engine) completeExpansion(bd *backupData, node *Node, result NetResult, err error) {
	if err != nil {
		log.Warn().Err(err).Msg("mcts: evaluator failed to resolve expansion")
		parked := node.accumulatedVL.Swap(0)
		node.virtualLoss.Add(-1 - parked)
		undoAncestors(bd.path[:len(bd.path)-1])
		node.latch.releaseWriter()
		e.currentEpisodeCounters().pending.done()
		return
	}

	priors := make([]float32, len(bd.moves))
	for i, m := range bd.moves {
		idx := e.rules.PolicyIndex(bd.state, m, bd.symmetry)
		if idx >= 0 && idx < len(result.Policy) {
			priors[i] = result.Policy[idx]
		}
	}
	minRatio := e.cfg.MinPolicyRatio
	if node == e.currentRoot() {
		minRatio = 0
	}
	installChildren(node, bd.moves, priors, minRatio)

	eval := float64(result.WinRate)
	if bd.toMove != PlayerA {
		eval = 1 - eval
	}
	node.setNetEval(eval)

	// Harvest this simulation's own contribution plus everything parked by
	// colliding readers while the writer latch was held, then convert that
	// whole multiplicity into one real visit (spec §4.D).
	parked := node.accumulatedVL.Swap(0)
	node.virtualLoss.Add(-1)
	node.addValue(eval)
	node.visits.Add(1)
	node.virtualLoss.Add(-parked)

	node.latch.releaseWriter()

	backupPath(bd.path[:len(bd.path)-1], eval, 1)
	e.currentEpisodeCounters().pending.done()
	e.currentEpisodeCounters().playouts.add(1)
}
