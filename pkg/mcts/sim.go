package mcts

import "github.com/rs/zerolog/log"

// pathStep is one (node, factor) pair recorded during descent, consumed in
// reverse by backup (spec §4.D). When the simulation terminates, expands,
// or finds every child invalid, the last entry is that node and every
// earlier entry is a proper ancestor; a failed simulation's path holds only
// the nodes it had already selected through.
type pathStep struct {
	node   *Node
	factor float64
}

// simulation carries one worker's state for a single descent: the path
// walked so far and the game state it is playing out (cloned from the root
// state once per simulation, mutated in place as Play advances it — the core never
// inspects state, only clones and plays it).
type simulation struct {
	path  []pathStep
	state State
	color Color
}

// runSimulation walks from root exactly once, classifying every node it
// visits as TERMINAL / WRITE / READ / FAIL / BACKUP (spec §4.D) until the
// descent returns. Expansion (the WRITE arm) is asynchronous: this call
// returns as soon as the evaluator request is submitted, and the
// corresponding backup runs later on the evaluator's callback goroutine
// (eval.go's completeExpansion). The other arms complete synchronously.
func (e *Engine) runSimulation(root *Node, st State, rootColor Color) {
	sim := &simulation{state: st, color: rootColor}
	node := root
	// Every node this simulation visits carries exactly one virtual-loss
	// unit for its duration. Descendants pick theirs up when selected as
	// "next" below; root has no parent to do that for it, so it gets its
	// unit here instead.
	node.virtualLoss.Add(1)

	for {
		if e.rules.Passes(sim.state) >= 2 {
			e.terminal(sim, node)
			return
		}

		if !node.Expanded() {
			if !node.latch.acquireWriter() {
				e.fail(sim, node)
				return
			}
			sim.path = append(sim.path, pathStep{node: node, factor: 1.0})
			e.submitExpansion(sim, node)
			return
		}

		if !node.latch.acquireReader() {
			e.failExpanded(sim, node)
			return
		}

		sel := selectChild(node, sim.color, e.cfg, node == root)
		node.latch.releaseReader()

		if sel.child == nil {
			sim.path = append(sim.path, pathStep{node: node, factor: 1.0})
			e.backupAllInvalid(sim, node)
			return
		}

		sim.path = append(sim.path, pathStep{node: node, factor: sel.factor})

		child := sel.child
		next, created := child.inflate()
		if created {
			e.nodeCount.add(1)
			e.inflatedCount.add(1)
		}
		next.virtualLoss.Add(1)

		if err := e.rules.Play(sim.state, child.move); err != nil {
			child.invalidate()
			next.virtualLoss.Add(-1)
			e.standardFail(sim)
			return
		}
		if e.rules.Superko(sim.state) {
			child.invalidate()
			next.virtualLoss.Add(-1)
			e.standardFail(sim)
			return
		}

		sim.color = sim.color.Opponent()
		node = next
	}
}

// terminal implements the TERMINAL row: two consecutive passes end the
// game; the backed-up eval comes from the rules engine's final score rather
// than the evaluator.
func (e *Engine) terminal(sim *simulation, node *Node) {
	eval := evalFromScore(e.rules.FinalScore(sim.state))
	sim.path = append(sim.path, pathStep{node: node, factor: 1.0})
	backupPath(sim.path, eval, 1)
	e.currentEpisodeCounters().pending.done()
	e.currentEpisodeCounters().playouts.add(1)
}

// backupAllInvalid implements the BACKUP row triggered by the selector
// finding every child invalid: the node's own recorded net_eval stands in
// for a fresh evaluation.
func (e *Engine) backupAllInvalid(sim *simulation, node *Node) {
	backupPath(sim.path, node.NetEval(), 1)
	e.currentEpisodeCounters().pending.done()
	e.currentEpisodeCounters().playouts.add(1)
}

// evalFromScore maps a signed final score to a [0,1] win probability for
// player A, mirroring original_source/src/UCTSearch.cpp's eval_from_score.
func evalFromScore(score float64) float64 {
	switch {
	case score > 0:
		return 1.0
	case score < 0:
		return 0.0
	default:
		return 0.5
	}
}

// backupPath walks path from its tail to its head, adding eval*Π(factor)
// to accumulated_value and vl to visits at every step, while removing the
// matching virtual loss — spec §4.D's backup paragraph.
func backupPath(path []pathStep, eval float64, vl int32) {
	factor := 1.0
	for i := len(path) - 1; i >= 0; i-- {
		step := path[i]
		factor *= step.factor
		step.node.addValue(eval * factor)
		step.node.visits.Add(vl)
		step.node.virtualLoss.Add(-vl)
	}
}

// fail classifies latch contention at node as expansion-coincident: the
// simulation parks its virtual loss in node's accumulated_vl for whichever
// expander currently holds the writer latch to harvest, and undoes its own
// contribution on every proper ancestor walked so far. Only used on the
// acquireWriter path, where a concurrent expander is guaranteed to run
// completeExpansion and harvest the parked unit.
func (e *Engine) fail(sim *simulation, node *Node) {
	node.accumulatedVL.Add(1)
	undoAncestors(sim.path)
	e.collisions.add(1)
	log.Debug().Int("path_len", len(sim.path)).Msg("mcts: simulation failed on latch contention")
	e.currentEpisodeCounters().pending.done()
}

// failExpanded classifies latch contention at an already-expanded node: the
// only way acquireReader fails there is a writer held for something other
// than expansion — a root tree-swap during UpdateRoot is the one case in
// this codebase. No expander is coming to harvest a parked unit, so this
// node's own virtual-loss contribution must be undone directly rather than
// parked in accumulated_vl, or it leaks forever (spec §9 Testable Property
// 1: virtual_loss==0, accumulated_vl==0 at rest).
func (e *Engine) failExpanded(sim *simulation, node *Node) {
	node.virtualLoss.Add(-1)
	undoAncestors(sim.path)
	e.collisions.add(1)
	log.Debug().Int("path_len", len(sim.path)).Msg("mcts: simulation failed on latch contention at an expanded node")
	e.currentEpisodeCounters().pending.done()
}

// standardFail undoes this simulation's own virtual-loss contribution on
// every node of the path walked so far. Used when the failure is local
// (illegal move, superko) rather than a collision with another expander.
func (e *Engine) standardFail(sim *simulation) {
	undoAncestors(sim.path)
	e.currentEpisodeCounters().pending.done()
}

func undoAncestors(path []pathStep) {
	for i := len(path) - 1; i >= 0; i-- {
		path[i].node.virtualLoss.Add(-1)
	}
}
