package mcts

import "math"

// selection is the PUCT child-choice result: the chosen stub/handle and the
// scaling factor its backup should carry (spec §4.C). factor is 1.0 unless
// symmetry-averaged priors are in play, which this engine does not use for
// backup weighting — see SPEC_FULL.md's "per-edge scaling factor" note.
type selection struct {
	child  *childPtr
	factor float64
}

// selectChild scores every valid child of parent using PUCT with
// virtual-loss pessimism and returns the winner. colorToMove is the side to
// move at parent; it orients the absolute, PlayerA-perspective value sums
// stored on each child into a parent-relative Q. root, when true, uses
// cfg.RootFPUReduction instead of cfg.FPUReduction for unvisited children.
//
// Returns a nil selection.child when every child has been invalidated
// (spec §4.C, "special rule") — the caller must treat that as a BACKUP
// trigger, not a FAIL.
func selectChild(parent *Node, colorToMove Color, cfg *Config, root bool) selection {
	children := parent.Children()
	if len(children) == 0 {
		return selection{}
	}

	nEff := int64(0)
	for i := range children {
		c := &children[i]
		if !c.isValid() {
			continue
		}
		n := c.node.Load()
		if n != nil {
			nEff += int64(n.Visits()) + int64(n.VirtualLoss())
		}
	}
	sqrtNEff := math.Sqrt(float64(nEff))

	fpuReduction := cfg.FPUReduction
	if root {
		fpuReduction = cfg.RootFPUReduction
	}
	parentQ := relativeValue(parent.MeanValue(), colorToMove)
	if math.IsNaN(parentQ) {
		parentQ = relativeValue(float64(parent.NetEval()), colorToMove)
	}
	fpu := clamp01(parentQ - fpuReduction)

	var (
		best      *childPtr
		bestScore = math.Inf(-1)
		bestPrior = float32(-1)
	)

	for i := range children {
		c := &children[i]
		if !c.isValid() {
			continue
		}

		n := c.node.Load()
		if n != nil && !n.Active() {
			continue
		}
		var visits, vl int32
		q := fpu
		if n != nil {
			visits = n.Visits()
			vl = n.VirtualLoss()
			if visits > 0 {
				relQ := relativeValue(n.MeanValue(), colorToMove)
				// Virtual-loss pessimism: every in-flight simulation counts
				// as a loss (value 0) for the player to move at parent.
				q = relQ * float64(visits) / float64(visits+vl)
			}
		}

		exploration := cfg.PUCTConst * float64(c.prior) * sqrtNEff / float64(1+visits+vl)
		score := q + exploration

		if score > bestScore ||
			(score == bestScore && (best == nil || c.prior > bestPrior)) {
			best = c
			bestScore = score
			bestPrior = c.prior
		}
	}

	if best == nil {
		return selection{}
	}
	return selection{child: best, factor: 1.0}
}

// relativeValue reorients an absolute, PlayerA-perspective win probability
// into the perspective of color.
func relativeValue(absValue float64, color Color) float64 {
	if color == PlayerA {
		return absValue
	}
	return 1 - absValue
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
