package mcts

import (
	"math"
	"sync/atomic"
)

// childPtr is a handle inside a parent's children slice: the move, the
// policy prior assigned to it, and either a null or an owning pointer to
// an inflated Node. Inflation is one-way and idempotent — see spec §4.A.
type childPtr struct {
	move  Move
	prior float32
	valid atomic.Bool
	node  atomic.Pointer[Node]
}

// inflate returns the full Node behind this handle, creating and
// installing it on first visit-through. Concurrent callers racing to
// inflate the same stub all observe the same Node afterwards; created
// reports true for exactly one of them, so callers can keep an accurate
// node count without a separate lock.
func (c *childPtr) inflate() (node *Node, created bool) {
	if n := c.node.Load(); n != nil {
		return n, false
	}
	fresh := newNode(c.move, c.prior)
	fresh.fromInflate = true
	if c.node.CompareAndSwap(nil, fresh) {
		return fresh, true
	}
	return c.node.Load(), false
}

func (c *childPtr) isValid() bool {
	return c.valid.Load()
}

func (c *childPtr) invalidate() {
	c.valid.Store(false)
}

// Node represents one game position reached via a specific last move. All
// counters are updated with plain atomics, without holding the latch —
// readers tolerate racy reads because the selector is robust to stale
// counts (spec §5).
type Node struct {
	move        Move
	policyPrior float32

	visits           atomic.Int32
	accumulatedValue atomic.Uint64 // float64 bits, CAS-accumulated
	netEval          atomic.Uint64 // float64 bits, set once at expansion
	virtualLoss      atomic.Int32
	accumulatedVL    atomic.Int32
	active           atomic.Bool

	// fromInflate marks a node created by childPtr.inflate rather than
	// newRootNode, so freeSubtree can keep inflatedCount accurate when the
	// reclaimer tears a subtree down. Written once before the node is
	// published (CompareAndSwap'd into its childPtr), never mutated after.
	fromInflate bool

	latch    latch
	children []childPtr
}

func newNode(move Move, prior float32) *Node {
	n := &Node{move: move, policyPrior: prior}
	n.active.Store(true)
	return n
}

func newRootNode() *Node {
	return newNode(Pass, 1.0)
}

// Move is the move played to reach this node.
func (n *Node) Move() Move { return n.move }

// PolicyPrior is the prior probability the evaluator assigned at the
// parent for this node's move.
func (n *Node) PolicyPrior() float32 { return n.policyPrior }

// Visits returns the number of completed (real) simulations through n.
func (n *Node) Visits() int32 { return n.visits.Load() }

// VirtualLoss returns the number of in-flight simulations currently
// traversing or awaiting expansion at n.
func (n *Node) VirtualLoss() int32 { return n.virtualLoss.Load() }

// Active reports whether the root controller has pruned this node as a
// non-contender; pruned children are skipped by the selector.
func (n *Node) Active() bool { return n.active.Load() }

func (n *Node) setActive(v bool) { n.active.Store(v) }

// Expanded reports whether children have been installed.
func (n *Node) Expanded() bool { return n.children != nil }

// Children exposes the child handles in selection order.
func (n *Node) Children() []childPtr { return n.children }

func (n *Node) addValue(v float64) {
	addFloat64(&n.accumulatedValue, v)
}

// MeanValue returns accumulated value divided by real visit count, in the
// fixed PlayerA-perspective frame (see DESIGN.md). NaN when unvisited.
func (n *Node) MeanValue() float64 {
	visits := n.visits.Load()
	if visits == 0 {
		return math.NaN()
	}
	return loadFloat64(&n.accumulatedValue) / float64(visits)
}

func (n *Node) setNetEval(v float64) {
	n.netEval.Store(math.Float64bits(v))
}

// NetEval returns the raw evaluator win-rate recorded at expansion, used
// when a simulation terminates here because every child is invalid.
func (n *Node) NetEval() float64 {
	return math.Float64frombits(n.netEval.Load())
}

// installChildren populates n.children exactly once (spec invariant 1).
// Children whose normalised prior falls below minPolicyRatio relative to
// the maximum sibling prior are omitted, except at the root (ratio 0,
// i.e. keep everything legal — spec §4.A).
func installChildren(n *Node, moves []Move, priors []float32, minPolicyRatio float64) {
	if len(moves) == 0 {
		n.children = []childPtr{}
		return
	}

	maxPrior := float32(0)
	for _, p := range priors {
		if p > maxPrior {
			maxPrior = p
		}
	}
	if maxPrior <= 0 {
		maxPrior = 1
	}

	children := make([]childPtr, 0, len(moves))
	for i, m := range moves {
		p := priors[i]
		if minPolicyRatio > 0 && float64(p)/float64(maxPrior) < minPolicyRatio {
			continue
		}
		cp := childPtr{move: m, prior: p}
		cp.valid.Store(true)
		children = append(children, cp)
	}
	n.children = children
}

// addFloat64 atomically adds delta to the float64 stored in addr's bit
// pattern via a CAS loop — the idiomatic way to get atomic float
// accumulation without a lock, generalizing the teacher's fixed-point
// atomic.Uint64 accumulator (node.go/stats.go) to full float64 precision,
// which accumulated_value needs.
func addFloat64(addr *atomic.Uint64, delta float64) {
	for {
		old := addr.Load()
		newV := math.Float64frombits(old) + delta
		if addr.CompareAndSwap(old, math.Float64bits(newV)) {
			return
		}
	}
}

func loadFloat64(addr *atomic.Uint64) float64 {
	return math.Float64frombits(addr.Load())
}
