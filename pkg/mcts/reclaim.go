package mcts

import (
	"time"

	"golang.org/x/sync/errgroup"
)

// reclaimPollInterval is how often a draining job rechecks whether it's
// safe to free its subtree — short enough not to delay reclamation
// noticeably, long enough not to spin a CPU doing nothing (spec §4.G).
const reclaimPollInterval = 200 * time.Microsecond

// reclaimer frees detached subtrees asynchronously once the episode that
// detached them has no outstanding simulations left referencing them, and
// the detached root itself carries no virtual loss (spec §4.G). Multiple
// detached subtrees may drain concurrently with each other and with the
// next episode's search.
type reclaimer struct {
	group errgroup.Group
	done  chan struct{}

	// nodeCount/inflatedCount are the owning Engine's live-tree counters.
	// freeSubtree decrements them as it walks a detached subtree so a
	// long-running engine's tree-size cap (root.go's nodeCount.load() >=
	// cfg.MaxTreeNodes check) reflects the tree that actually exists, not
	// the cumulative count of every node ever created.
	nodeCount     *counter64
	inflatedCount *counter64
}

func newReclaimer(nodeCount, inflatedCount *counter64) *reclaimer {
	return &reclaimer{done: make(chan struct{}), nodeCount: nodeCount, inflatedCount: inflatedCount}
}

// schedule hands a former root off for lazy deletion. counters is the
// episode that was running when the subtree was detached; nil skips the
// pending-simulation check, so the subtree is freed as soon as its root
// carries no virtual loss.
func (r *reclaimer) schedule(subtreeRoot *Node, counters *episodeCounters) {
	r.group.Go(func() error {
		r.drain(subtreeRoot, counters)
		return nil
	})
}

func (r *reclaimer) drain(subtreeRoot *Node, counters *episodeCounters) {
	ticker := time.NewTicker(reclaimPollInterval)
	defer ticker.Stop()

	for {
		pending := int64(0)
		if counters != nil {
			pending = counters.pending.load()
		}
		if pending == 0 && subtreeRoot.VirtualLoss() == 0 {
			break
		}
		select {
		case <-ticker.C:
		case <-r.done:
			return
		}
	}
	r.freeSubtree(subtreeRoot)
}

// freeSubtree drops every inflated child reference so the garbage
// collector can reclaim the whole detached subtree, decrementing
// nodeCount (and inflatedCount, for every node that was itself lazily
// inflated rather than installed as a fresh root) for each node it frees.
// There is no explicit node pool to return to — the teacher's tree is
// GC-managed too (node.go), and spec §9 names no persistence requirement
// that would need one.
func (r *reclaimer) freeSubtree(node *Node) {
	for i := range node.children {
		c := &node.children[i]
		if n := c.node.Load(); n != nil {
			r.freeSubtree(n)
			c.node.Store(nil)
		}
	}
	node.children = nil
	r.nodeCount.add(-1)
	if node.fromInflate {
		r.inflatedCount.add(-1)
	}
}

// stop waits for every in-flight drain to notice shutdown and return. It
// does not force an immediate free — jobs still wait for their own
// pending/virtual-loss condition, but are released early via done so
// Engine.Stop doesn't hang on a subtree that will never drain once the
// worker pool itself has stopped producing simulations.
func (r *reclaimer) stop() {
	close(r.done)
	_ = r.group.Wait()
}
