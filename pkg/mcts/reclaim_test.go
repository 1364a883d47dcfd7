package mcts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFreeSubtreeDecrementsNodeAndInflatedCounts(t *testing.T) {
	var nodeCount, inflatedCount counter64
	r := newReclaimer(&nodeCount, &inflatedCount)

	root := newRootNode()
	nodeCount.add(1) // root itself, never inflated

	installChildren(root, []Move{0, 1}, []float32{0.5, 0.5}, 0)
	child0, created0 := root.children[0].inflate()
	require.True(t, created0)
	nodeCount.add(1)
	inflatedCount.add(1)

	installChildren(child0, []Move{2}, []float32{1.0}, 0)
	grandchild, createdG := child0.children[0].inflate()
	require.True(t, createdG)
	nodeCount.add(1)
	inflatedCount.add(1)
	_ = grandchild

	require.Equal(t, int64(3), nodeCount.load())
	require.Equal(t, int64(2), inflatedCount.load())

	r.freeSubtree(root)

	require.Equal(t, int64(0), nodeCount.load(), "every node in the freed subtree must be uncounted")
	require.Equal(t, int64(0), inflatedCount.load())
}

func TestReclaimerDrainFreesSubtreeOnceQuiescent(t *testing.T) {
	var nodeCount, inflatedCount counter64
	r := newReclaimer(&nodeCount, &inflatedCount)

	root := newRootNode()
	nodeCount.add(1)
	installChildren(root, []Move{0}, []float32{1.0}, 0)
	_, created := root.children[0].inflate()
	require.True(t, created)
	nodeCount.add(1)
	inflatedCount.add(1)

	counters := &episodeCounters{}
	r.drain(root, counters)

	require.Eventually(t, func() bool {
		return nodeCount.load() == 0 && inflatedCount.load() == 0
	}, time.Second, time.Millisecond)
}

func TestReclaimerDrainWaitsForPendingAndVirtualLoss(t *testing.T) {
	var nodeCount, inflatedCount counter64
	r := newReclaimer(&nodeCount, &inflatedCount)

	root := newRootNode()
	nodeCount.add(1)
	root.virtualLoss.Add(1)

	counters := &episodeCounters{}
	counters.pending.add(1)

	done := make(chan struct{})
	go func() {
		r.drain(root, counters)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("drain must not free a subtree with outstanding pending or virtual loss")
	case <-time.After(20 * time.Millisecond):
	}

	counters.pending.done()
	root.virtualLoss.Add(-1)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("drain should free the subtree once quiescent")
	}
	require.Equal(t, int64(0), nodeCount.load())
}
