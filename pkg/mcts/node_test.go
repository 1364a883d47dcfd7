package mcts

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChildPtrInflateIsIdempotent(t *testing.T) {
	cp := childPtr{move: Move(3), prior: 0.5}
	cp.valid.Store(true)

	first, created := cp.inflate()
	require.True(t, created)
	require.Equal(t, Move(3), first.Move())

	second, created := cp.inflate()
	require.False(t, created)
	require.Same(t, first, second)
}

func TestChildPtrInflateConcurrentReturnsOneWinner(t *testing.T) {
	cp := childPtr{move: Move(1), prior: 0.1}
	cp.valid.Store(true)

	const goroutines = 64
	var wg sync.WaitGroup
	results := make([]*Node, goroutines)
	creators := make([]bool, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], creators[i] = cp.inflate()
		}(i)
	}
	wg.Wait()

	createdCount := 0
	for i := 0; i < goroutines; i++ {
		require.Same(t, results[0], results[i])
		if creators[i] {
			createdCount++
		}
	}
	require.Equal(t, 1, createdCount)
}

func TestChildPtrInvalidate(t *testing.T) {
	cp := childPtr{}
	cp.valid.Store(true)
	require.True(t, cp.isValid())
	cp.invalidate()
	require.False(t, cp.isValid())
}

func TestNodeAddValueAndMeanValue(t *testing.T) {
	n := newNode(Pass, 1.0)
	require.True(t, isNaN(n.MeanValue()), "unvisited node should report NaN mean value")

	n.addValue(0.75)
	n.visits.Add(1)
	n.addValue(0.25)
	n.visits.Add(1)

	require.InDelta(t, 0.5, n.MeanValue(), 1e-9)
}

func TestNodeAddValueConcurrent(t *testing.T) {
	n := newNode(Pass, 1.0)
	const goroutines = 200
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n.addValue(1)
			n.visits.Add(1)
		}()
	}
	wg.Wait()
	require.Equal(t, int32(goroutines), n.Visits())
	require.InDelta(t, float64(goroutines), loadFloat64(&n.accumulatedValue), 1e-9)
}

func TestInstallChildrenFiltersLowPriorAwayFromRoot(t *testing.T) {
	n := newNode(Pass, 1.0)
	moves := []Move{0, 1, 2}
	priors := []float32{1.0, 0.5, 0.001}

	installChildren(n, moves, priors, 0.02)

	require.True(t, n.Expanded())
	require.Len(t, n.Children(), 2, "the move whose prior ratio falls below minPolicyRatio should be dropped")
}

func TestInstallChildrenKeepsEverythingAtRoot(t *testing.T) {
	n := newNode(Pass, 1.0)
	moves := []Move{0, 1, 2}
	priors := []float32{1.0, 0.5, 0.001}

	installChildren(n, moves, priors, 0)

	require.Len(t, n.Children(), 3)
}

func TestInstallChildrenNoLegalMovesStillExpands(t *testing.T) {
	n := newNode(Pass, 1.0)
	installChildren(n, nil, nil, 0.02)

	require.True(t, n.Expanded())
	require.Empty(t, n.Children())
}

func isNaN(v float64) bool { return v != v }
