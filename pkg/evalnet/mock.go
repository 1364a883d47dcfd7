package evalnet

import (
	"math/rand"
	"sync/atomic"

	"github.com/oakmoss/puctsearch/pkg/mcts"
)

// MockEvalFunc computes a policy/value pair for a state without running a
// real network — tests and demos supply one instead of loading a model.
type MockEvalFunc func(state mcts.State) mcts.NetResult

// MockEvaluator is a synchronous, uncached mcts.Evaluator for tests and
// demos that don't want a model file on disk. Submit calls the callback
// inline, on the calling goroutine, which is fine for tests but means a
// MockEvaluator never exercises the async batching discipline a real
// ONNXEvaluator does.
type MockEvaluator struct {
	eval    MockEvalFunc
	pending atomic.Int64
}

var _ mcts.Evaluator = (*MockEvaluator)(nil)

// NewMockEvaluator wraps eval, or — if eval is nil — a uniform-policy,
// coin-flip-value stand-in good enough to drive the search loop in tests.
func NewMockEvaluator(eval MockEvalFunc) *MockEvaluator {
	if eval == nil {
		eval = uniformMockEval
	}
	return &MockEvaluator{eval: eval}
}

func uniformMockEval(mcts.State) mcts.NetResult {
	policy := make([]float32, 9)
	for i := range policy {
		policy[i] = 1.0 / float32(len(policy))
	}
	return mcts.NetResult{Policy: policy, WinRate: float32(0.45 + 0.1*rand.Float64())}
}

func (m *MockEvaluator) Submit(state mcts.State, _ mcts.Symmetry, callback func(mcts.NetResult, error)) {
	m.pending.Add(1)
	result := m.eval(state)
	m.pending.Add(-1)
	callback(result, nil)
}

func (m *MockEvaluator) Pending() int { return int(m.pending.Load()) }

func (m *MockEvaluator) EstimatedCacheSize() int64 { return 0 }

func (m *MockEvaluator) ResizeCache(int) {}
