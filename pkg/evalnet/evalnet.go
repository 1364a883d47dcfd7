// Package evalnet provides concrete mcts.Evaluator implementations: a
// batched ONNX Runtime backend for real play, and a mock used by tests and
// demos that don't want a model file on disk.
package evalnet

import (
	"sync"
	"time"

	"github.com/oakmoss/puctsearch/pkg/mcts"
)

// Featurizer turns a game state into the tensors a policy-value network
// expects, and knows how big its policy output is. This is deliberately
// the only game-specific surface the evaluator needs — everything else
// about the board (legal moves, scoring, hashing) stays in the Rules
// implementation, never here.
type Featurizer interface {
	Encode(state mcts.State) []float32
	InputShape() []int64
	PolicySize() int
}

// evalRequest is one queued submission awaiting a batch — grounded on the
// request/response channel pattern of the pack's ONNX evaluator.
type evalRequest struct {
	features []float32
	callback func(mcts.NetResult, error)
}

const (
	// maxBatchSize caps how many requests one inference call folds
	// together.
	maxBatchSize = 64
	// batchTimeout is how long the batcher waits for maxBatchSize requests
	// to accumulate before running a smaller batch anyway.
	batchTimeout = 1 * time.Millisecond
)

// cacheEntry is a memoised (policy, winrate) pair keyed by state hash —
// spec §6's estimated_cache_size/nncache_resize surface.
type cacheEntry struct {
	result NetResultBytes
}

// NetResultBytes is the cache's storage representation. The cache keeps the
// Policy slice it is given and hands that same slice back on a hit; it makes
// no copy.
type NetResultBytes struct {
	Policy  []float32
	WinRate float32
}

// cache is a simple size-bounded LRU-ish map; evicted oldest-first once
// capacity is hit. Good enough for the analysis/demo use this module is
// for — a production cache would want real LRU bookkeeping.
type cache struct {
	mu       sync.Mutex
	entries  map[uint64]NetResultBytes
	order    []uint64
	capacity int
}

func newCache(capacity int) *cache {
	return &cache{entries: make(map[uint64]NetResultBytes), capacity: capacity}
}

func (c *cache) get(key uint64) (NetResultBytes, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *cache) put(key uint64, v NetResultBytes) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists {
		if len(c.order) >= c.capacity && c.capacity > 0 {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = v
}

func (c *cache) resize(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.capacity = n
	for len(c.order) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}
