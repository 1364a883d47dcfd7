package evalnet

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/oakmoss/puctsearch/pkg/mcts"
)

// ONNXEvaluator is the concrete, batched, ONNX-Runtime-backed
// implementation of mcts.Evaluator (spec §6, §9 "dynamic dispatch") — the
// core never imports this package; only cmd/searchctl wires it in.
type ONNXEvaluator struct {
	session    *ort.AdvancedSession
	featurizer Featurizer
	hashFn     func(mcts.State) uint64

	queue   chan evalRequest
	done    chan struct{}
	pending atomic.Int64

	cache *cache
}

// NewONNXEvaluator loads modelPath and starts the background batcher. It
// initializes the ONNX Runtime environment if needed; it does not set the
// shared library path, so ort's default library lookup applies unless the
// caller has called ort.SetSharedLibraryPath beforehand.
func NewONNXEvaluator(modelPath string, featurizer Featurizer, hashFn func(mcts.State) uint64, cacheBytes int64) (*ONNXEvaluator, error) {
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("evalnet: initialize onnxruntime: %w", err)
		}
	}

	shape := ort.NewShape(append([]int64{maxBatchSize}, featurizer.InputShape()...)...)
	policySize := featurizer.PolicySize()

	inputBuf := make([]float32, shapeProduct(shape))
	policyBuf := make([]float32, maxBatchSize*policySize)
	valueBuf := make([]float32, maxBatchSize)

	inputTensor, err := ort.NewTensor(shape, inputBuf)
	if err != nil {
		return nil, fmt.Errorf("evalnet: input tensor: %w", err)
	}
	policyTensor, err := ort.NewTensor(ort.NewShape(maxBatchSize, int64(policySize)), policyBuf)
	if err != nil {
		return nil, fmt.Errorf("evalnet: policy tensor: %w", err)
	}
	valueTensor, err := ort.NewTensor(ort.NewShape(maxBatchSize, 1), valueBuf)
	if err != nil {
		return nil, fmt.Errorf("evalnet: value tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input"},
		[]string{"policy", "value"},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{policyTensor, valueTensor},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("evalnet: create session: %w", err)
	}

	const avgEntryBytes = int64(512)
	capacity := int(cacheBytes / avgEntryBytes)
	if capacity <= 0 {
		capacity = 1024
	}

	e := &ONNXEvaluator{
		session:    session,
		featurizer: featurizer,
		hashFn:     hashFn,
		queue:      make(chan evalRequest, maxBatchSize*4),
		done:       make(chan struct{}),
		cache:      newCache(capacity),
	}
	go e.batchLoop(inputTensor, policyTensor, valueTensor, inputBuf, policyBuf, valueBuf, policySize)
	return e, nil
}

func shapeProduct(shape ort.Shape) int64 {
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return n
}

// Submit enqueues state for the next batch and returns immediately — it
// never blocks the calling worker (spec §4.E item 1).
func (e *ONNXEvaluator) Submit(state mcts.State, symmetry mcts.Symmetry, callback func(mcts.NetResult, error)) {
	e.pending.Add(1)
	if e.hashFn != nil {
		if cached, ok := e.cache.get(e.hashFn(state)); ok {
			e.pending.Add(-1)
			callback(mcts.NetResult{Policy: cached.Policy, WinRate: cached.WinRate}, nil)
			return
		}
	}
	features := e.featurizer.Encode(state)
	select {
	case e.queue <- evalRequest{features: features, callback: e.wrapCallback(state, callback)}:
	case <-e.done:
		callback(mcts.NetResult{}, fmt.Errorf("evalnet: evaluator shut down"))
	}
}

func (e *ONNXEvaluator) wrapCallback(state mcts.State, callback func(mcts.NetResult, error)) func(mcts.NetResult, error) {
	return func(result mcts.NetResult, err error) {
		e.pending.Add(-1)
		if err == nil && e.hashFn != nil {
			e.cache.put(e.hashFn(state), NetResultBytes{Policy: result.Policy, WinRate: result.WinRate})
		}
		callback(result, err)
	}
}

func (e *ONNXEvaluator) Pending() int { return int(e.pending.Load()) }

func (e *ONNXEvaluator) EstimatedCacheSize() int64 {
	e.cache.mu.Lock()
	defer e.cache.mu.Unlock()
	return int64(len(e.cache.entries)) * 512
}

func (e *ONNXEvaluator) ResizeCache(n int) {
	e.cache.resize(n)
}

func (e *ONNXEvaluator) Close() error {
	close(e.done)
	return e.session.Destroy()
}

// batchLoop coalesces queued requests into batches of up to maxBatchSize,
// running inference as soon as the batch fills or batchTimeout elapses —
// grounded on the pack's ONNX evaluator batching discipline.
func (e *ONNXEvaluator) batchLoop(inputTensor, policyTensor, valueTensor *ort.Tensor[float32], inputBuf, policyBuf, valueBuf []float32, policySize int) {
	timer := time.NewTimer(batchTimeout)
	defer timer.Stop()

	var batch []evalRequest
	flush := func() {
		if len(batch) == 0 {
			return
		}
		e.runBatch(batch, inputTensor, policyTensor, valueTensor, inputBuf, policyBuf, valueBuf, policySize)
		batch = batch[:0]
	}

	for {
		select {
		case req, ok := <-e.queue:
			if !ok {
				flush()
				return
			}
			batch = append(batch, req)
			if len(batch) >= maxBatchSize {
				flush()
				timer.Reset(batchTimeout)
			}
		case <-timer.C:
			flush()
			timer.Reset(batchTimeout)
		case <-e.done:
			flush()
			return
		}
	}
}

func (e *ONNXEvaluator) runBatch(batch []evalRequest, inputTensor, policyTensor, valueTensor *ort.Tensor[float32], inputBuf, policyBuf, valueBuf []float32, policySize int) {
	featureLen := len(inputBuf) / maxBatchSize
	for i, req := range batch {
		copy(inputBuf[i*featureLen:(i+1)*featureLen], req.features)
	}

	if err := e.session.Run(); err != nil {
		log.Warn().Err(err).Msg("evalnet: inference batch failed")
		for _, req := range batch {
			req.callback(mcts.NetResult{}, err)
		}
		return
	}

	for i, req := range batch {
		policy := make([]float32, policySize)
		copy(policy, policyBuf[i*policySize:(i+1)*policySize])
		req.callback(mcts.NetResult{Policy: policy, WinRate: valueBuf[i]}, nil)
	}
}
