package main

import (
	"github.com/oakmoss/puctsearch/pkg/evalnet"
	"github.com/oakmoss/puctsearch/pkg/mcts"
	"github.com/oakmoss/puctsearch/examples/toygame"
)

func mctsConfig(s EngineSettings) *mcts.Config {
	return mcts.DefaultConfig().
		WithPUCTConst(s.PUCTConst).
		WithFPUReduction(s.FPUReduction).
		WithRootFPUReduction(s.RootFPUReduction).
		WithMinPolicyRatio(s.MinPolicyRatio).
		WithThreads(s.NumThreads).
		WithSymmetries(s.UseSymmetries).
		WithResignPercentage(s.ResignPercentage).
		WithHandicapStones(s.HandicapStones).
		WithMaxTreeNodes(s.MaxTreeNodes)
}

// buildEvaluator returns an ONNX-backed evaluator when modelPath is set, or
// a mock otherwise — searchctl runs fine with no model file at all.
func buildEvaluator(modelPath string, cacheBytes int64) (mcts.Evaluator, func() error, error) {
	if modelPath == "" {
		return evalnet.NewMockEvaluator(nil), func() error { return nil }, nil
	}
	rules := toygame.Rules{}
	hashFn := func(s mcts.State) uint64 { return rules.Hash(s) }
	nn, err := evalnet.NewONNXEvaluator(modelPath, toygame.Featurizer{}, hashFn, cacheBytes)
	if err != nil {
		return nil, nil, err
	}
	return nn, nn.Close, nil
}

// newEngineFactory returns an EngineFactory (bench.EngineFactory's shape)
// closing over one evaluator and config, for use by both the search and
// bench subcommands.
func newEngineFactory(evaluator mcts.Evaluator, cfg *mcts.Config) func(initial mcts.State) *mcts.Engine {
	return func(initial mcts.State) *mcts.Engine {
		return mcts.NewEngine(toygame.Rules{}, evaluator, cfg.Clone(), initial)
	}
}
