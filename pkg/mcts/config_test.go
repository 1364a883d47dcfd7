package mcts

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigWithMaxCacheBytesRejectsTooSmall(t *testing.T) {
	cfg := DefaultConfig()
	_, err := cfg.WithMaxCacheBytes(1024)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInfeasibleConfig))
}

func TestConfigWithMaxCacheBytesAcceptsReasonableSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg, err := cfg.WithMaxCacheBytes(1 << 20)
	require.NoError(t, err)
	require.Equal(t, int64(1<<20), cfg.MaxCacheBytes)
}

func TestConfigCloneIsIndependent(t *testing.T) {
	cfg := DefaultConfig()
	clone := cfg.Clone()
	clone.WithPUCTConst(99)

	require.NotEqual(t, cfg.PUCTConst, clone.PUCTConst)
}

func TestConfigWithThreadsClampsToOne(t *testing.T) {
	cfg := DefaultConfig().WithThreads(0)
	require.Equal(t, 1, cfg.NumThreads)
}
