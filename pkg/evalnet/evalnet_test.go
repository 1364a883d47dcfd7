package evalnet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCacheGetMissOnEmptyCache(t *testing.T) {
	c := newCache(4)
	_, ok := c.get(1)
	require.False(t, ok)
}

func TestCachePutThenGetRoundTrips(t *testing.T) {
	c := newCache(4)
	want := NetResultBytes{Policy: []float32{0.1, 0.9}, WinRate: 0.7}
	c.put(42, want)

	got, ok := c.get(42)
	require.True(t, ok)
	require.Equal(t, want, got)
}

func TestCacheEvictsOldestEntryPastCapacity(t *testing.T) {
	c := newCache(2)
	c.put(1, NetResultBytes{WinRate: 0.1})
	c.put(2, NetResultBytes{WinRate: 0.2})
	c.put(3, NetResultBytes{WinRate: 0.3}) // evicts key 1

	_, ok := c.get(1)
	require.False(t, ok, "oldest entry must be evicted once capacity is exceeded")

	_, ok = c.get(2)
	require.True(t, ok)
	_, ok = c.get(3)
	require.True(t, ok)
}

func TestCacheOverwritingAnExistingKeyDoesNotEvict(t *testing.T) {
	c := newCache(2)
	c.put(1, NetResultBytes{WinRate: 0.1})
	c.put(2, NetResultBytes{WinRate: 0.2})
	c.put(1, NetResultBytes{WinRate: 0.9}) // overwrite, not a new entry

	got, ok := c.get(1)
	require.True(t, ok)
	require.Equal(t, float32(0.9), got.WinRate)

	_, ok = c.get(2)
	require.True(t, ok, "overwriting an existing key must not evict another entry")
}

func TestCacheResizeShrinksAndEvicts(t *testing.T) {
	c := newCache(4)
	c.put(1, NetResultBytes{WinRate: 0.1})
	c.put(2, NetResultBytes{WinRate: 0.2})
	c.put(3, NetResultBytes{WinRate: 0.3})

	c.resize(1)

	_, ok := c.get(1)
	require.False(t, ok)
	_, ok = c.get(2)
	require.False(t, ok)
	got, ok := c.get(3)
	require.True(t, ok, "the most recently inserted entry must survive a shrink")
	require.Equal(t, float32(0.3), got.WinRate)
}

func TestCacheZeroCapacityStillStores(t *testing.T) {
	c := newCache(0)
	c.put(1, NetResultBytes{WinRate: 0.5})

	// put only evicts when capacity > 0, so capacity 0 turns eviction off
	// entirely: the entry lands and stays, and so would any later insert.
	_, ok := c.get(1)
	require.True(t, ok)
}
