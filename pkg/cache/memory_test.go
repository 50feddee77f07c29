package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestMemory(size int) (*MemoryCache, *fakeClock) {
	clk := &fakeClock{t: time.Date(2024, 3, 5, 15, 0, 0, 0, time.UTC)}
	mc := NewMemoryCache(WithMemoryMaxSize(size), WithMemoryCleanup(0), WithMemoryClock(clk.now))
	return mc, clk
}

func TestMemoryCacheRoundTripsValues(t *testing.T) {
	ctx := context.Background()
	mc, _ := newTestMemory(10)
	defer mc.Close()

	type payload struct {
		Name  string  `json:"name"`
		Value float64 `json:"value"`
	}
	require.NoError(t, mc.Set(ctx, "p", payload{Name: "dxy", Value: 104.2}, time.Minute))
	require.NoError(t, mc.Set(ctx, "s", "raw", time.Minute))
	require.NoError(t, mc.Set(ctx, "b", []byte{1, 2, 3}, time.Minute))

	var p payload
	require.NoError(t, mc.Get(ctx, "p", &p))
	assert.Equal(t, payload{Name: "dxy", Value: 104.2}, p)

	var s string
	require.NoError(t, mc.Get(ctx, "s", &s))
	assert.Equal(t, "raw", s)

	var b []byte
	require.NoError(t, mc.Get(ctx, "b", &b))
	assert.Equal(t, []byte{1, 2, 3}, b)

	assert.ErrorIs(t, mc.Get(ctx, "missing", &s), ErrCacheMiss)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	mc, clk := newTestMemory(10)
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "k", "v", time.Minute))
	ok, err := mc.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	clk.advance(61 * time.Second)
	var s string
	assert.ErrorIs(t, mc.Get(ctx, "k", &s), ErrCacheMiss)
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc, clk := newTestMemory(2)
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "a", "1", 0))
	clk.advance(time.Second)
	require.NoError(t, mc.Set(ctx, "b", "2", 0))
	clk.advance(time.Second)
	var s string
	require.NoError(t, mc.Get(ctx, "a", &s))
	clk.advance(time.Second)
	require.NoError(t, mc.Set(ctx, "c", "3", 0))

	keys, err := mc.Keys(ctx, "*")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, keys)
}

func TestMemoryCacheKeysAndLocks(t *testing.T) {
	ctx := context.Background()
	mc, clk := newTestMemory(10)
	defer mc.Close()

	for _, k := range []string{"preset:fomc", "preset:cpi", "series:DXY"} {
		require.NoError(t, mc.Set(ctx, k, "x", 0))
	}
	keys, err := mc.Keys(ctx, BuildPattern("preset"))
	require.NoError(t, err)
	assert.Equal(t, []string{"preset:cpi", "preset:fomc"}, keys)

	ok, err := mc.TryLock(ctx, "lock:rename", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = mc.TryLock(ctx, "lock:rename", time.Second)
	assert.False(t, ok)
	clk.advance(2 * time.Second)
	ok, _ = mc.TryLock(ctx, "lock:rename", time.Second)
	assert.True(t, ok)
	require.NoError(t, mc.Unlock(ctx, "lock:rename"))
}

func TestLayeredCacheReadsThrough(t *testing.T) {
	ctx := context.Background()
	remote, _ := newTestMemory(10)
	defer remote.Close()
	lc := NewLayeredCache(remote, WithLayeredMemory(10, time.Minute))
	defer lc.Close()

	require.NoError(t, remote.Set(ctx, "k", map[string]int{"n": 7}, time.Hour))
	var got map[string]int
	require.NoError(t, lc.Get(ctx, "k", &got))
	assert.Equal(t, 7, got["n"])

	require.NoError(t, lc.Delete(ctx, "k"))
	assert.ErrorIs(t, lc.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "series:DXY:42", Key("series", "DXY", 42))
}
