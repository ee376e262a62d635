package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCache(t *testing.T, opts Options) (*ASTCache, *fakeClock) {
	t.Helper()
	c, err := New(opts)
	require.NoError(t, err)

	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	c.now = clock.Now
	return c, clock
}

func TestNew_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"zero max entries", Options{MaxEntries: 0, TTL: time.Hour}},
		{"negative max entries", Options{MaxEntries: -1, TTL: time.Hour}},
		{"zero ttl", Options{MaxEntries: 10, TTL: 0}},
		{"negative ttl", Options{MaxEntries: 10, TTL: -time.Second}},
		{"negative max bytes", Options{MaxEntries: 10, TTL: time.Hour, MaxBytes: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.opts)
			assert.Error(t, err)
			assert.Nil(t, c)
		})
	}
}

func TestNew_DefaultOptions(t *testing.T) {
	c, err := New(DefaultOptions())
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestCache_RoundTrip(t *testing.T) {
	c, _ := newTestCache(t, DefaultOptions())

	content := []byte("package main\nfunc main() {}\n")

	_, ok := c.Get(content)
	assert.False(t, ok, "get before put must miss")

	c.Put(content, "parsed-ast", 100)

	got, ok := c.Get(content)
	require.True(t, ok)
	assert.Equal(t, "parsed-ast", got)
}

func TestCache_EmptyContentIsValidKey(t *testing.T) {
	c, _ := newTestCache(t, DefaultOptions())

	c.Put([]byte{}, "empty-ast", 1)
	c.Put([]byte("x"), "x-ast", 1)

	got, ok := c.Get([]byte{})
	require.True(t, ok)
	assert.Equal(t, "empty-ast", got)

	got, ok = c.Get([]byte("x"))
	require.True(t, ok)
	assert.Equal(t, "x-ast", got)
}

func TestCache_IdentityIsContentBased(t *testing.T) {
	c, _ := newTestCache(t, DefaultOptions())

	// Identical content from two "files" shares one entry.
	contentA := []byte("shared source")
	contentB := []byte("shared source")

	c.Put(contentA, "ast", 10)
	assert.Equal(t, 1, c.Len())

	got, ok := c.Get(contentB)
	require.True(t, ok)
	assert.Equal(t, "ast", got)

	c.Put(contentB, "ast2", 10)
	assert.Equal(t, 1, c.Len(), "overwrite must not create a second entry")

	got, _ = c.Get(contentA)
	assert.Equal(t, "ast2", got)
}

func TestCache_LRUEviction(t *testing.T) {
	c, _ := newTestCache(t, Options{MaxEntries: 2, TTL: time.Hour})

	c.Put([]byte("a"), "A", 1)
	c.Put([]byte("b"), "B", 1)
	c.Put([]byte("c"), "C", 1)

	_, ok := c.Get([]byte("a"))
	assert.False(t, ok, "a was least recently used and must be evicted")

	got, ok := c.Get([]byte("b"))
	require.True(t, ok)
	assert.Equal(t, "B", got)

	got, ok = c.Get([]byte("c"))
	require.True(t, ok)
	assert.Equal(t, "C", got)

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestCache_GetRefreshesRecency(t *testing.T) {
	c, _ := newTestCache(t, Options{MaxEntries: 2, TTL: time.Hour})

	c.Put([]byte("a"), "A", 1)
	c.Put([]byte("b"), "B", 1)

	_, ok := c.Get([]byte("a"))
	require.True(t, ok)

	c.Put([]byte("c"), "C", 1)

	_, ok = c.Get([]byte("b"))
	assert.False(t, ok, "b must be evicted because a was freshly accessed")

	got, ok := c.Get([]byte("a"))
	require.True(t, ok)
	assert.Equal(t, "A", got)

	got, ok = c.Get([]byte("c"))
	require.True(t, ok)
	assert.Equal(t, "C", got)
}

func TestCache_EvictionTieBreakIsInsertionOrder(t *testing.T) {
	c, _ := newTestCache(t, Options{MaxEntries: 3, TTL: time.Hour})

	// Bulk insert with no intervening access: eviction must take the oldest
	// inserted entry first.
	c.Put([]byte("first"), 1, 1)
	c.Put([]byte("second"), 2, 1)
	c.Put([]byte("third"), 3, 1)
	c.Put([]byte("fourth"), 4, 1)

	_, ok := c.Get([]byte("first"))
	assert.False(t, ok)
	_, ok = c.Get([]byte("second"))
	assert.True(t, ok)

	c.Put([]byte("fifth"), 5, 1)
	_, ok = c.Get([]byte("third"))
	assert.False(t, ok, "third is the oldest unaccessed entry")
}

func TestCache_TTLExpiry(t *testing.T) {
	c, clock := newTestCache(t, Options{MaxEntries: 10, TTL: time.Second})

	c.Put([]byte("x"), "X", 1)

	clock.Advance(500 * time.Millisecond)
	got, ok := c.Get([]byte("x"))
	require.True(t, ok)
	assert.Equal(t, "X", got)

	clock.Advance(time.Second)
	_, ok = c.Get([]byte("x"))
	assert.False(t, ok, "entry past TTL must read as a miss")

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Expirations)
	assert.Equal(t, 0, stats.ResidentCount, "expired entry must not stay resident after lookup")
}

func TestCache_GetDoesNotExtendTTL(t *testing.T) {
	c, clock := newTestCache(t, Options{MaxEntries: 10, TTL: time.Second})

	c.Put([]byte("x"), "X", 1)

	// Repeated hits refresh recency, never the insertion time.
	clock.Advance(700 * time.Millisecond)
	_, ok := c.Get([]byte("x"))
	require.True(t, ok)

	clock.Advance(700 * time.Millisecond)
	_, ok = c.Get([]byte("x"))
	assert.False(t, ok)
}

func TestCache_OverwriteResetsTTL(t *testing.T) {
	c, clock := newTestCache(t, Options{MaxEntries: 10, TTL: time.Second})

	c.Put([]byte("x"), "old", 1)
	clock.Advance(800 * time.Millisecond)

	c.Put([]byte("x"), "new", 1)
	clock.Advance(800 * time.Millisecond)

	got, ok := c.Get([]byte("x"))
	require.True(t, ok, "overwrite is a fresh write and must reset the TTL")
	assert.Equal(t, "new", got)
}

func TestCache_Sweep(t *testing.T) {
	c, clock := newTestCache(t, Options{MaxEntries: 10, TTL: time.Second})

	c.Put([]byte("a"), "A", 1)
	c.Put([]byte("b"), "B", 1)
	clock.Advance(2 * time.Second)
	c.Put([]byte("c"), "C", 1)

	removed := c.Sweep()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, c.Len())

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Expirations)
	assert.Equal(t, int64(0), stats.Misses, "sweep must not count misses")

	_, ok := c.Get([]byte("c"))
	assert.True(t, ok)
}

func TestCache_Invalidate(t *testing.T) {
	c, _ := newTestCache(t, DefaultOptions())

	c.Put([]byte("a"), "A", 1)
	c.Invalidate([]byte("a"))

	_, ok := c.Get([]byte("a"))
	assert.False(t, ok)

	// Removing an absent key is a no-op.
	c.Invalidate([]byte("never-stored"))

	stats := c.Stats()
	assert.Equal(t, int64(0), stats.Evictions, "invalidation is not an eviction")
	assert.Equal(t, int64(0), stats.Expirations)
}

func TestCache_InvalidateAll(t *testing.T) {
	c, _ := newTestCache(t, DefaultOptions())

	c.Put([]byte("a"), "A", 10)
	c.Put([]byte("b"), "B", 10)
	_, _ = c.Get([]byte("a"))
	_, _ = c.Get([]byte("missing"))

	c.InvalidateAll()

	stats := c.Stats()
	assert.Equal(t, 0, stats.ResidentCount)
	assert.Equal(t, int64(0), stats.EstimatedBytes)
	assert.Equal(t, int64(1), stats.Hits, "lifetime counters survive a clear")
	assert.Equal(t, int64(1), stats.Misses)

	_, ok := c.Get([]byte("a"))
	assert.False(t, ok)
	_, ok = c.Get([]byte("b"))
	assert.False(t, ok)
}

func TestCache_HitRate(t *testing.T) {
	c, _ := newTestCache(t, DefaultOptions())

	assert.Zero(t, c.Stats().HitRate, "hit rate is zero before any lookup")

	c.Put([]byte("a"), "A", 1)
	_, _ = c.Get([]byte("a"))
	_, _ = c.Get([]byte("a"))
	_, _ = c.Get([]byte("missing"))
	_, _ = c.Get([]byte("also-missing"))

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9)
}

func TestCache_ByteAccounting(t *testing.T) {
	c, _ := newTestCache(t, DefaultOptions())

	c.Put([]byte("a"), "A", 100)
	c.Put([]byte("b"), "B", 50)
	assert.Equal(t, int64(150), c.Stats().EstimatedBytes)

	// Overwrite adjusts by the delta, not the sum.
	c.Put([]byte("a"), "A2", 80)
	assert.Equal(t, int64(130), c.Stats().EstimatedBytes)

	c.Invalidate([]byte("b"))
	assert.Equal(t, int64(80), c.Stats().EstimatedBytes)
}

func TestCache_MaxBytesEviction(t *testing.T) {
	c, _ := newTestCache(t, Options{MaxEntries: 100, MaxBytes: 100, TTL: time.Hour})

	c.Put([]byte("a"), "A", 60)
	c.Put([]byte("b"), "B", 60)

	assert.Equal(t, 1, c.Len(), "byte limit must evict the LRU entry")
	_, ok := c.Get([]byte("b"))
	assert.True(t, ok)
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestCache_OversizedEntryIsNotSelfEvicted(t *testing.T) {
	c, _ := newTestCache(t, Options{MaxEntries: 100, MaxBytes: 100, TTL: time.Hour})

	c.Put([]byte("huge"), "H", 500)

	// The entry just inserted is never the eviction victim, even when it
	// alone exceeds the byte limit.
	got, ok := c.Get([]byte("huge"))
	require.True(t, ok)
	assert.Equal(t, "H", got)
}

func TestCache_TopAccessed(t *testing.T) {
	c, _ := newTestCache(t, DefaultOptions())

	c.Put([]byte("hot"), "H", 1)
	c.Put([]byte("warm"), "W", 1)
	c.Put([]byte("cold"), "C", 1)

	for i := 0; i < 5; i++ {
		_, _ = c.Get([]byte("hot"))
	}
	for i := 0; i < 2; i++ {
		_, _ = c.Get([]byte("warm"))
	}

	top := c.TopAccessed(2)
	require.Len(t, top, 2)
	assert.Equal(t, FingerprintOf([]byte("hot")).String(), top[0].Fingerprint)
	assert.Equal(t, int64(5), top[0].AccessCount)
	assert.Equal(t, FingerprintOf([]byte("warm")).String(), top[1].Fingerprint)

	assert.Empty(t, c.TopAccessed(0))
}

func TestCache_TopAccessedTieBreaksByRecency(t *testing.T) {
	c, _ := newTestCache(t, DefaultOptions())

	c.Put([]byte("a"), "A", 1)
	c.Put([]byte("b"), "B", 1)

	_, _ = c.Get([]byte("a"))
	_, _ = c.Get([]byte("b"))

	// Equal counts: b was touched last, so it ranks first.
	top := c.TopAccessed(2)
	require.Len(t, top, 2)
	assert.Equal(t, FingerprintOf([]byte("b")).String(), top[0].Fingerprint)
	assert.Equal(t, FingerprintOf([]byte("a")).String(), top[1].Fingerprint)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	const (
		workers  = 16
		rounds   = 200
		keys     = 32
		capacity = 16
	)

	c, _ := newTestCache(t, Options{MaxEntries: capacity, TTL: time.Hour})

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				content := []byte(fmt.Sprintf("file-%d", (w+r)%keys))
				if r%3 == 0 {
					c.Put(content, r, 10)
				} else {
					_, _ = c.Get(content)
				}
			}
		}(w)
	}
	wg.Wait()

	stats := c.Stats()
	var gets int64
	for w := 0; w < workers; w++ {
		for r := 0; r < rounds; r++ {
			if r%3 != 0 {
				gets++
			}
		}
	}
	assert.Equal(t, gets, stats.Hits+stats.Misses, "no lost or duplicated lookup counts")
	assert.LessOrEqual(t, stats.ResidentCount, capacity, "capacity invariant must hold under contention")
	assert.Equal(t, c.Len(), stats.ResidentCount)
}
