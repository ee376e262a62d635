package cache

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"github.com/flanksource/code-intel/models"
)

const (
	// DefaultMaxEntries bounds residency when no explicit capacity is configured.
	DefaultMaxEntries = 10000

	// DefaultTTL is the age after which a cached AST is treated as expired.
	DefaultTTL = time.Hour
)

// Options configures an ASTCache at construction time. The configuration is
// immutable once the cache is built.
type Options struct {
	// MaxEntries is the maximum number of resident entries. Must be positive.
	MaxEntries int

	// MaxBytes optionally bounds the aggregate estimated size of resident
	// values. Zero means unlimited. Must not be negative.
	MaxBytes int64

	// TTL is the uniform time-to-live applied to every entry. Must be positive.
	TTL time.Duration
}

// DefaultOptions returns the options used when callers have no specific
// sizing requirements.
func DefaultOptions() Options {
	return Options{
		MaxEntries: DefaultMaxEntries,
		TTL:        DefaultTTL,
	}
}

func (o Options) validate() error {
	if o.MaxEntries <= 0 {
		return fmt.Errorf("cache: max entries must be positive, got %d", o.MaxEntries)
	}
	if o.TTL <= 0 {
		return fmt.Errorf("cache: ttl must be positive, got %s", o.TTL)
	}
	if o.MaxBytes < 0 {
		return fmt.Errorf("cache: max bytes must not be negative, got %d", o.MaxBytes)
	}
	return nil
}

// entry is one resident cached value plus the bookkeeping the eviction and
// expiration policies need.
type entry struct {
	fp          Fingerprint
	value       any
	size        int64
	insertedAt  time.Time
	lastAccess  time.Time
	accessSeq   uint64
	accessCount int64
}

// ASTCache is an in-memory, content-addressed cache for parsed ASTs with LRU
// eviction and TTL expiration. Values are opaque to the cache; callers store
// whatever their parser produced.
//
// All methods are safe for concurrent use. A single mutex guards each whole
// operation, so entry state, recency order and statistics always move
// together; every operation is O(1) apart from Sweep, Stats and TopAccessed.
type ASTCache struct {
	mu      sync.Mutex
	opts    Options
	entries map[Fingerprint]*list.Element
	order   *list.List // front = most recently used, back = eviction candidate
	stats   statsCollector
	seq     uint64

	// now is swapped out by tests to control expiry.
	now func() time.Time
}

// New builds a cache from the given options. Misconfiguration (non-positive
// capacity or TTL) is fatal here rather than at call time.
func New(opts Options) (*ASTCache, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &ASTCache{
		opts:    opts,
		entries: make(map[Fingerprint]*list.Element),
		order:   list.New(),
		now:     time.Now,
	}, nil
}

// Get returns the value cached for the given content, if any. A miss is a
// normal outcome, not an error: it covers never-cached, invalidated and
// expired content alike. A hit marks the entry most-recently-used.
func (c *ASTCache) Get(content []byte) (any, bool) {
	fp := FingerprintOf(content)

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[fp]
	if !ok {
		c.stats.misses++
		return nil, false
	}

	e := elem.Value.(*entry)
	if c.expired(e) {
		// Lazy cleanup: an expired entry must not keep occupying a capacity
		// slot once a lookup has seen it.
		c.removeElement(elem)
		c.stats.expirations++
		c.stats.misses++
		return nil, false
	}

	c.seq++
	e.accessSeq = c.seq
	e.accessCount++
	e.lastAccess = c.now()
	c.order.MoveToFront(elem)
	c.stats.hits++
	return e.value, true
}

// Put caches a value under the fingerprint of the given content. Overwriting
// an existing fingerprint is treated as a fresh write: insertion time,
// recency and TTL all reset. If the insert pushes the cache past its entry or
// byte limits, least-recently-used entries are evicted until the limits hold
// again; the entry just inserted is never the one evicted.
func (c *ASTCache) Put(content []byte, value any, size int64) {
	fp := FingerprintOf(content)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.seq++

	if elem, ok := c.entries[fp]; ok {
		e := elem.Value.(*entry)
		c.stats.bytes += size - e.size
		e.value = value
		e.size = size
		e.insertedAt = now
		e.lastAccess = now
		e.accessSeq = c.seq
		c.order.MoveToFront(elem)
		c.evictOver(elem)
		return
	}

	e := &entry{
		fp:         fp,
		value:      value,
		size:       size,
		insertedAt: now,
		lastAccess: now,
		accessSeq:  c.seq,
	}
	elem := c.order.PushFront(e)
	c.entries[fp] = elem
	c.stats.bytes += size
	c.evictOver(elem)
}

// Invalidate drops the entry for the given content, if resident. Used when a
// caller knows a cached result is stale for reasons the content hash cannot
// capture, e.g. an external dependency changed. Not counted as an eviction or
// an expiration.
func (c *ASTCache) Invalidate(content []byte) {
	fp := FingerprintOf(content)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[fp]; ok {
		c.removeElement(elem)
	}
}

// InvalidateAll clears every resident entry, e.g. after a parser upgrade
// makes all cached ASTs unusable. Lifetime hit/miss/eviction counters are
// kept; they describe the cache's history, not its current contents.
func (c *ASTCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[Fingerprint]*list.Element)
	c.order.Init()
	c.stats.bytes = 0
}

// Sweep eagerly removes every expired entry and returns how many were
// dropped. Expiry is otherwise handled lazily on Get; Sweep exists for
// callers that want memory back without waiting for lookups to touch the
// stale entries.
func (c *ASTCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		if e := elem.Value.(*entry); c.expired(e) {
			c.removeElement(elem)
			c.stats.expirations++
			removed++
		}
		elem = prev
	}
	return removed
}

// Len returns the current resident entry count.
func (c *ASTCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a consistent snapshot of cache statistics, including the ten
// most accessed resident entries.
func (c *ASTCache) Stats() models.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats.snapshot()
	s.ResidentCount = len(c.entries)
	s.TopAccessed = c.topAccessedLocked(10)
	return s
}

// TopAccessed returns up to n resident entries ordered by cumulative access
// count, ties broken by most recent access.
func (c *ASTCache) TopAccessed(n int) []models.TopEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.topAccessedLocked(n)
}

func (c *ASTCache) expired(e *entry) bool {
	return c.now().Sub(e.insertedAt) > c.opts.TTL
}

// evictOver restores the entry and byte limits by evicting from the back of
// the recency order. keep is the element that triggered the eviction; it is
// exempt so a single oversized insert cannot evict itself.
func (c *ASTCache) evictOver(keep *list.Element) {
	for len(c.entries) > c.opts.MaxEntries || (c.opts.MaxBytes > 0 && c.stats.bytes > c.opts.MaxBytes) {
		elem := c.order.Back()
		if elem == nil || elem == keep {
			return
		}
		c.removeElement(elem)
		c.stats.evictions++
	}
}

func (c *ASTCache) removeElement(elem *list.Element) {
	e := elem.Value.(*entry)
	c.order.Remove(elem)
	delete(c.entries, e.fp)
	c.stats.bytes -= e.size
}
