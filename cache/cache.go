package cache

import (
	"container/list"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/ragkit/core"
)

// Config holds construction-time settings for a ResultCache.
// The TTL is fixed per cache, not per entry.
type Config struct {
	// MaxSize is the entry capacity. Inserting into a full cache evicts the
	// least-recently-used entry.
	MaxSize int

	// TTL is the entry lifetime. An entry older than TTL is never returned
	// as a hit; it is treated as absent and evicted lazily on next access.
	TTL time.Duration
}

// DefaultConfig returns the default cache configuration: 1000 entries with a
// one hour TTL.
func DefaultConfig() Config {
	return Config{
		MaxSize: 1000,
		TTL:     time.Hour,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.MaxSize <= 0 {
		return ErrInvalidMaxSize
	}
	if c.TTL <= 0 {
		return ErrInvalidTTL
	}
	return nil
}

// Stats is a snapshot of the cache's running counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Size      int
	MaxSize   int
	HitRate   float64 // hits / (hits + misses); 0 when no requests were made
}

// entry is the cache's internal bookkeeping per fingerprint. The preimage is
// the canonical request string the fingerprint was hashed from; a mismatch on
// lookup means a fingerprint collision and the entry is discarded.
type entry struct {
	fingerprint    core.Fingerprint
	preimage       string
	collection     string
	value          *core.CachedResult
	createdAt      time.Time
	lastAccessedAt time.Time
	hitCount       uint64
}

// ResultCache is a capacity-bounded LRU cache with a fixed TTL, keyed by
// query fingerprints. It gates repeated search and fusion work for identical
// requests. All methods are safe for concurrent use; every operation is
// serialized by a single internal mutex and completes in O(1) amortized time
// apart from Invalidate, which scans all entries.
type ResultCache struct {
	mu        sync.Mutex
	config    Config
	entries   map[core.Fingerprint]*list.Element // values are *entry elements of order
	order     *list.List                         // front = most recently used
	hits      uint64
	misses    uint64
	evictions uint64
	now       func() time.Time // overridable in tests
	logger    *slog.Logger
}

// Option configures a ResultCache.
type Option func(*ResultCache)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *ResultCache) {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
	}
}

// NewResultCache creates a cache with the given configuration.
func NewResultCache(config Config, opts ...Option) (*ResultCache, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &ResultCache{
		config:  config,
		entries: make(map[core.Fingerprint]*list.Element),
		order:   list.New(),
		now:     time.Now,
		logger:  slog.Default().With("component", "result-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get returns the cached value for the fingerprint, if present and fresh.
// The preimage must be the canonical request string the fingerprint was
// computed from; a stored entry whose preimage differs is a hash collision
// and is evicted as if absent. Hits refresh the entry's LRU recency.
func (c *ResultCache) Get(fp core.Fingerprint, preimage string) (*core.CachedResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[fp]
	if !ok {
		c.misses++
		return nil, false
	}
	ent := elem.Value.(*entry)

	// Fingerprint collision: the cached value belongs to a different
	// request. Never surfaced to the caller; downgraded to a miss.
	if ent.preimage != preimage {
		c.logger.Warn("fingerprint collision, evicting entry", "fingerprint", uint64(fp))
		c.removeLocked(elem)
		c.evictions++
		c.misses++
		return nil, false
	}

	now := c.now()
	if now.Sub(ent.createdAt) >= c.config.TTL {
		c.removeLocked(elem)
		c.evictions++
		c.misses++
		return nil, false
	}

	c.order.MoveToFront(elem)
	ent.lastAccessedAt = now
	ent.hitCount++
	c.hits++
	return ent.value, true
}

// Put stores a value for the fingerprint, evicting the least-recently-used
// entry when the cache is full. An existing entry for the same fingerprint
// is replaced and its TTL restarts.
func (c *ResultCache) Put(fp core.Fingerprint, preimage, collection string, value *core.CachedResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if elem, ok := c.entries[fp]; ok {
		ent := elem.Value.(*entry)
		ent.preimage = preimage
		ent.collection = collection
		ent.value = value
		ent.createdAt = now
		ent.lastAccessedAt = now
		c.order.MoveToFront(elem)
		return
	}

	for len(c.entries) >= c.config.MaxSize {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest)
		c.evictions++
	}

	ent := &entry{
		fingerprint:    fp,
		preimage:       preimage,
		collection:     collection,
		value:          value,
		createdAt:      now,
		lastAccessedAt: now,
	}
	c.entries[fp] = c.order.PushFront(ent)
}

// Invalidate removes all entries associated with the collection. The cache
// has no knowledge of document versions; the ingestion pipeline calls this
// whenever a collection's documents change.
func (c *ResultCache) Invalidate(collection string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()
		if elem.Value.(*entry).collection == collection {
			c.removeLocked(elem)
			removed++
		}
		elem = next
	}
	if removed > 0 {
		c.logger.Debug("cache invalidated", "collection", collection, "removed", removed)
	}
	return removed
}

// Clear removes every entry. Statistics are unaffected; use ResetStats.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[core.Fingerprint]*list.Element)
	c.order.Init()
}

// Len returns the number of live entries.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the running counters.
func (c *ResultCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      len(c.entries),
		MaxSize:   c.config.MaxSize,
		HitRate:   hitRate,
	}
}

// ResetStats zeroes the running counters. Independent of Clear.
func (c *ResultCache) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hits = 0
	c.misses = 0
	c.evictions = 0
}

// removeLocked unlinks an element from both the map and the LRU list.
// Callers must hold the mutex.
func (c *ResultCache) removeLocked(elem *list.Element) {
	ent := elem.Value.(*entry)
	delete(c.entries, ent.fingerprint)
	c.order.Remove(elem)
}
