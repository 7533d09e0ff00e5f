package prefs

import (
	"container/list"
	"sync"
	"time"
)

// Cache is the bounded key->metadata store consulted before provider
// fan-out. It is an optimization, never a source of truth; writes
// through the injector invalidate it.
type Cache interface {
	// Get returns the cached record if present and not expired. A hit
	// refreshes recency.
	Get(key string) (Metadata, bool)
	// Set inserts or replaces a record. A zero ttl falls back to the
	// cache's default.
	Set(key string, md Metadata, ttl time.Duration)
	// Has reports existence with the same expiry semantics as Get but
	// without refreshing recency. Expired entries are still dropped.
	Has(key string) bool
	// Delete removes a single entry.
	Delete(key string)
	// Clear removes every entry.
	Clear()
	// Len returns the number of live entries, expired or not.
	Len() int
}

const (
	// DefaultCacheTTL applies when neither the cache nor the entry
	// specifies a lifetime.
	DefaultCacheTTL = 5 * time.Minute
	// DefaultCacheMaxEntries bounds the LRU cache when no capacity is
	// configured.
	DefaultCacheMaxEntries = 1000
)

type lruEntry struct {
	key       string
	md        Metadata
	expiresAt time.Time
	element   *list.Element
}

// LRUCache is a mutex-guarded, bounded store with lazy TTL expiry and
// least-recently-used eviction. Expiry is checked on access only; no
// background sweeper runs. Recency order lives in a list whose front is
// the least recently used entry.
type LRUCache struct {
	mu         sync.Mutex
	defaultTTL time.Duration
	maxEntries int
	entries    map[string]*lruEntry
	order      *list.List

	// now is swappable for tests.
	now func() time.Time
}

// NewLRUCache returns a cache bounded to maxEntries with the given
// default TTL. Non-positive arguments fall back to the defaults.
func NewLRUCache(defaultTTL time.Duration, maxEntries int) *LRUCache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultCacheTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultCacheMaxEntries
	}
	return &LRUCache{
		defaultTTL: defaultTTL,
		maxEntries: maxEntries,
		entries:    make(map[string]*lruEntry),
		order:      list.New(),
		now:        time.Now,
	}
}

// Get returns the cached record for key, refreshing its recency.
// Expired entries are deleted and reported as absent.
func (c *LRUCache) Get(key string) (Metadata, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return Metadata{}, false
	}
	if c.now().After(entry.expiresAt) {
		c.remove(entry)
		return Metadata{}, false
	}
	c.order.MoveToBack(entry.element)
	return entry.md.Clone(), true
}

// Set inserts or replaces the record for key. If the key already
// existed its prior recency position is discarded so a key never
// appears twice in the order. At most one eviction happens per call.
func (c *LRUCache) Set(key string, md Metadata, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.entries[key]; ok {
		c.remove(prev)
	}

	entry := &lruEntry{
		key:       key,
		md:        md.Clone(),
		expiresAt: c.now().Add(ttl),
	}
	entry.element = c.order.PushBack(entry)
	c.entries[key] = entry

	if len(c.entries) > c.maxEntries {
		c.evictOldest()
	}
}

// Has reports whether key is cached and fresh. Unlike Get it does not
// refresh recency, but an expired entry is still deleted.
func (c *LRUCache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return false
	}
	if c.now().After(entry.expiresAt) {
		c.remove(entry)
		return false
	}
	return true
}

// Delete removes the entry for key if present.
func (c *LRUCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok {
		c.remove(entry)
	}
}

// Clear removes every entry.
func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*lruEntry)
	c.order.Init()
}

// Len returns the number of live entries.
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *LRUCache) remove(entry *lruEntry) {
	c.order.Remove(entry.element)
	delete(c.entries, entry.key)
}

func (c *LRUCache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	c.remove(front.Value.(*lruEntry))
}

// NoopCache is the drop-in substitute used when caching is disabled:
// every read misses and writes are ignored.
type NoopCache struct{}

func (NoopCache) Get(string) (Metadata, bool)          { return Metadata{}, false }
func (NoopCache) Set(string, Metadata, time.Duration)  {}
func (NoopCache) Has(string) bool                      { return false }
func (NoopCache) Delete(string)                        {}
func (NoopCache) Clear()                               {}
func (NoopCache) Len() int                             { return 0 }
