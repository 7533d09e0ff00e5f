package reconcile

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"prefs-manager/core/prefs"

	"golang.org/x/sync/singleflight"
)

// SnapshotCache holds a pre-built provider snapshot so repeated
// reconcile runs (e.g. a polled HTTP endpoint) do not hammer every
// backend.
type SnapshotCache struct {
	// States is the snapshot keyed by provider name.
	States map[string]map[string]prefs.Metadata

	// Built is the timestamp when this snapshot was taken.
	Built time.Time

	// TTL is the time-to-live for this snapshot.
	TTL time.Duration
}

// IsExpired returns true if this snapshot has expired based on its TTL.
func (c *SnapshotCache) IsExpired() bool {
	if c.TTL == 0 {
		return true // No caching
	}
	return time.Since(c.Built) > c.TTL
}

// cacheStore holds snapshots keyed by provider set.
type cacheStore struct {
	mu     sync.RWMutex
	caches map[string]*SnapshotCache
	sf     singleflight.Group
}

var globalCacheStore = &cacheStore{
	caches: make(map[string]*SnapshotCache),
}

// cacheKey derives a stable key from the provider set.
func cacheKey(providers []prefs.Provider) string {
	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.Name()
	}
	sort.Strings(names)
	return strings.Join(names, "|")
}

// GetOrBuildSnapshot retrieves a fresh snapshot from the store, or
// builds a new one if it doesn't exist or has expired. Uses
// singleflight to prevent snapshot stampedes. A zero TTL bypasses the
// store entirely.
func GetOrBuildSnapshot(ctx context.Context, providers []prefs.Provider, ttl time.Duration) (map[string]map[string]prefs.Metadata, error) {
	if ttl == 0 {
		return Snapshot(ctx, providers)
	}

	key := cacheKey(providers)

	// Fast path: check if snapshot exists and is fresh
	globalCacheStore.mu.RLock()
	cache, exists := globalCacheStore.caches[key]
	globalCacheStore.mu.RUnlock()

	if exists && !cache.IsExpired() {
		return cache.States, nil
	}

	// Slow path: build using singleflight to prevent stampedes
	result, err, _ := globalCacheStore.sf.Do(key, func() (interface{}, error) {
		// Double-check after acquiring singleflight lock
		globalCacheStore.mu.RLock()
		cache, exists := globalCacheStore.caches[key]
		globalCacheStore.mu.RUnlock()

		if exists && !cache.IsExpired() {
			return cache.States, nil
		}

		states, err := Snapshot(ctx, providers)
		if err != nil {
			return nil, err
		}

		globalCacheStore.mu.Lock()
		globalCacheStore.caches[key] = &SnapshotCache{
			States: states,
			Built:  time.Now(),
			TTL:    ttl,
		}
		globalCacheStore.mu.Unlock()

		return states, nil
	})

	if err != nil {
		return nil, err
	}

	return result.(map[string]map[string]prefs.Metadata), nil
}

// InvalidateSnapshot removes the snapshot for the given provider set.
// This is useful for testing or forcing a rebuild after writes.
func InvalidateSnapshot(providers []prefs.Provider) {
	key := cacheKey(providers)
	globalCacheStore.mu.Lock()
	delete(globalCacheStore.caches, key)
	globalCacheStore.mu.Unlock()
}
