package thumbcache

import (
	"fmt"
	"slices"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"upscale-viewer/internal/metrics"
)

// Loader produces the value for a key on a miss.
type Loader[V any] func(key string) (V, error)

// LRU is a bounded map from key to V. On a miss Get loads the value
// synchronously, inserts it and, if the cache is then over capacity, evicts
// the least recently used entry. Len never exceeds the configured size once
// Get returns.
type LRU[V any] struct {
	maxSize int
	load    Loader[V]
	cache   *lru.Cache[string, V]

	// mu serializes inserts and Clear so the evict callback can tell a
	// capacity eviction from a purge. Hits do not take it.
	mu      sync.Mutex
	purging bool
}

// New returns an empty LRU holding at most maxSize entries.
func New[V any](maxSize int, load Loader[V]) (*LRU[V], error) {
	if maxSize < 1 {
		return nil, fmt.Errorf("lru size must be at least 1, got %d", maxSize)
	}
	if load == nil {
		return nil, fmt.Errorf("lru loader must not be nil")
	}
	c := &LRU[V]{maxSize: maxSize, load: load}
	cache, err := lru.NewWithEvict[string, V](maxSize, c.evicted)
	if err != nil {
		return nil, err
	}
	c.cache = cache
	return c, nil
}

// evicted runs inside Add or Purge, on the goroutine holding c.mu.
func (c *LRU[V]) evicted(string, V) {
	metrics.ThumbnailCacheEntries.Dec()
	if !c.purging {
		metrics.ThumbnailCacheEvictions.Inc()
	}
}

// Get returns the value for key, loading it on a miss. A hit marks the key
// most recently used. Loader errors are returned and nothing is inserted.
func (c *LRU[V]) Get(key string) (V, error) {
	if v, ok := c.cache.Get(key); ok {
		metrics.ThumbnailCacheRequests.WithLabelValues("hit").Inc()
		return v, nil
	}

	// Load outside any lock so other keys stay available.
	v, err := c.load(key)
	if err != nil {
		metrics.ThumbnailCacheRequests.WithLabelValues("error").Inc()
		var zero V
		return zero, err
	}
	metrics.ThumbnailCacheRequests.WithLabelValues("miss").Inc()

	c.mu.Lock()
	defer c.mu.Unlock()

	// A concurrent Get may have inserted key while we were loading.
	if found, _ := c.cache.ContainsOrAdd(key, v); found {
		if existing, ok := c.cache.Get(key); ok {
			return existing, nil
		}
		return v, nil
	}
	metrics.ThumbnailCacheEntries.Inc()
	return v, nil
}

// Contains reports whether key is cached without touching its recency.
func (c *LRU[V]) Contains(key string) bool {
	return c.cache.Contains(key)
}

// Keys returns the cached keys, most recently used first.
func (c *LRU[V]) Keys() []string {
	keys := c.cache.Keys()
	slices.Reverse(keys)
	return keys
}

// Len returns the number of cached entries.
func (c *LRU[V]) Len() int { return c.cache.Len() }

// MaxSize returns the capacity.
func (c *LRU[V]) MaxSize() int { return c.maxSize }

// Clear drops every entry.
func (c *LRU[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.purging = true
	c.cache.Purge()
	c.purging = false
}
