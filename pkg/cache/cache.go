// Package cache provides a size bounded, expiring response cache used to
// avoid repeating identical provider lookups.
package cache

import (
	"time"

	"github.com/NERVsystems/ecoroute/pkg/monitoring"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// TTLCache is a thread-safe LRU cache whose entries expire after a fixed TTL.
// Hits, misses and size are reported under the cache's name.
type TTLCache[K comparable, V any] struct {
	name string
	lru  *expirable.LRU[K, V]
}

// New creates a cache holding at most maxItems entries for ttl each.
// A zero ttl disables expiry.
func New[K comparable, V any](name string, maxItems int, ttl time.Duration) *TTLCache[K, V] {
	return &TTLCache[K, V]{
		name: name,
		lru:  expirable.NewLRU[K, V](maxItems, nil, ttl),
	}
}

// Get returns the cached value for key, if present and not expired.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	v, ok := c.lru.Get(key)
	if ok {
		monitoring.RecordCacheHit(c.name)
	} else {
		monitoring.RecordCacheMiss(c.name)
	}
	return v, ok
}

// Set stores value under key, evicting the least recently used entry when full.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.lru.Add(key, value)
	monitoring.UpdateCacheSize(c.name, c.lru.Len())
}

// Delete removes key from the cache
func (c *TTLCache[K, V]) Delete(key K) {
	c.lru.Remove(key)
}

// Count returns the number of unexpired items in the cache
func (c *TTLCache[K, V]) Count() int {
	return c.lru.Len()
}

// Clear removes all items from the cache
func (c *TTLCache[K, V]) Clear() {
	c.lru.Purge()
	monitoring.UpdateCacheSize(c.name, 0)
}
