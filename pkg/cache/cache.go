// Package cache provides a bounded, least-recently-used map safe for concurrent use.
package cache

import (
	"sync"

	"github.com/dtnitsch/llm-archive-reader/pkg/faults"
	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// EvictFunc is called with each entry the cache drops, whether by capacity
// pressure or Clear. It runs while the cache lock is held and must not call
// back into the cache.
type EvictFunc[K comparable, V any] func(key K, value V)

// Stats is a point-in-time snapshot of cache counters. Evictions counts
// capacity evictions only.
type Stats struct {
	Size      int
	Capacity  int
	Hits      int64
	Misses    int64
	Evictions int64
}

// Cache holds at most Capacity entries. Get hits and Put both count as a
// touch; the least recently touched entry is evicted first.
type Cache[K comparable, V any] struct {
	mu        sync.Mutex
	lru       *simplelru.LRU[K, V]
	capacity  int
	onEvict   EvictFunc[K, V]
	clearing  bool
	hits      int64
	misses    int64
	evictions int64
}

// New creates a cache holding up to capacity entries. onEvict may be nil.
func New[K comparable, V any](capacity int, onEvict EvictFunc[K, V]) (*Cache[K, V], error) {
	if capacity <= 0 {
		return nil, faults.Config("cache capacity must be positive, got %d", capacity)
	}

	c := &Cache[K, V]{capacity: capacity, onEvict: onEvict}
	lru, err := simplelru.NewLRU[K, V](capacity, c.evicted)
	if err != nil {
		return nil, faults.WrapConfig(err, "failed to create lru")
	}
	c.lru = lru
	return c, nil
}

func (c *Cache[K, V]) evicted(key K, value V) {
	if !c.clearing {
		c.evictions++
	}
	if c.onEvict != nil {
		c.onEvict(key, value)
	}
}

// Get returns the value for key and marks it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.lru.Get(key)
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return v, ok
}

// Put inserts or replaces key and marks it most recently used. Replacing an
// existing key does not invoke the eviction callback for the old value.
func (c *Cache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, value)
}

// Peek returns the value for key without touching its recency or counters.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Peek(key)
}

// Contains reports whether key is cached without touching its recency.
func (c *Cache[K, V]) Contains(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Contains(key)
}

// Keys returns cached keys from least to most recently used.
func (c *Cache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Keys()
}

// Clear drops every entry, invoking the eviction callback for each.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clearing = true
	c.lru.Purge()
	c.clearing = false
}

// Len is the number of cached entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *Cache[K, V]) Capacity() int {
	return c.capacity
}

func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Size:      c.lru.Len(),
		Capacity:  c.capacity,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}
