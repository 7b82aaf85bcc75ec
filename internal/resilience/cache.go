package resilience

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Cache is a bounded TTL cache with LRU eviction, shared across sessions so
// identical classifier inputs are not re-billed. Safe for concurrent use.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = least recently used
	maxSize int
	ttl     time.Duration
	now     func() time.Time

	hits   int64
	misses int64
}

type cacheEntry[V any] struct {
	key      string
	value    V
	storedAt time.Time
}

// NewCache creates a cache holding at most maxSize entries, each valid for
// ttl. Non-positive bounds get sane defaults.
func NewCache[V any](maxSize int, ttl time.Duration) *Cache[V] {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache[V]{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached value for key, refreshing its recency. Expired
// entries are removed on access.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.entries[key]
	if !ok {
		c.misses++
		return zero, false
	}
	entry := elem.Value.(*cacheEntry[V])
	if c.now().Sub(entry.storedAt) > c.ttl {
		c.removeLocked(elem)
		c.misses++
		return zero, false
	}
	c.order.MoveToBack(elem)
	c.hits++
	return entry.value, true
}

// Set stores value under key, evicting the least recently used entry when
// the cache is full.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*cacheEntry[V])
		entry.value = value
		entry.storedAt = c.now()
		c.order.MoveToBack(elem)
		return
	}

	for c.order.Len() >= c.maxSize {
		c.removeLocked(c.order.Front())
	}
	elem := c.order.PushBack(&cacheEntry[V]{key: key, value: value, storedAt: c.now()})
	c.entries[key] = elem
}

// Len returns the number of live entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Clear drops every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// Stats returns lifetime hit/miss counters.
func (c *Cache[V]) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *Cache[V]) removeLocked(elem *list.Element) {
	entry := elem.Value.(*cacheEntry[V])
	delete(c.entries, entry.key)
	c.order.Remove(elem)
}

// CacheKey derives a stable cache key from the given parts.
func CacheKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
