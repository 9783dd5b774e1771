// Package cache implements the in-process object cache that fronts the
// backend store: a byte-bounded LRU keyed by string, with the counters the
// analytics pipeline samples. One instance is request-scoped (the runtime
// cache); a second, memory-limited instance acts as the near-client layer
// when the relay topology is active.
package cache

import (
	"container/list"
	"sync"
)

type entry struct {
	key   string
	value []byte
}

// Cache is a thread-safe, byte-bounded LRU cache.
type Cache struct {
	mu        sync.Mutex
	items     map[string]*list.Element
	lru       *list.List
	maxBytes  int64
	usedBytes int64

	hits       uint64
	misses     uint64
	prefetches uint64

	storeReads  uint64
	storeWrites uint64
	storeHits   uint64
	storeMisses uint64
}

// New creates a cache. maxBytes <= 0 means unbounded.
func New(maxBytes int64) *Cache {
	return &Cache{
		items:    make(map[string]*list.Element),
		lru:      list.New(),
		maxBytes: maxBytes,
	}
}

// Get returns the cached value and whether it was present, counting a hit
// or a miss.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.lru.MoveToFront(el)
	c.hits++
	return el.Value.(*entry).value, true
}

// Set stores a value, evicting least-recently-used entries when over the
// byte limit.
func (c *Cache) Set(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		c.usedBytes += int64(len(value)) - int64(len(e.value))
		e.value = value
		c.lru.MoveToFront(el)
	} else {
		el := c.lru.PushFront(&entry{key: key, value: value})
		c.items[key] = el
		c.usedBytes += int64(len(key) + len(value))
	}

	if c.maxBytes > 0 {
		for c.usedBytes > c.maxBytes && c.lru.Len() > 0 {
			c.evictOldest()
		}
	}
}

// Delete removes a key if present.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
}

// Flush removes all entries. Counters are preserved; they describe the
// request lifecycle, not the working set.
func (c *Cache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.lru.Init()
	c.usedBytes = 0
}

// RecordPrefetch counts keys loaded ahead of demand.
func (c *Cache) RecordPrefetch(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefetches += uint64(n)
}

// RecordStoreRead counts a read against the backend store and whether it hit.
func (c *Cache) RecordStoreRead(hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.storeReads++
	if hit {
		c.storeHits++
	} else {
		c.storeMisses++
	}
}

// RecordStoreWrite counts a write against the backend store.
func (c *Cache) RecordStoreWrite() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.storeWrites++
}

func (c *Cache) evictOldest() {
	el := c.lru.Back()
	if el != nil {
		c.removeElement(el)
	}
}

func (c *Cache) removeElement(el *list.Element) {
	e := el.Value.(*entry)
	c.lru.Remove(el)
	delete(c.items, e.key)
	c.usedBytes -= int64(len(e.key) + len(e.value))
}
