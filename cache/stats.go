package cache

// Stats is a point-in-time snapshot of the cache counters.
type Stats struct {
	Hits        uint64
	Misses      uint64
	Bytes       int64
	Limit       int64
	Entries     int
	Prefetches  uint64
	StoreReads  uint64
	StoreWrites uint64
	StoreHits   uint64
	StoreMisses uint64
}

// Stats returns a consistent snapshot taken under the cache lock.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Hits:        c.hits,
		Misses:      c.misses,
		Bytes:       c.usedBytes,
		Limit:       c.maxBytes,
		Entries:     c.lru.Len(),
		Prefetches:  c.prefetches,
		StoreReads:  c.storeReads,
		StoreWrites: c.storeWrites,
		StoreHits:   c.storeHits,
		StoreMisses: c.storeMisses,
	}
}
