package metrics

import (
	"github.com/objcache/objcache/cache"
	"github.com/objcache/objcache/utils"
)

// RelayMetrics is a snapshot of the near-client cache layer.
type RelayMetrics struct {
	Hits        uint64  `json:"hits"`
	Misses      uint64  `json:"misses"`
	MemoryUsed  int64   `json:"memory_used"`
	MemoryLimit int64   `json:"memory_limit"`
	MemoryRatio float64 `json:"memory_ratio"`
}

// MeasureRelay builds a snapshot from the cache layer's own counters,
// bypassing the connection's command path so sampling produces no command
// log noise.
func MeasureRelay(layer *cache.Cache) *RelayMetrics {
	stats := layer.Stats()
	return &RelayMetrics{
		Hits:        stats.Hits,
		Misses:      stats.Misses,
		MemoryUsed:  stats.Bytes,
		MemoryLimit: stats.Limit,
		MemoryRatio: utils.Percent(float64(stats.Bytes), float64(stats.Limit)),
	}
}
