package metrics

import (
	"time"

	"github.com/objcache/objcache/cache"
	"github.com/objcache/objcache/connection"
	"github.com/objcache/objcache/utils"
)

// RuntimeMetrics is a snapshot of the embedding application's own
// request-local cache bookkeeping plus the connection's I/O-wait
// aggregates. TotalMs, CacheMedianMs and CacheRatio are nil when their
// inputs are unavailable; absence propagates downstream instead of being
// coerced to zero.
type RuntimeMetrics struct {
	Hits        uint64  `json:"hits"`
	Misses      uint64  `json:"misses"`
	HitRatio    float64 `json:"hit_ratio"`
	Bytes       int64   `json:"bytes"`
	Prefetches  uint64  `json:"prefetches"`
	StoreReads  uint64  `json:"store_reads"`
	StoreWrites uint64  `json:"store_writes"`
	StoreHits   uint64  `json:"store_hits"`
	StoreMisses uint64  `json:"store_misses"`

	CacheMs       float64  `json:"cache_ms"`
	CacheMedianMs *float64 `json:"cache_median_ms,omitempty"`
	TotalMs       *float64 `json:"total_ms,omitempty"`
	CacheRatio    *float64 `json:"cache_ratio,omitempty"`
}

// MeasureRuntime builds a snapshot from the runtime cache counters and the
// connection's latency sequence. requestStart is the embedding host's
// request-begin timestamp; nil leaves total time and the cache-time ratio
// absent.
func MeasureRuntime(runtime *cache.Cache, conn *connection.Connection, requestStart *time.Time) *RuntimeMetrics {
	stats := runtime.Stats()

	m := &RuntimeMetrics{
		Hits:        stats.Hits,
		Misses:      stats.Misses,
		HitRatio:    HitRatio(stats.Hits, stats.Misses),
		Bytes:       stats.Bytes,
		Prefetches:  stats.Prefetches,
		StoreReads:  stats.StoreReads,
		StoreWrites: stats.StoreWrites,
		StoreHits:   stats.StoreHits,
		StoreMisses: stats.StoreMisses,
	}

	if conn != nil {
		m.CacheMs = utils.Round2(conn.IOWaitSum() * 1000)
		if median, ok := conn.IOWaitMedian(); ok {
			v := utils.Round2(median * 1000)
			m.CacheMedianMs = &v
		}
	}

	if requestStart != nil {
		total := utils.Round2(float64(time.Since(*requestStart).Microseconds()) / 1000)
		m.TotalMs = &total
		ratio := utils.Percent(m.CacheMs, m.CacheMs+total)
		m.CacheRatio = &ratio
	}

	return m
}
