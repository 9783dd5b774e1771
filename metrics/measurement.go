package metrics

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/objcache/objcache/logging/logger"
	"github.com/objcache/objcache/nanoid"
)

// HostEnv overrides the OS hostname when present, for container/dyno-based
// hosting where the dyno name identifies the origin better than the kernel
// hostname.
const HostEnv = "DYNO"

// Measurement is one timestamped sample bundling the three metric
// snapshots plus request context. Runtime is always populated; Store and
// Relay are present only when the sampling throttle admitted a full sample.
type Measurement struct {
	ID        string  `json:"id"`
	Timestamp float64 `json:"timestamp"`
	Host      string  `json:"host"`
	Path      string  `json:"path,omitempty"`

	Runtime *RuntimeMetrics `json:"runtime"`
	Store   *StoreMetrics   `json:"store,omitempty"`
	Relay   *RelayMetrics   `json:"relay,omitempty"`
}

// NewMeasurement creates a sample with a fresh identifier, a sub-second
// timestamp and the resolved origin host.
func NewMeasurement(runtime *RuntimeMetrics, path string) *Measurement {
	return &Measurement{
		ID:        nanoid.MeasurementID(),
		Timestamp: Now(),
		Host:      hostname(),
		Path:      path,
		Runtime:   runtime,
	}
}

// Now returns the current Unix time as a float with microsecond precision.
func Now() float64 {
	return float64(time.Now().UnixMicro()) / 1e6
}

func hostname() string {
	if dyno := os.Getenv(HostEnv); dyno != "" {
		return dyno
	}
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return host
}

// Get resolves a metric value by path, such as "store->hits" or
// "runtime->cache_ms". The boolean is false for values absent from this
// sample. Unknown paths are reported loudly at warning level rather than
// silently returning nothing.
func (m *Measurement) Get(path string) (float64, bool) {
	group, field, ok := strings.Cut(path, "->")
	if !ok {
		switch path {
		case "timestamp":
			return m.Timestamp, true
		}
		logger.WithFields(logger.Fields{"path": path}).Warn("unknown metric path")
		return 0, false
	}

	switch group {
	case "store":
		return m.storeField(field)
	case "relay":
		return m.relayField(field)
	case "runtime":
		return m.runtimeField(field)
	}

	logger.WithFields(logger.Fields{"path": path}).Warn("unknown metric group")
	return 0, false
}

func (m *Measurement) storeField(field string) (float64, bool) {
	if m.Store == nil {
		if !knownStoreField(field) {
			logger.WithFields(logger.Fields{"path": "store->" + field}).Warn("unknown metric path")
		}
		return 0, false
	}
	s := m.Store
	switch field {
	case "hits":
		return float64(s.Hits), true
	case "misses":
		return float64(s.Misses), true
	case "hit_ratio":
		return s.HitRatio, true
	case "ops_per_sec":
		return float64(s.OpsPerSec), true
	case "evictions":
		return float64(s.Evictions), true
	case "used_memory":
		return float64(s.UsedMemory), true
	case "used_memory_rss":
		return float64(s.UsedMemoryRSS), true
	case "memory_fragmentation":
		return s.MemoryFragmentation, true
	case "memory_ratio":
		return s.MemoryRatio, true
	case "max_memory":
		return float64(s.MaxMemory), true
	case "connected_clients":
		return float64(s.ConnectedClients), true
	case "tracking_clients":
		return float64(s.TrackingClients), true
	case "rejected_connections":
		return float64(s.RejectedConnections), true
	case "keys":
		return float64(s.Keys), true
	}
	logger.WithFields(logger.Fields{"path": "store->" + field}).Warn("unknown metric path")
	return 0, false
}

func knownStoreField(field string) bool {
	switch field {
	case "hits", "misses", "hit_ratio", "ops_per_sec", "evictions", "used_memory",
		"used_memory_rss", "memory_fragmentation", "memory_ratio", "max_memory",
		"connected_clients", "tracking_clients", "rejected_connections", "keys":
		return true
	}
	return false
}

func (m *Measurement) relayField(field string) (float64, bool) {
	if m.Relay == nil {
		if !knownRelayField(field) {
			logger.WithFields(logger.Fields{"path": "relay->" + field}).Warn("unknown metric path")
		}
		return 0, false
	}
	r := m.Relay
	switch field {
	case "hits":
		return float64(r.Hits), true
	case "misses":
		return float64(r.Misses), true
	case "memory_used":
		return float64(r.MemoryUsed), true
	case "memory_limit":
		return float64(r.MemoryLimit), true
	case "memory_ratio":
		return r.MemoryRatio, true
	}
	logger.WithFields(logger.Fields{"path": "relay->" + field}).Warn("unknown metric path")
	return 0, false
}

func knownRelayField(field string) bool {
	switch field {
	case "hits", "misses", "memory_used", "memory_limit", "memory_ratio":
		return true
	}
	return false
}

func (m *Measurement) runtimeField(field string) (float64, bool) {
	if m.Runtime == nil {
		return 0, false
	}
	r := m.Runtime
	switch field {
	case "hits":
		return float64(r.Hits), true
	case "misses":
		return float64(r.Misses), true
	case "hit_ratio":
		return r.HitRatio, true
	case "bytes":
		return float64(r.Bytes), true
	case "prefetches":
		return float64(r.Prefetches), true
	case "store_reads":
		return float64(r.StoreReads), true
	case "store_writes":
		return float64(r.StoreWrites), true
	case "store_hits":
		return float64(r.StoreHits), true
	case "store_misses":
		return float64(r.StoreMisses), true
	case "cache_ms":
		return r.CacheMs, true
	case "cache_median_ms":
		if r.CacheMedianMs == nil {
			return 0, false
		}
		return *r.CacheMedianMs, true
	case "total_ms":
		if r.TotalMs == nil {
			return 0, false
		}
		return *r.TotalMs, true
	case "cache_ratio":
		if r.CacheRatio == nil {
			return 0, false
		}
		return *r.CacheRatio, true
	}
	logger.WithFields(logger.Fields{"path": "runtime->" + field}).Warn("unknown metric path")
	return 0, false
}

// FormatRFC3339 renders the timestamp per the RFC 3339 local profile with
// the fractional-second component injected after the integer seconds, so
// sub-second precision survives in the human-readable form.
func (m *Measurement) FormatRFC3339() string {
	sec := int64(m.Timestamp)
	frac := m.Timestamp - float64(sec)

	base := time.Unix(sec, 0).Format(time.RFC3339)
	if frac <= 0 {
		return base
	}
	// "2006-01-02T15:04:05" is 19 characters; the offset follows.
	fracStr := strconv.FormatFloat(frac, 'f', 6, 64)[1:]
	return base[:19] + fracStr + base[19:]
}
