// Package metrics builds immutable metric snapshots from the backend store,
// the near-client cache layer and the runtime cache, bundles them into
// timestamped measurements, and persists those into a sorted time series on
// the backend itself.
package metrics

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/objcache/objcache/connection"
	"github.com/objcache/objcache/utils"
)

// StoreMetrics is a snapshot of the backend server's own statistics, read
// from its info interface.
type StoreMetrics struct {
	Hits                uint64  `json:"hits"`
	Misses              uint64  `json:"misses"`
	HitRatio            float64 `json:"hit_ratio"`
	OpsPerSec           int64   `json:"ops_per_sec"`
	Evictions           int64   `json:"evictions"`
	UsedMemory          int64   `json:"used_memory"`
	UsedMemoryRSS       int64   `json:"used_memory_rss"`
	MemoryFragmentation float64 `json:"memory_fragmentation"`
	MemoryRatio         float64 `json:"memory_ratio"`
	MaxMemory           int64   `json:"max_memory"`
	ConnectedClients    int64   `json:"connected_clients"`
	TrackingClients     int64   `json:"tracking_clients"`
	RejectedConnections int64   `json:"rejected_connections"`
	Keys                int64   `json:"keys"`
}

// MeasureStore builds a snapshot from the connection's memoized info reply.
// Never cached here; the caller controls sampling cadence.
func MeasureStore(ctx context.Context, conn *connection.Connection) (*StoreMetrics, error) {
	raw, err := conn.Memoize(ctx, "info")
	if err != nil {
		return nil, err
	}
	return ParseInfo(raw, conn.Config().Database), nil
}

// ParseInfo extracts the store snapshot from a raw info reply. database
// selects which keyspace summary line supplies the key count.
func ParseInfo(raw string, database int) *StoreMetrics {
	fields := infoFields(raw)

	hits := parseUint(fields["keyspace_hits"])
	misses := parseUint(fields["keyspace_misses"])
	used := parseInt(fields["used_memory"])
	maxMemory := parseInt(fields["maxmemory"])

	m := &StoreMetrics{
		Hits:                hits,
		Misses:              misses,
		HitRatio:            HitRatio(hits, misses),
		OpsPerSec:           parseInt(fields["instantaneous_ops_per_sec"]),
		Evictions:           parseInt(fields["evicted_keys"]),
		UsedMemory:          used,
		UsedMemoryRSS:       parseInt(fields["used_memory_rss"]),
		MemoryFragmentation: parseFloat(fields["mem_fragmentation_ratio"]),
		MaxMemory:           maxMemory,
		ConnectedClients:    parseInt(fields["connected_clients"]),
		TrackingClients:     parseInt(fields["tracking_clients"]),
		RejectedConnections: parseInt(fields["rejected_connections"]),
		Keys:                keyspaceKeys(fields[fmt.Sprintf("db%d", database)]),
	}

	// A memory ratio is only meaningful against a configured ceiling.
	if maxMemory > 0 {
		m.MemoryRatio = utils.Percent(float64(used), float64(maxMemory))
	}

	return m
}

// HitRatio is hits over total lookups as a percentage with two decimals.
// No lookups yet reads as fully healthy, not undefined.
func HitRatio(hits, misses uint64) float64 {
	total := hits + misses
	if total == 0 {
		return 100
	}
	return utils.Round2(float64(hits) / float64(total) * 100)
}

// infoFields splits a raw info reply into key/value pairs, skipping section
// headers and blank lines.
func infoFields(raw string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if key, value, ok := strings.Cut(line, ":"); ok {
			fields[key] = value
		}
	}
	return fields
}

// keyspaceKeys parses the key count from a keyspace summary line such as
// "keys=42,expires=3,avg_ttl=0".
func keyspaceKeys(line string) int64 {
	for _, part := range strings.Split(line, ",") {
		if value, ok := strings.CutPrefix(part, "keys="); ok {
			return parseInt(value)
		}
	}
	return 0
}

func parseInt(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}

func parseUint(s string) uint64 {
	v, _ := strconv.ParseUint(s, 10, 64)
	return v
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
