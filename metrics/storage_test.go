package metrics

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objcache/objcache/cache"
)

func testStorage(t *testing.T) *Storage {
	t.Helper()
	conn, _ := testConnection(t)
	s := NewStorage(conn, cache.New(0), nil)
	s.StoreSampler = func(ctx context.Context) *StoreMetrics {
		return &StoreMetrics{Hits: 300, Misses: 100, HitRatio: 75}
	}
	s.RelaySampler = func() *RelayMetrics { return nil }
	return s
}

func addAt(t *testing.T, s *Storage, timestamp float64) *Measurement {
	t.Helper()
	m := NewMeasurement(&RuntimeMetrics{}, "")
	m.Timestamp = timestamp
	payload, err := json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, s.conn.Client().ZAdd(context.Background(), s.Key(), redis.Z{
		Score:  m.Timestamp,
		Member: string(payload),
	}).Err())
	return m
}

func seriesSize(t *testing.T, s *Storage) int64 {
	t.Helper()
	result, err := s.conn.Execute(context.Background(), "zcard", s.Key())
	require.NoError(t, err)
	n, ok := result.(int64)
	require.True(t, ok)
	return n
}

func TestRecordAndQueryRoundTrip(t *testing.T) {
	s := testStorage(t)
	ctx := context.Background()

	recorded := s.Record(ctx)
	require.NotNil(t, recorded)
	require.NotNil(t, recorded.Store, "first sample should include the full snapshot")

	min := strconv.FormatFloat(recorded.Timestamp-1, 'f', 6, 64)
	max := strconv.FormatFloat(recorded.Timestamp+1, 'f', 6, 64)
	results := s.Query(ctx, min, max)
	require.Len(t, results, 1)
	assert.Equal(t, recorded.ID, results[0].ID)
	assert.Equal(t, recorded.Timestamp, results[0].Timestamp)
	require.NotNil(t, results[0].Store)
	assert.Equal(t, uint64(300), results[0].Store.Hits)
	assert.Nil(t, results[0].Relay)
}

func TestRecordThrottlesFullSamples(t *testing.T) {
	s := testStorage(t)
	ctx := context.Background()

	first := s.Record(ctx)
	require.NotNil(t, first.Store)

	second := s.Record(ctx)
	require.NotNil(t, second)
	assert.Nil(t, second.Store, "a second sample within the interval stays cheap")
	assert.NotNil(t, second.Runtime, "runtime metrics are always present")
}

func TestRecordSamplesAgainAfterInterval(t *testing.T) {
	s := testStorage(t)
	ctx := context.Background()

	_ = s.Record(ctx)

	// Age the sample marker past the interval.
	stale := float64(time.Now().Add(-time.Minute).UnixMicro()) / 1e6
	s.markSampled(ctx, stale)

	again := s.Record(ctx)
	assert.NotNil(t, again.Store)
}

func TestQueryOrdersMostRecentFirst(t *testing.T) {
	s := testStorage(t)
	ctx := context.Background()

	addAt(t, s, 100)
	addAt(t, s, 300)
	addAt(t, s, 200)

	results := s.Query(ctx, "", "")
	require.Len(t, results, 3)
	assert.Equal(t, 300.0, results[0].Timestamp)
	assert.Equal(t, 200.0, results[1].Timestamp)
	assert.Equal(t, 100.0, results[2].Timestamp)
}

func TestQueryBoundsAndPagination(t *testing.T) {
	s := testStorage(t)
	ctx := context.Background()

	for _, ts := range []float64{100, 200, 300, 400} {
		addAt(t, s, ts)
	}

	inclusive := s.Query(ctx, "200", "300")
	require.Len(t, inclusive, 2)
	assert.Equal(t, 300.0, inclusive[0].Timestamp)

	exclusive := s.Query(ctx, "(200", "+inf")
	require.Len(t, exclusive, 2)
	assert.Equal(t, 400.0, exclusive[0].Timestamp)
	assert.Equal(t, 300.0, exclusive[1].Timestamp)

	page := s.Query(ctx, "", "", 1, 2)
	require.Len(t, page, 2)
	assert.Equal(t, 300.0, page[0].Timestamp)
	assert.Equal(t, 200.0, page[1].Timestamp)
}

func TestQuerySkipsCorruptMembers(t *testing.T) {
	s := testStorage(t)
	ctx := context.Background()

	addAt(t, s, 100)
	require.NoError(t, s.conn.Client().ZAdd(ctx, s.Key(), redis.Z{
		Score:  150,
		Member: "not json",
	}).Err())

	results := s.Query(ctx, "", "")
	require.Len(t, results, 1)
	assert.Equal(t, 100.0, results[0].Timestamp)
}

func TestPruneRetainsBoundaryEntry(t *testing.T) {
	s := testStorage(t)
	ctx := context.Background()

	now := time.Unix(1700000000, 0)
	s.now = func() time.Time { return now }
	cutoff := float64(now.UnixMicro())/1e6 - s.retention.Seconds()

	addAt(t, s, cutoff-1) // expired
	addAt(t, s, cutoff)   // exactly at the boundary
	addAt(t, s, cutoff+1) // fresh

	removed := s.Prune(ctx)
	assert.Equal(t, int64(1), removed)
	assert.Equal(t, int64(2), seriesSize(t, s))

	results := s.Query(ctx, "", "")
	require.Len(t, results, 2)
	assert.Equal(t, cutoff+1, results[0].Timestamp)
	assert.Equal(t, cutoff, results[1].Timestamp)
}

func TestPruneEmptySeries(t *testing.T) {
	s := testStorage(t)
	assert.Zero(t, s.Prune(context.Background()))
}

func TestStorageKey(t *testing.T) {
	s := testStorage(t)
	assert.Equal(t, "objcache:measurements", s.Key())
	assert.Equal(t, "objcache:measurements:sample", s.sampleKey())
}
