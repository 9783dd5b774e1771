package metrics

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/objcache/objcache/cache"
	"github.com/objcache/objcache/connection"
	"github.com/objcache/objcache/logging/logger"
)

// Storage persists measurements as a sorted time series on the backend
// store itself, scored by timestamp. Every operation on this path is
// best-effort: failures are logged and swallowed so metrics can never break
// the caching they observe.
type Storage struct {
	conn    *connection.Connection
	runtime *cache.Cache
	log     *logger.Logger
	breaker *gobreaker.CircuitBreaker

	retention      time.Duration
	sampleInterval time.Duration
	prefix         string

	// Collaborator hooks supplied by the embedding host.
	RequestStart func() (time.Time, bool)
	RequestPath  func() string

	// Samplers are swappable for tests and alternate layers.
	StoreSampler func(ctx context.Context) *StoreMetrics
	RelaySampler func() *RelayMetrics

	now func() time.Time
}

// NewStorage wires the measurement store to a connection and the runtime
// cache. Retention and sampling cadence come from the connection's
// configuration.
func NewStorage(conn *connection.Connection, runtime *cache.Cache, log *logger.Logger) *Storage {
	if log == nil {
		log = logger.StandardLogger()
	}
	cfg := conn.Config()

	s := &Storage{
		conn:    conn,
		runtime: runtime,
		log:     log,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "measurements",
			Timeout: 30 * time.Second,
		}),
		retention:      cfg.Analytics.Retention,
		sampleInterval: cfg.Analytics.SampleInterval,
		prefix:         cfg.Prefix,
		now:            time.Now,
	}

	s.StoreSampler = func(ctx context.Context) *StoreMetrics {
		sm, err := MeasureStore(ctx, conn)
		if err != nil {
			log.WithFields(logger.Fields{"error": err.Error()}).Warn("store metrics sample failed")
			return nil
		}
		return sm
	}
	s.RelaySampler = func() *RelayMetrics {
		if layer := conn.Relay(); layer != nil {
			return MeasureRelay(layer)
		}
		return nil
	}

	return s
}

// Key is the sorted-set key holding the time series.
func (s *Storage) Key() string {
	return s.prefix + ":measurements"
}

// sampleKey holds the last-full-sample timestamp used by the throttle.
func (s *Storage) sampleKey() string {
	return s.Key() + ":sample"
}

// Record samples the current request into the time series. Runtime metrics
// are always populated; the expensive store and relay snapshots are taken
// at most once per sampling interval process-wide. The returned measurement
// is what was written, or what would have been written when persistence
// failed; a nil return means the sample could not be built at all.
func (s *Storage) Record(ctx context.Context) *Measurement {
	var start *time.Time
	if s.RequestStart != nil {
		if t, ok := s.RequestStart(); ok {
			start = &t
		}
	}
	var path string
	if s.RequestPath != nil {
		path = s.RequestPath()
	}

	m := NewMeasurement(MeasureRuntime(s.runtime, s.conn, start), path)

	if s.shouldSampleFull(ctx) {
		m.Store = s.StoreSampler(ctx)
		m.Relay = s.RelaySampler()
		s.markSampled(ctx, m.Timestamp)
	}

	payload, err := json.Marshal(m)
	if err != nil {
		s.log.WithFields(logger.Fields{"error": err.Error()}).Error("measurement serialization failed")
		return m
	}

	_, err = s.breaker.Execute(func() (any, error) {
		return nil, s.conn.Client().ZAdd(ctx, s.Key(), redis.Z{
			Score:  m.Timestamp,
			Member: string(payload),
		}).Err()
	})
	if err != nil {
		s.log.WithFields(logger.Fields{"error": err.Error()}).Warn("measurement write failed")
	}

	return m
}

// shouldSampleFull reads the last-full-sample timestamp. The read-then-write
// sequence is deliberately lenient: concurrent processes may each observe a
// stale timestamp and double-sample within one window, which is an accepted
// inefficiency, not a correctness problem.
func (s *Storage) shouldSampleFull(ctx context.Context) bool {
	var raw []byte
	var found bool
	err := s.conn.WithoutMutations(func() error {
		var err error
		found, err = s.conn.GetValue(ctx, s.sampleKey(), &raw)
		return err
	})
	if err != nil {
		s.log.WithFields(logger.Fields{"error": err.Error()}).Warn("sample timestamp read failed")
		return false
	}
	if !found {
		return true
	}

	last, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return true
	}
	elapsed := float64(s.now().UnixMicro())/1e6 - last
	return elapsed > s.sampleInterval.Seconds()
}

func (s *Storage) markSampled(ctx context.Context, timestamp float64) {
	value := strconv.FormatFloat(timestamp, 'f', 6, 64)
	err := s.conn.WithoutMutations(func() error {
		return s.conn.SetValue(ctx, s.sampleKey(), value, 0)
	})
	if err != nil {
		s.log.WithFields(logger.Fields{"error": err.Error()}).Warn("sample timestamp write failed")
	}
}

// Query returns the measurements scored within [min, max], most recent
// first. Bounds use the backend's score syntax: "-inf"/"+inf" and the "("
// prefix for exclusive endpoints. Pagination applies when both offset and
// count are given.
func (s *Storage) Query(ctx context.Context, min, max string, window ...int) Measurements {
	if min == "" {
		min = "-inf"
	}
	if max == "" {
		max = "+inf"
	}

	opt := &redis.ZRangeBy{Min: min, Max: max}
	if len(window) >= 2 {
		opt.Offset = int64(window[0])
		opt.Count = int64(window[1])
	}

	members, err := s.conn.Client().ZRevRangeByScore(ctx, s.Key(), opt).Result()
	if err != nil {
		s.log.WithFields(logger.Fields{"error": err.Error()}).Warn("measurement query failed")
		return nil
	}

	out := make(Measurements, 0, len(members))
	for _, member := range members {
		var m Measurement
		if err := json.Unmarshal([]byte(member), &m); err != nil {
			s.log.WithFields(logger.Fields{"error": err.Error()}).Warn("measurement decode failed")
			continue
		}
		out = append(out, &m)
	}
	return out
}

// Prune removes every measurement older than the retention window. An
// entry exactly at the boundary is retained. Safe to invoke concurrently;
// the underlying range delete is atomic on the backend.
func (s *Storage) Prune(ctx context.Context) int64 {
	cutoff := float64(s.now().UnixMicro())/1e6 - s.retention.Seconds()
	max := "(" + strconv.FormatFloat(cutoff, 'f', 6, 64)

	removed, err := s.conn.Client().ZRemRangeByScore(ctx, s.Key(), "-inf", max).Result()
	if err != nil {
		s.log.WithFields(logger.Fields{"error": err.Error()}).Warn("measurement prune failed")
		return 0
	}
	return removed
}
