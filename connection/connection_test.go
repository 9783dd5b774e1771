package connection

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objcache/objcache/config"
	"github.com/objcache/objcache/ecode"
)

func testConfig(addr string) *config.Config {
	return &config.Config{
		Topology:    config.TopologyInstance,
		Addr:        addr,
		Serializer:  config.SerializerJSON,
		Compression: config.CompressionNone,
		Prefix:      "objcache",
	}
}

func testConnection(t *testing.T, mutate ...func(*config.Config)) *Connection {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := testConfig(mr.Addr())
	for _, fn := range mutate {
		fn(cfg)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	conn, err := New(client, cfg, nil)
	require.NoError(t, err)
	return conn
}

func TestExecuteRecordsLatencyInOrder(t *testing.T) {
	conn := testConnection(t)
	ctx := context.Background()

	_, err := conn.Execute(ctx, "set", "k", "v")
	require.NoError(t, err)
	result, err := conn.Execute(ctx, "get", "k")
	require.NoError(t, err)
	assert.Equal(t, "v", result)

	samples := conn.IOWait()
	require.Len(t, samples, 2)
	for _, s := range samples {
		assert.GreaterOrEqual(t, s, 0.0)
	}
	assert.Equal(t, conn.IOWaitSum(), samples[0]+samples[1])
}

func TestExecuteTreatsAbsenceAsSuccess(t *testing.T) {
	conn := testConnection(t)

	result, err := conn.Execute(context.Background(), "get", "missing")
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Len(t, conn.IOWait(), 1)
}

func TestExecuteFailureIsNormalized(t *testing.T) {
	conn := testConnection(t)

	_, err := conn.Execute(context.Background(), "set")
	require.Error(t, err)
	assert.True(t, ecode.IsConnection(err))

	var ce *ecode.ConnectionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "set", ce.Command)

	assert.Empty(t, conn.IOWait(), "failed calls must not record latency")
}

func TestIOWaitMedian(t *testing.T) {
	conn := testConnection(t)

	_, ok := conn.IOWaitMedian()
	assert.False(t, ok, "no samples yet")

	_, err := conn.Execute(context.Background(), "set", "k", "v")
	require.NoError(t, err)
	median, ok := conn.IOWaitMedian()
	assert.True(t, ok)
	assert.GreaterOrEqual(t, median, 0.0)
}

func TestIOWaitReturnsCopy(t *testing.T) {
	conn := testConnection(t)
	_, err := conn.Execute(context.Background(), "set", "k", "v")
	require.NoError(t, err)

	samples := conn.IOWait()
	samples[0] = 999
	assert.NotEqual(t, 999.0, conn.IOWait()[0])
}

func TestMemoizeExecutesOnce(t *testing.T) {
	conn := testConnection(t)
	ctx := context.Background()

	first, err := conn.Memoize(ctx, "ping")
	require.NoError(t, err)
	assert.Equal(t, "PONG", first)
	assert.Len(t, conn.IOWait(), 1)

	second, err := conn.Memoize(ctx, "ping")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, conn.IOWait(), 1, "cached replies must not touch the backend")
}

func TestMemoizeRejectsUnknownCommands(t *testing.T) {
	conn := testConnection(t)

	_, err := conn.Memoize(context.Background(), "set")
	require.Error(t, err)
	assert.ErrorIs(t, err, ecode.ErrInvalidArgument)
	assert.Empty(t, conn.IOWait())
}

func TestSetGetRoundTrip(t *testing.T) {
	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	for _, compression := range []string{
		config.CompressionNone,
		config.CompressionGzip,
		config.CompressionBrotli,
	} {
		t.Run(compression, func(t *testing.T) {
			conn := testConnection(t, func(cfg *config.Config) {
				cfg.Compression = compression
			})
			ctx := context.Background()

			in := payload{Name: "answer", Count: 42}
			require.NoError(t, conn.SetValue(ctx, "k", in, 0))

			var out payload
			found, err := conn.GetValue(ctx, "k", &out)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, in, out)
		})
	}
}

func TestGetValueAbsentKey(t *testing.T) {
	conn := testConnection(t)

	var out string
	found, err := conn.GetValue(context.Background(), "missing", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestWithoutMutations(t *testing.T) {
	conn := testConnection(t, func(cfg *config.Config) {
		cfg.Compression = config.CompressionGzip
	})
	ctx := context.Background()

	err := conn.WithoutMutations(func() error {
		if err := conn.SetValue(ctx, "raw", "plain", 0); err != nil {
			return err
		}
		var raw []byte
		found, err := conn.GetValue(ctx, "raw", &raw)
		if err != nil {
			return err
		}
		assert.True(t, found)
		assert.Equal(t, []byte("plain"), raw)
		return nil
	})
	require.NoError(t, err)

	// Transforms are back on afterwards.
	require.NoError(t, conn.SetValue(ctx, "cooked", "value", 0))
	var out string
	found, err := conn.GetValue(ctx, "cooked", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "value", out)
}

func TestWithoutMutationsRequiresByteDest(t *testing.T) {
	conn := testConnection(t)
	ctx := context.Background()

	require.NoError(t, conn.SetValue(ctx, "k", "v", 0))

	err := conn.WithoutMutations(func() error {
		var out string
		_, err := conn.GetValue(ctx, "k", &out)
		return err
	})
	assert.ErrorIs(t, err, ecode.ErrInvalidArgument)
}

func TestWithoutMutationsRestoresOnPanic(t *testing.T) {
	conn := testConnection(t)

	func() {
		defer func() { _ = recover() }()
		_ = conn.WithoutMutations(func() error {
			panic("boom")
		})
	}()

	assert.False(t, conn.raw, "raw mode must be restored after a panic")
}

func TestFlush(t *testing.T) {
	conn := testConnection(t)
	ctx := context.Background()

	require.NoError(t, conn.SetValue(ctx, "k", "v", 0))
	require.NoError(t, conn.Flush(ctx))

	var out string
	found, err := conn.GetValue(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, found)
}
