package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runtimeSample(cacheMs float64, totalMs *float64) *Measurement {
	return &Measurement{
		Timestamp: Now(),
		Runtime:   &RuntimeMetrics{CacheMs: cacheMs, TotalMs: totalMs},
	}
}

func TestCollectionStatistics(t *testing.T) {
	ms := Measurements{
		runtimeSample(1, nil),
		runtimeSample(2, nil),
		runtimeSample(6, nil),
	}

	assert.Equal(t, 3, ms.Count())

	mean, ok := ms.Mean("runtime->cache_ms")
	require.True(t, ok)
	assert.Equal(t, 3.0, mean)

	median, ok := ms.Median("runtime->cache_ms")
	require.True(t, ok)
	assert.Equal(t, 2.0, median)
}

func TestCollectionSkipsAbsentValues(t *testing.T) {
	ten := 10.0
	thirty := 30.0
	ms := Measurements{
		runtimeSample(1, &ten),
		runtimeSample(2, nil),
		runtimeSample(3, &thirty),
	}

	mean, ok := ms.Mean("runtime->total_ms")
	require.True(t, ok)
	assert.Equal(t, 20.0, mean, "absent values must not drag the mean toward zero")

	_, ok = Measurements{runtimeSample(1, nil)}.Mean("runtime->total_ms")
	assert.False(t, ok)
}

func TestCollectionLatest(t *testing.T) {
	ten := 10.0
	ms := Measurements{
		runtimeSample(1, &ten),
		runtimeSample(2, nil),
	}

	v, ok := ms.Latest("runtime->cache_ms")
	require.True(t, ok)
	assert.Equal(t, 2.0, v)

	// The newest sample lacks total_ms; the scan falls back to the older one.
	v, ok = ms.Latest("runtime->total_ms")
	require.True(t, ok)
	assert.Equal(t, 10.0, v)

	_, ok = Measurements{}.Latest("runtime->cache_ms")
	assert.False(t, ok)
}

func TestCollectionPluck(t *testing.T) {
	ten := 10.0
	ms := Measurements{
		runtimeSample(1, &ten),
		runtimeSample(2, nil),
	}

	values := ms.Pluck("runtime->total_ms")
	require.Len(t, values, 2)
	require.NotNil(t, values[0])
	assert.Equal(t, 10.0, *values[0])
	assert.Nil(t, values[1])
}

func TestCollectionFilter(t *testing.T) {
	ms := Measurements{
		runtimeSample(1, nil),
		runtimeSample(5, nil),
		runtimeSample(9, nil),
	}

	slow := ms.Filter(func(m *Measurement) bool {
		return m.Runtime.CacheMs > 3
	})
	assert.Equal(t, 2, slow.Count())
}
