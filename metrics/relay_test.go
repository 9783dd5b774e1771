package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/objcache/objcache/cache"
)

func TestMeasureRelay(t *testing.T) {
	layer := cache.New(2048)
	layer.Set("k", make([]byte, 1023))
	layer.Get("k")
	layer.Get("absent")

	m := MeasureRelay(layer)

	assert.Equal(t, uint64(1), m.Hits)
	assert.Equal(t, uint64(1), m.Misses)
	assert.Equal(t, int64(1024), m.MemoryUsed)
	assert.Equal(t, int64(2048), m.MemoryLimit)
	assert.Equal(t, 50.0, m.MemoryRatio)
}
