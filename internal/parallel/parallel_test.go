package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFor_VisitsEveryIndexOnce(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 3}
	n := 1000
	hits := make([]int32, n)
	For(n, func(i int) {
		atomic.AddInt32(&hits[i], 1)
	}, cfg)
	for i, h := range hits {
		assert.Equal(t, int32(1), h, "index %d", i)
	}
}

func TestFor_Sequential(t *testing.T) {
	var order []int
	For(5, func(i int) { order = append(order, i) }, Config{Enabled: false})
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)

	order = nil
	cfg := Config{Enabled: true, NumWorkers: 8, MinChunkSize: 64}
	For(10, func(i int) { order = append(order, i) }, cfg)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
}

func TestFor_Empty(t *testing.T) {
	called := false
	For(0, func(int) { called = true }, DefaultConfig(1))
	assert.False(t, called)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig(0)
	assert.Equal(t, 1, cfg.MinChunkSize)
	assert.Positive(t, cfg.NumWorkers)
}

func BenchmarkFor(b *testing.B) {
	n := 10000
	b.Run("parallel", func(b *testing.B) {
		cfg := DefaultConfig(64)
		for i := 0; i < b.N; i++ {
			var sum int64
			For(n, func(i int) { atomic.AddInt64(&sum, int64(i)) }, cfg)
		}
	})
	b.Run("sequential", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var sum int64
			For(n, func(i int) { atomic.AddInt64(&sum, int64(i)) }, Config{})
		}
	})
}
