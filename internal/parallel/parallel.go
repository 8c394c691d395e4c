// Package parallel runs independent per-example work on a bounded number of
// goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution.
type Config struct {
	Enabled      bool // run on several goroutines
	NumWorkers   int  // upper bound on goroutines
	MinChunkSize int  // fewest items handled by one goroutine
}

// DefaultConfig uses every CPU with chunks of at least minChunk items.
func DefaultConfig(minChunk int) Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: max(minChunk, 1),
	}
}

// For calls f(i) for every i in [0, n) and returns when all calls are done.
// Work runs sequentially when cfg is disabled or n is below MinChunkSize.
// Calls for different i must not write shared state.
func For(n int, f func(i int), cfg Config) {
	if !cfg.Enabled || cfg.NumWorkers < 2 || n < cfg.MinChunkSize {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var wg sync.WaitGroup
	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize)
	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}
