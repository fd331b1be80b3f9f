//go:build test

package engine

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/bastiangx/tripserve/pkg/cache"
)

func init() {
	log.SetLevel(log.ErrorLevel)
}

// each row is one query typed a keystroke at a time
var typingPatterns = [][]string{
	{"f", "fl", "fli", "flight", "flight fr", "flight from", "flight from mum", "flight from mumbai",
		"flight from mumbai to", "flight from mumbai to del", "flight from mumbai to delhi tomorrow"},
	{"h", "ho", "hot", "hotel", "hotel in", "hotel in go", "hotel in goa", "hotel in goa for 3 nights"},
	{"N", "ND", "NDL", "NDLS", "NDLS to", "NDLS to BC", "NDLS to BCT"},
	{"i", "i w", "i want", "i want to", "i want to book", "i want to book a"},
	{"M", "Mu", "Mumbai", "Mumbai to", "Mumbai to Delhi"},
	{"p", "pl", "plan", "plan a", "plan a holiday", "plan a holiday to goa"},
}

func flatten(patterns [][]string) []string {
	var out []string
	for _, p := range patterns {
		out = append(out, p...)
	}
	return out
}

func heapDelta(baseline, final runtime.MemStats) int64 {
	return int64(final.HeapAlloc) - int64(baseline.HeapAlloc)
}

func TestMemoryLeakBasic(t *testing.T) {
	for _, iterations := range []int{100, 500, 1000} {
		t.Run(fmt.Sprintf("iterations_%d", iterations), func(t *testing.T) {
			runBasicMemoryTest(t, iterations, flatten(typingPatterns))
		})
	}
}

func TestMemoryLeakConcurrent(t *testing.T) {
	configs := []struct {
		workers             int
		iterationsPerWorker int
	}{
		{workers: 1, iterationsPerWorker: 400},
		{workers: 4, iterationsPerWorker: 100},
		{workers: 8, iterationsPerWorker: 50},
	}
	for _, cfg := range configs {
		t.Run(fmt.Sprintf("workers_%d_iter_%d", cfg.workers, cfg.iterationsPerWorker), func(t *testing.T) {
			runConcurrentMemoryTest(t, cfg.workers, cfg.iterationsPerWorker)
		})
	}
}

func runBasicMemoryTest(t *testing.T, iterations int, queries []string) {
	svc := NewService(newTestEngine(t, cache.NewMemory(cache.DefaultMaxEntries, time.Minute)), nil)
	ctx := context.Background()

	var baseline runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&baseline)
	baselineGoroutines := runtime.NumGoroutine()

	for i := 0; i < iterations; i++ {
		for _, q := range queries {
			_ = svc.Complete(ctx, Request{Query: q, Max: 5, Placeholder: true})
		}
	}

	var final runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&final)

	totalOps := iterations * len(queries)
	memPerOp := float64(heapDelta(baseline, final)) / float64(totalOps)
	goroutineDelta := runtime.NumGoroutine() - baselineGoroutines

	t.Logf("iterations=%d ops=%d mem_per_op=%.2f goroutine_delta=%d", iterations, totalOps, memPerOp, goroutineDelta)

	// the cache is bounded and the query set is small
	if memPerOp > 1000 {
		t.Errorf("excessive memory retained per operation: %.2f bytes", memPerOp)
	}
	if goroutineDelta > 2 {
		t.Errorf("goroutine leak detected: %d goroutines leaked", goroutineDelta)
	}
}

func runConcurrentMemoryTest(t *testing.T, workers, iterationsPerWorker int) {
	svc := NewService(newTestEngine(t, cache.NewMemory(64, time.Minute)), nil)
	ctx := context.Background()

	var baseline runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&baseline)
	baselineGoroutines := runtime.NumGoroutine()

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < iterationsPerWorker; i++ {
				pattern := typingPatterns[(w+i)%len(typingPatterns)]
				for _, q := range pattern {
					res := svc.Complete(ctx, Request{Query: q, Max: 5})
					if res.Suggestions == nil {
						t.Errorf("nil suggestions for %q", q)
						return
					}
				}
				if i%50 == 0 {
					_ = svc.Engine().ClearCache(ctx)
				}
			}
		}(w)
	}
	wg.Wait()

	var final runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&final)
	goroutineDelta := runtime.NumGoroutine() - baselineGoroutines

	t.Logf("workers=%d heap_delta=%d goroutine_delta=%d", workers, heapDelta(baseline, final), goroutineDelta)
	if goroutineDelta > 2 {
		t.Errorf("goroutine leak detected: %d goroutines leaked", goroutineDelta)
	}
}
