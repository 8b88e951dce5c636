//go:build test

package engine

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"testing"

	"github.com/bastiangx/morphserve/pkg/morph"
	"github.com/charmbracelet/log"
)

func init() {
	log.SetLevel(log.ErrorLevel)
}

var memTexts = []string{
	"코틀린은", "코틀린을", "자바는", "자바 코틀린", "가나다라마바사",
	"ABC 123 자바는!", "(코틀린)", "漢字 자바",
}

func heapInUse() uint64 {
	runtime.GC()
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.HeapInuse
}

func TestMemoryStreamRepeated(t *testing.T) {
	e := newTestEngine(t, 4)
	if _, err := e.Prepare(); err != nil {
		t.Fatal(err)
	}

	var docs []string
	for range 50 {
		docs = append(docs, memTexts...)
	}
	discard := morph.ReceiverFunc(func(int, []morph.Result) error { return nil })

	run := func() {
		if _, err := e.AnalyzeStream(context.Background(), 3, morph.SliceReader(docs), discard); err != nil {
			t.Fatal(err)
		}
	}
	run()
	before := heapInUse()
	for range 20 {
		run()
	}
	after := heapInUse()

	growth := int64(after) - int64(before)
	t.Logf("heap in use: before=%d after=%d growth=%d", before, after, growth)
	// The result cache is bounded, so repeated runs must not keep growing.
	if growth > 32<<20 {
		t.Errorf("heap grew by %d bytes over repeated streams", growth)
	}
}

func TestMemoryConcurrentAnalyze(t *testing.T) {
	configs := []struct {
		workers             int
		iterationsPerWorker int
	}{
		{workers: 1, iterationsPerWorker: 1000},
		{workers: 4, iterationsPerWorker: 250},
		{workers: 8, iterationsPerWorker: 125},
	}

	for _, config := range configs {
		t.Run(fmt.Sprintf("workers_%d_iter_%d", config.workers, config.iterationsPerWorker), func(t *testing.T) {
			e := newTestEngine(t, 2)
			if _, err := e.Prepare(); err != nil {
				t.Fatal(err)
			}
			before := heapInUse()
			goroutines := runtime.NumGoroutine()

			var wg sync.WaitGroup
			for w := 0; w < config.workers; w++ {
				wg.Add(1)
				go func(w int) {
					defer wg.Done()
					for i := 0; i < config.iterationsPerWorker; i++ {
						text := memTexts[(w+i)%len(memTexts)]
						if _, err := e.Analyze(text, 2); err != nil {
							t.Error(err)
							return
						}
					}
				}(w)
			}
			wg.Wait()

			growth := int64(heapInUse()) - int64(before)
			t.Logf("heap growth: %d bytes", growth)
			if growth > 16<<20 {
				t.Errorf("heap grew by %d bytes", growth)
			}
			if n := runtime.NumGoroutine(); n > goroutines+2 {
				t.Errorf("goroutines leaked: %d before, %d after", goroutines, n)
			}
		})
	}
}
