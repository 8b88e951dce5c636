// Package pipeline runs a decode function over a stream of documents with a
// fixed number of workers.
//
// One goroutine pulls documents from the reader in id order, the workers
// decode them in parallel, and one collector goroutine hands results to the
// receiver. The receiver is never called concurrently.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/bastiangx/morphserve/internal/logger"
	"github.com/bastiangx/morphserve/pkg/morph"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Order selects how results reach the receiver.
type Order int

const (
	// Ordered delivers ids 0, 1, 2, ... in sequence, buffering early results.
	Ordered Order = iota
	// Unordered delivers each result as soon as it is decoded.
	Unordered
)

func (o Order) String() string {
	if o == Unordered {
		return "unordered"
	}
	return "ordered"
}

// windowPerWorker bounds how many documents each worker may have pulled but
// not yet delivered.
const windowPerWorker = 4

// DecodeFunc analyzes one document.
type DecodeFunc func(text string) ([]morph.Result, error)

type job struct {
	id   int
	text string
}

type done struct {
	id      int
	results []morph.Result
}

// Pool is a reusable worker configuration. Each Run starts and stops its own
// goroutines.
type Pool struct {
	workers int
	order   Order
	logger  *log.Logger
}

// New creates a pool. workers <= 0 selects runtime.NumCPU().
func New(workers int, order Order) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{workers: workers, order: order, logger: logger.New("pipeline")}
}

// Workers returns the number of decode goroutines per run.
func (p *Pool) Workers() int { return p.workers }

// Order returns the delivery mode.
func (p *Pool) Order() Order { return p.order }

// Run pulls every document from r, decodes it and delivers it to recv
// exactly once. It returns the number of delivered documents. A failing
// reader or receiver stops the run with a *morph.CallbackError; results
// delivered before the failure stand.
func (p *Pool) Run(ctx context.Context, r morph.Reader, decode DecodeFunc, recv morph.Receiver) (int, error) {
	if r == nil || recv == nil || decode == nil {
		return 0, fmt.Errorf("%w: reader, receiver and decode function are required", morph.ErrInvalidArgument)
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	window := semaphore.NewWeighted(int64(windowPerWorker * p.workers))
	jobs := make(chan job, p.workers)
	results := make(chan done, p.workers)

	g.Go(func() error {
		defer close(jobs)
		for id := 0; ; id++ {
			if err := window.Acquire(gctx, 1); err != nil {
				return err
			}
			text, err := r.Read(id)
			if errors.Is(err, io.EOF) {
				window.Release(1)
				return nil
			}
			if err != nil {
				window.Release(1)
				return &morph.CallbackError{Op: "read", ID: id, Err: err}
			}
			select {
			case jobs <- job{id: id, text: text}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			for j := range jobs {
				if err := gctx.Err(); err != nil {
					return err
				}
				res, err := decode(j.text)
				if err != nil {
					return fmt.Errorf("document %d: %w", j.id, err)
				}
				select {
				case results <- done{id: j.id, results: res}:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		wg.Wait()
		close(results)
		return nil
	})

	delivered := 0
	deliver := func(id int, res []morph.Result) error {
		err := recv.Receive(id, res)
		window.Release(1)
		if err != nil {
			return &morph.CallbackError{Op: "receive", ID: id, Err: err}
		}
		delivered++
		return nil
	}

	g.Go(func() error {
		pending := make(map[int][]morph.Result)
		next := 0
		for d := range results {
			if p.order == Unordered {
				if err := deliver(d.id, d.results); err != nil {
					return err
				}
				continue
			}
			pending[d.id] = d.results
			for {
				res, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				if err := deliver(next, res); err != nil {
					return err
				}
				next++
			}
		}
		return nil
	})

	err := g.Wait()
	p.logger.Debugf("Delivered %d documents with %d workers (%s) in %v",
		delivered, p.workers, p.order, time.Since(start))
	return delivered, err
}
