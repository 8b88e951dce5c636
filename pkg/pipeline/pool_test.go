package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bastiangx/morphserve/pkg/morph"
)

func docs(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("doc-%d", i)
	}
	return out
}

// echo returns one result whose single token is the text itself.
func echo(text string) ([]morph.Result, error) {
	return []morph.Result{{Tokens: []morph.Token{{Form: text, Tag: morph.UN, Len: len(text)}}}}, nil
}

// slowEcho varies decode time so workers finish out of order.
func slowEcho(text string) ([]morph.Result, error) {
	time.Sleep(time.Duration(len(text)%3) * time.Millisecond)
	return echo(text)
}

func TestRunOrdered(t *testing.T) {
	const k = 60
	input := docs(k)

	for _, workers := range []int{1, 4, 16} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			var got []int
			recv := morph.ReceiverFunc(func(id int, res []morph.Result) error {
				if res[0].Tokens[0].Form != input[id] {
					t.Errorf("document %d delivered with results of %q", id, res[0].Tokens[0].Form)
				}
				got = append(got, id)
				return nil
			})

			n, err := New(workers, Ordered).Run(context.Background(), morph.SliceReader(input), slowEcho, recv)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if n != k || len(got) != k {
				t.Fatalf("delivered %d (%d received), want %d", n, len(got), k)
			}
			for i, id := range got {
				if id != i {
					t.Fatalf("delivery %d was document %d", i, id)
				}
			}
		})
	}
}

func TestRunUnordered(t *testing.T) {
	const k = 60
	seen := make(map[int]int)
	recv := morph.ReceiverFunc(func(id int, _ []morph.Result) error {
		seen[id]++
		return nil
	})

	n, err := New(8, Unordered).Run(context.Background(), morph.SliceReader(docs(k)), slowEcho, recv)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != k || len(seen) != k {
		t.Fatalf("delivered %d distinct %d, want %d", n, len(seen), k)
	}
	for id, c := range seen {
		if c != 1 {
			t.Errorf("document %d delivered %d times", id, c)
		}
	}
}

func TestRunEmpty(t *testing.T) {
	called := false
	recv := morph.ReceiverFunc(func(int, []morph.Result) error { called = true; return nil })
	n, err := New(2, Ordered).Run(context.Background(), morph.SliceReader(nil), echo, recv)
	if err != nil || n != 0 || called {
		t.Errorf("Run on empty reader = %d, %v (receiver called %v)", n, err, called)
	}
}

func TestRunWindow(t *testing.T) {
	const workers = 2
	var delivered atomic.Int64
	var maxAhead atomic.Int64
	input := docs(200)

	r := morph.ReaderFunc(func(id int) (string, error) {
		if id >= len(input) {
			return "", io.EOF
		}
		if ahead := int64(id+1) - delivered.Load(); ahead > maxAhead.Load() {
			maxAhead.Store(ahead)
		}
		return input[id], nil
	})
	recv := morph.ReceiverFunc(func(int, []morph.Result) error {
		time.Sleep(100 * time.Microsecond)
		delivered.Add(1)
		return nil
	})

	if _, err := New(workers, Ordered).Run(context.Background(), r, echo, recv); err != nil {
		t.Fatal(err)
	}
	if maxAhead.Load() > windowPerWorker*workers {
		t.Errorf("reader ran %d documents ahead, window is %d", maxAhead.Load(), windowPerWorker*workers)
	}
}

func TestRunCallbackErrors(t *testing.T) {
	cause := errors.New("boom")

	t.Run("reader", func(t *testing.T) {
		r := morph.ReaderFunc(func(id int) (string, error) {
			if id == 5 {
				return "", cause
			}
			return "doc", nil
		})
		n, err := New(3, Ordered).Run(context.Background(), r, echo, morph.ReceiverFunc(func(int, []morph.Result) error { return nil }))
		var ce *morph.CallbackError
		if !errors.As(err, &ce) || ce.Op != "read" || ce.ID != 5 || !errors.Is(err, cause) {
			t.Fatalf("error = %v, want read callback error for document 5", err)
		}
		if n > 5 {
			t.Errorf("delivered %d documents past the failing read", n)
		}
	})

	t.Run("receiver", func(t *testing.T) {
		recv := morph.ReceiverFunc(func(id int, _ []morph.Result) error {
			if id == 3 {
				return cause
			}
			return nil
		})
		n, err := New(3, Ordered).Run(context.Background(), morph.SliceReader(docs(50)), echo, recv)
		var ce *morph.CallbackError
		if !errors.As(err, &ce) || ce.Op != "receive" || ce.ID != 3 || !errors.Is(err, morph.ErrCallback) {
			t.Fatalf("error = %v, want receive callback error for document 3", err)
		}
		if n != 3 {
			t.Errorf("delivered %d documents, want 3", n)
		}
	})

	t.Run("decode", func(t *testing.T) {
		failing := func(text string) ([]morph.Result, error) {
			if text == "doc-7" {
				return nil, cause
			}
			return echo(text)
		}
		_, err := New(2, Unordered).Run(context.Background(), morph.SliceReader(docs(20)), failing, morph.ReceiverFunc(func(int, []morph.Result) error { return nil }))
		if !errors.Is(err, cause) {
			t.Errorf("error = %v, want decode failure", err)
		}
	})

	t.Run("nil arguments", func(t *testing.T) {
		if _, err := New(1, Ordered).Run(context.Background(), nil, echo, nil); !errors.Is(err, morph.ErrInvalidArgument) {
			t.Errorf("error = %v, want ErrInvalidArgument", err)
		}
	})
}

func TestRunCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	endless := morph.ReaderFunc(func(int) (string, error) { return "doc", nil })
	recv := morph.ReceiverFunc(func(id int, _ []morph.Result) error {
		if id == 2 {
			cancel()
		}
		return nil
	})

	finished := make(chan error, 1)
	go func() {
		_, err := New(4, Ordered).Run(ctx, endless, echo, recv)
		finished <- err
	}()

	select {
	case err := <-finished:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestNewDefaults(t *testing.T) {
	p := New(0, Unordered)
	if p.Workers() < 1 {
		t.Errorf("Workers() = %d, want >= 1", p.Workers())
	}
	if p.Order() != Unordered || p.Order().String() != "unordered" || Ordered.String() != "ordered" {
		t.Error("unexpected order")
	}

	var mu sync.Mutex
	total := 0
	recv := morph.ReceiverFunc(func(int, []morph.Result) error {
		mu.Lock()
		total++
		mu.Unlock()
		return nil
	})
	if n, err := p.Run(context.Background(), morph.SliceReader(docs(10)), echo, recv); err != nil || n != 10 || total != 10 {
		t.Errorf("Run = %d, %v; received %d", n, err, total)
	}
}

func TestRunIntoChannel(t *testing.T) {
	const k = 20
	ch := make(chan morph.Document)
	errc := make(chan error, 1)
	go func() {
		defer close(ch)
		_, err := New(4, Ordered).Run(context.Background(), morph.SliceReader(docs(k)), slowEcho,
			morph.ChanReceiver(context.Background(), ch))
		errc <- err
	}()

	next := 0
	for doc := range ch {
		if doc.ID != next {
			t.Errorf("received document %d, want %d", doc.ID, next)
		}
		if form := doc.Results[0].Tokens[0].Form; form != fmt.Sprintf("doc-%d", doc.ID) {
			t.Errorf("document %d carries results of %q", doc.ID, form)
		}
		next++
	}
	if err := <-errc; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if next != k {
		t.Errorf("received %d documents, want %d", next, k)
	}
}

func TestRunChannelReceiverCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Nobody reads ch, so only the cancelled context can release the receiver.
	ch := make(chan morph.Document)

	_, err := New(2, Ordered).Run(context.Background(), morph.SliceReader(docs(5)), echo, morph.ChanReceiver(ctx, ch))
	if !errors.Is(err, morph.ErrCallback) || !errors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v, want a receive CallbackError wrapping context.Canceled", err)
	}
}
