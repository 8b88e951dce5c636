// Package morph holds the data model shared by the lexicon, extractor,
// analyzer and pipeline packages.
package morph

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"strings"
)

// Morpheme is one lexicon entry, unique by (Form, Tag).
type Morpheme struct {
	Form  string  `yaml:"form" toml:"form" msgpack:"f"`
	Tag   POS     `yaml:"tag" toml:"tag" msgpack:"t"`
	Score float64 `yaml:"score" toml:"score" msgpack:"s"`
}

func (m Morpheme) String() string { return m.Form + "/" + m.Tag.String() }

// Token is one segment of an analysis. Start and Len count runes of the
// text as the caller passed it, before any normalization; Form is the
// input spelled there.
type Token struct {
	Form  string
	Tag   POS
	Start int
	Len   int
}

// End returns the rune offset just past the token.
func (t Token) End() int { return t.Start + t.Len }

func (t Token) String() string { return t.Form + "/" + t.Tag.String() }

// Result is one ranked segmentation of a text.
type Result struct {
	Tokens []Token
	Score  float64
}

func (r Result) String() string {
	parts := make([]string, len(r.Tokens))
	for i, t := range r.Tokens {
		parts[i] = t.String()
	}
	return fmt.Sprintf("%s (%.3f)", strings.Join(parts, " + "), r.Score)
}

// Candidate is a word proposed by corpus extraction.
type Candidate struct {
	Form     string
	Score    float64 // cohesion × boundary entropy, in [0, 1]
	Freq     int
	POSScore [NumPOS]float64 // log affinity per tag
}

// BestPOS returns the tag with the highest affinity, preferring NNP on ties.
func (c Candidate) BestPOS() (POS, float64) {
	best, score := NNP, c.POSScore[NNP]
	for _, p := range AllPOS() {
		if c.POSScore[p] > score {
			best, score = p, c.POSScore[p]
		}
	}
	return best, score
}

// MaxPOSScore is the best affinity over all tags.
func (c Candidate) MaxPOSScore() float64 {
	m := math.Inf(-1)
	for _, s := range c.POSScore {
		if s > m {
			m = s
		}
	}
	return m
}

// Reader supplies documents by sequential id, starting at 0. It returns
// io.EOF once the ids are exhausted; any other error aborts the caller.
type Reader interface {
	Read(id int) (string, error)
}

// ReaderFunc adapts a function to Reader.
type ReaderFunc func(id int) (string, error)

func (f ReaderFunc) Read(id int) (string, error) { return f(id) }

// Receiver accepts the analysis of one document.
type Receiver interface {
	Receive(id int, results []Result) error
}

// ReceiverFunc adapts a function to Receiver.
type ReceiverFunc func(id int, results []Result) error

func (f ReceiverFunc) Receive(id int, results []Result) error { return f(id, results) }

// SliceReader serves docs[id] and io.EOF past the end.
func SliceReader(docs []string) Reader {
	return ReaderFunc(func(id int) (string, error) {
		if id < 0 || id >= len(docs) {
			return "", io.EOF
		}
		return docs[id], nil
	})
}

// LineReader serves one line of r per id. Ids must be requested in order;
// it is a single pass over r.
type LineReader struct {
	scanner *bufio.Scanner
	next    int
}

// NewLineReader wraps r with a 1 MiB line buffer.
func NewLineReader(r io.Reader) *LineReader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), 1024*1024)
	return &LineReader{scanner: s}
}

func (lr *LineReader) Read(id int) (string, error) {
	if id != lr.next {
		return "", fmt.Errorf("%w: line reader expects id %d, got %d", ErrInvalidArgument, lr.next, id)
	}
	if !lr.scanner.Scan() {
		if err := lr.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	lr.next++
	return lr.scanner.Text(), nil
}

// Document pairs an id with its results.
type Document struct {
	ID      int
	Results []Result
}

// ChanReceiver forwards every document to ch, giving up when ctx is done.
func ChanReceiver(ctx context.Context, ch chan<- Document) Receiver {
	return ReceiverFunc(func(id int, results []Result) error {
		select {
		case ch <- Document{ID: id, Results: results}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}
