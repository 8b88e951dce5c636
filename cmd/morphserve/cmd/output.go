package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bastiangx/morphserve/pkg/morph"
	"github.com/bastiangx/morphserve/pkg/stopwords"
	"github.com/mattn/go-runewidth"
)

// formColumn is the display width of the form column; Hangul is double width.
const formColumn = 16

// openCorpus returns a line reader over path, or stdin for "" and "-".
func openCorpus(path string) (*morph.LineReader, func() error, error) {
	if path == "" || path == "-" {
		return morph.NewLineReader(os.Stdin), func() error { return nil }, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: opening corpus: %w", morph.ErrIO, err)
	}
	return morph.NewLineReader(f), f.Close, nil
}

// resultWriter prints one line per result: id, rank, score, then tokens.
type resultWriter struct {
	w    *bufio.Writer
	stop *stopwords.Set
}

func newResultWriter(w io.Writer, stop *stopwords.Set) *resultWriter {
	return &resultWriter{w: bufio.NewWriter(w), stop: stop}
}

func (rw *resultWriter) Receive(id int, results []morph.Result) error {
	for rank, r := range results {
		tokens := r.Tokens
		if rw.stop != nil {
			tokens = rw.stop.Filter(tokens)
		}
		parts := make([]string, len(tokens))
		for i, t := range tokens {
			parts[i] = t.String()
		}
		if _, err := fmt.Fprintf(rw.w, "%d\t%d\t%.4f\t%s\n", id, rank+1, r.Score, strings.Join(parts, " ")); err != nil {
			return err
		}
	}
	return nil
}

func (rw *resultWriter) Flush() error { return rw.w.Flush() }

func printCandidates(w io.Writer, cands []morph.Candidate) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s %8s %8s %6s %8s\n", runewidth.FillRight("form", formColumn), "score", "freq", "tag", "pos")
	for _, c := range cands {
		tag, pos := c.BestPOS()
		fmt.Fprintf(bw, "%s %8.4f %8d %6s %8.3f\n", runewidth.FillRight(c.Form, formColumn), c.Score, c.Freq, tag, pos)
	}
	return bw.Flush()
}
