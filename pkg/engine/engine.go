// Package engine ties the lexicon, extractor, analyzer and worker pool into
// one explicit instance.
//
// Mutations (user words, dictionaries, extracted words, Prepare) are
// serialized by the engine and rejected with morph.ErrBusy while a streaming
// analysis is running. Analysis reads an immutable snapshot and may run from
// any number of goroutines.
package engine

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bastiangx/morphserve/internal/logger"
	"github.com/bastiangx/morphserve/pkg/analyzer"
	"github.com/bastiangx/morphserve/pkg/dictionary"
	"github.com/bastiangx/morphserve/pkg/extract"
	"github.com/bastiangx/morphserve/pkg/lexicon"
	"github.com/bastiangx/morphserve/pkg/morph"
	"github.com/bastiangx/morphserve/pkg/pipeline"
	"github.com/bastiangx/morphserve/pkg/stopwords"
	"github.com/charmbracelet/log"
)

// Version of the engine and its model format.
const Version = "0.3.0"

// Flags toggle construction features.
type Flags uint

const (
	// OptionMmap maps the binary model file instead of reading it.
	OptionMmap = Flags(dictionary.OptionMmap)
	// OptionNoTransitions ignores the model's tag transition table.
	OptionNoTransitions = Flags(dictionary.OptionNoTransitions)
	// OptionLoadDefaultStopwords fills Stopwords() with the bundled list.
	OptionLoadDefaultStopwords Flags = 1 << 8

	OptionDefault = OptionMmap
)

// Defaults of the public operations.
const (
	DefaultTopN      = 1
	DefaultUserTag   = morph.NNP
	DefaultUserScore = dictionary.DefaultUserScore
)

// Options configure New.
type Options struct {
	// Workers for streaming analysis; 0 selects runtime.NumCPU().
	Workers int
	// ModelPath is the directory holding morph.bin or base.dict. Empty
	// starts from an empty lexicon.
	ModelPath string
	Flags     Flags
	Order     pipeline.Order
	// CacheSize is the number of decoded texts kept; 0 disables the cache.
	CacheSize int
	Decode    analyzer.Options
	// CutoffThreshold is the initial pruning threshold in [0, 1].
	CutoffThreshold float64
	// Analyzer replaces the built-in analyzer; Decode and CacheSize are
	// then ignored.
	Analyzer analyzer.IAnalyzer
}

// DefaultOptions returns options for a model in dir.
func DefaultOptions(dir string) Options {
	return Options{
		ModelPath: dir,
		Flags:     OptionDefault,
		Order:     pipeline.Ordered,
		CacheSize: analyzer.DefaultCacheSize,
		Decode:    analyzer.DefaultOptions(),
	}
}

// Engine is a morphological analyzer with its own lexicon.
type Engine struct {
	mu      sync.Mutex
	lex     *lexicon.Lexicon
	snap    atomic.Pointer[lexicon.Prepared]
	an      analyzer.IAnalyzer
	pool    *pipeline.Pool
	stop    *stopwords.Set
	cutoff  atomic.Uint64 // math.Float64bits
	streams atomic.Int32
	logger  *log.Logger
}

// New builds an engine and loads its base model. A model that cannot be
// found or parsed fails with an error matching morph.ErrModelLoad.
func New(opts Options) (*Engine, error) {
	if opts.Workers < 0 {
		return nil, fmt.Errorf("%w: workers %d < 0", morph.ErrInvalidArgument, opts.Workers)
	}
	an := opts.Analyzer
	if an == nil {
		builtin, err := analyzer.New(opts.Decode, opts.CacheSize)
		if err != nil {
			return nil, err
		}
		an = builtin
	}

	e := &Engine{
		lex:    lexicon.New(),
		an:     an,
		pool:   pipeline.New(opts.Workers, opts.Order),
		stop:   stopwords.New(),
		logger: logger.New("engine"),
	}
	if err := e.SetCutoffThreshold(opts.CutoffThreshold); err != nil {
		return nil, err
	}
	if opts.Flags&OptionLoadDefaultStopwords != 0 {
		e.stop = stopwords.Default()
	}

	if opts.ModelPath != "" {
		start := time.Now()
		model, err := dictionary.LoadModel(opts.ModelPath, dictionary.Option(opts.Flags))
		if err != nil {
			return nil, err
		}
		if _, err := model.Apply(e.lex); err != nil {
			return nil, err
		}
		e.logger.Debugf("Loaded %d entries from %s in %v", e.lex.Len(), model.Source, time.Since(start))
	}
	return e, nil
}

// Version returns the engine version string.
func (e *Engine) Version() string { return Version }

// Workers returns the streaming worker count.
func (e *Engine) Workers() int { return e.pool.Workers() }

// Stopwords returns the engine's stopword set.
func (e *Engine) Stopwords() *stopwords.Set { return e.stop }

// mutate runs fn under the engine lock unless a stream is in flight.
func (e *Engine) mutate(fn func() error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n := e.streams.Load(); n > 0 {
		return fmt.Errorf("%w: %d streaming analyses in flight", morph.ErrBusy, n)
	}
	return fn()
}

// AddUserWord inserts one entry and returns the entry count. The change is
// visible to analysis after the next Prepare.
func (e *Engine) AddUserWord(form string, tag morph.POS, score float64) (int, error) {
	var n int
	err := e.mutate(func() error {
		var err error
		n, err = e.lex.Insert(form, tag, score)
		return err
	})
	return n, err
}

// LoadUserDictionary inserts every record of path and returns how many were
// added. A malformed record leaves the lexicon unchanged.
func (e *Engine) LoadUserDictionary(path string) (int, error) {
	entries, err := dictionary.LoadUserDictionary(path)
	if err != nil {
		return 0, err
	}
	var n int
	err = e.mutate(func() error {
		var err error
		n, err = e.lex.InsertBatch(entries)
		return err
	})
	if err == nil {
		e.logger.Debugf("Loaded %d user entries from %s", n, path)
	}
	return n, err
}

// ExtractWords proposes candidates from the corpus served by r. The reader
// runs without engine locks held, so it may call back into the engine.
func (e *Engine) ExtractWords(r morph.Reader, p extract.Params) ([]morph.Candidate, error) {
	counts, err := extract.Count(r, p)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return extract.New(e.lex).Score(counts, p), nil
}

// FilterExtractedWords drops candidates whose best tag affinity is below
// posScore. It does not touch the lexicon.
func (e *Engine) FilterExtractedWords(cands []morph.Candidate, posScore float64) []morph.Candidate {
	return extract.Filter(cands, posScore)
}

// ExtractFilterWords is ExtractWords followed by FilterExtractedWords.
func (e *Engine) ExtractFilterWords(r morph.Reader, p extract.Params, posScore float64) ([]morph.Candidate, error) {
	cands, err := e.ExtractWords(r, p)
	if err != nil {
		return nil, err
	}
	return extract.Filter(cands, posScore), nil
}

// ExtractAddWords extracts, filters and inserts the survivors, returning
// exactly the inserted candidates. Analysis needs a new Prepare afterwards.
// As in ExtractWords, r is read before the lexicon is locked.
func (e *Engine) ExtractAddWords(r morph.Reader, p extract.Params, posScore float64) ([]morph.Candidate, error) {
	counts, err := extract.Count(r, p)
	if err != nil {
		return nil, err
	}
	var accepted []morph.Candidate
	err = e.mutate(func() error {
		x := extract.New(e.lex)
		accepted = extract.Filter(x.Score(counts, p), posScore)
		return x.AddWords(accepted)
	})
	if err != nil {
		return nil, err
	}
	e.logger.Debugf("Added %d extracted words", len(accepted))
	return accepted, nil
}

// SetCutoffThreshold sets the decode pruning threshold in [0, 1]. Higher
// values keep fewer alternatives; 0 disables pruning.
func (e *Engine) SetCutoffThreshold(t float64) error {
	if t < 0 || t > 1 || math.IsNaN(t) {
		return fmt.Errorf("%w: cutoff threshold %v outside [0, 1]", morph.ErrInvalidArgument, t)
	}
	e.cutoff.Store(math.Float64bits(t))
	return nil
}

// CutoffThreshold returns the current pruning threshold.
func (e *Engine) CutoffThreshold() float64 {
	return math.Float64frombits(e.cutoff.Load())
}

// Prepare compiles the lexicon for analysis and returns the snapshot size.
func (e *Engine) Prepare() (int, error) {
	var size int
	err := e.mutate(func() error {
		snap, err := e.lex.Prepare()
		if err != nil {
			return err
		}
		e.snap.Store(snap)
		size = snap.Size()
		return nil
	})
	return size, err
}

// Prepared reports whether Analyze can run.
func (e *Engine) Prepared() bool { return e.snap.Load() != nil }

// Analyze returns at most topN segmentations of text, best first.
func (e *Engine) Analyze(text string, topN int) ([]morph.Result, error) {
	return e.an.Analyze(e.snap.Load(), text, topN, e.CutoffThreshold())
}

// AnalyzeStream analyzes every document of r on the worker pool and hands
// each result list to recv exactly once. It returns the number of delivered
// documents.
func (e *Engine) AnalyzeStream(ctx context.Context, topN int, r morph.Reader, recv morph.Receiver) (int, error) {
	if r == nil || recv == nil {
		return 0, fmt.Errorf("%w: reader and receiver are required", morph.ErrInvalidArgument)
	}
	if topN < 1 {
		return 0, fmt.Errorf("%w: topN %d < 1", morph.ErrInvalidArgument, topN)
	}

	e.mu.Lock()
	snap := e.snap.Load()
	if snap == nil {
		e.mu.Unlock()
		return 0, morph.ErrNotPrepared
	}
	e.streams.Add(1)
	e.mu.Unlock()
	defer e.streams.Add(-1)

	cutoff := e.CutoffThreshold()
	return e.pool.Run(ctx, r, func(text string) ([]morph.Result, error) {
		return e.an.Analyze(snap, text, topN, cutoff)
	}, recv)
}

// recorder remembers every document it serves so a second pass does not
// call the caller's reader again.
type recorder struct {
	r    morph.Reader
	docs []string
}

func (rec *recorder) Read(id int) (string, error) {
	text, err := rec.r.Read(id)
	if err == nil {
		rec.docs = append(rec.docs, text)
	}
	return text, err
}

// Perform runs ExtractAddWords, Prepare and AnalyzeStream over the same
// corpus, strictly in that order. r is read once per id.
func (e *Engine) Perform(ctx context.Context, topN int, r morph.Reader, recv morph.Receiver,
	p extract.Params, posScore float64) ([]morph.Candidate, int, error) {
	if r == nil || recv == nil {
		return nil, 0, fmt.Errorf("%w: reader and receiver are required", morph.ErrInvalidArgument)
	}
	if topN < 1 {
		return nil, 0, fmt.Errorf("%w: topN %d < 1", morph.ErrInvalidArgument, topN)
	}

	rec := &recorder{r: r}
	accepted, err := e.ExtractAddWords(rec, p, posScore)
	if err != nil {
		return nil, 0, err
	}
	if _, err := e.Prepare(); err != nil {
		return accepted, 0, err
	}
	n, err := e.AnalyzeStream(ctx, topN, morph.SliceReader(rec.docs), recv)
	return accepted, n, err
}

// Lookup returns the lexicon entries spelled form.
func (e *Engine) Lookup(form string) []morph.Morpheme {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lex.Lookup(form)
}

// Entries returns a copy of every lexicon entry.
func (e *Engine) Entries() []morph.Morpheme {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lex.Entries()
}

// Stats returns statistics about the engine
func (e *Engine) Stats() map[string]int {
	e.mu.Lock()
	stats := map[string]int{
		"entries":    e.lex.Len(),
		"maxFormLen": e.lex.MaxFormLen(),
		"dirty":      boolInt(e.lex.Dirty()),
	}
	e.mu.Unlock()

	if snap := e.snap.Load(); snap != nil {
		stats["preparedSize"] = snap.Size()
		stats["generation"] = int(snap.Generation())
	}
	stats["workers"] = e.pool.Workers()
	stats["streams"] = int(e.streams.Load())
	stats["stopwords"] = e.stop.Len()
	for k, v := range e.an.Stats() {
		stats[k] = v
	}
	return stats
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var flagNames = map[string]Flags{
	"mmap":              OptionMmap,
	"no_transitions":    OptionNoTransitions,
	"default_stopwords": OptionLoadDefaultStopwords,
}

// ParseFlags maps option names such as "mmap" onto a Flags mask.
func ParseFlags(names []string) (Flags, error) {
	var f Flags
	for _, name := range names {
		flag, ok := flagNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return 0, fmt.Errorf("%w: unknown engine option %q", morph.ErrInvalidArgument, name)
		}
		f |= flag
	}
	return f, nil
}
