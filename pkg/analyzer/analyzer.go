// Package analyzer decodes text into ranked morpheme segmentations over a
// prepared lexicon snapshot.
package analyzer

import (
	"github.com/bastiangx/morphserve/pkg/lexicon"
	"github.com/bastiangx/morphserve/pkg/morph"
)

// IAnalyzer is what the engine decodes with. Analyzer implements it.
type IAnalyzer interface {
	// Analyze returns at most topN segmentations of text
	Analyze(snap *lexicon.Prepared, text string, topN int, cutoff float64) ([]morph.Result, error)

	// Stats returns cache statistics
	Stats() map[string]int
}

var _ IAnalyzer = (*Analyzer)(nil)

// Analyzer decodes with fixed penalties and an optional result cache. It is
// safe for concurrent use.
type Analyzer struct {
	opts  Options
	cache *ResultCache
}

// New creates an analyzer. cacheSize <= 0 disables caching.
func New(opts Options, cacheSize int) (*Analyzer, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	cache, err := NewResultCache(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Analyzer{opts: opts, cache: cache}, nil
}

// Options returns the decoder penalties.
func (a *Analyzer) Options() Options { return a.opts }

// Analyze decodes text against snap. A nil snapshot fails with
// morph.ErrNotPrepared.
func (a *Analyzer) Analyze(snap *lexicon.Prepared, text string, topN int, cutoff float64) ([]morph.Result, error) {
	if snap == nil {
		return nil, morph.ErrNotPrepared
	}
	key := cacheKey{generation: snap.Generation(), topN: topN, cutoff: cutoff, text: text}
	if res, ok := a.cache.get(key); ok {
		return res, nil
	}

	d := &Decoder{snap: snap, opts: a.opts}
	res, err := d.Decode(text, topN, cutoff)
	if err != nil {
		return nil, err
	}
	a.cache.put(key, res)
	return res, nil
}

func (a *Analyzer) Stats() map[string]int { return a.cache.Stats() }

// Purge empties the result cache.
func (a *Analyzer) Purge() { a.cache.Purge() }
