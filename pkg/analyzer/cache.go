package analyzer

import (
	"sync/atomic"

	"github.com/bastiangx/morphserve/pkg/morph"
	"github.com/charmbracelet/log"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of decoded texts kept per analyzer.
const DefaultCacheSize = 4096

type cacheKey struct {
	generation uint64
	topN       int
	cutoff     float64
	text       string
}

// ResultCache keeps recent decodes. Entries are tied to a snapshot
// generation, so a new Prepare never serves stale results.
type ResultCache struct {
	entries *lru.Cache[cacheKey, []morph.Result]
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewResultCache returns a cache holding up to size texts, or nil when size
// is not positive.
func NewResultCache(size int) (*ResultCache, error) {
	if size <= 0 {
		return nil, nil
	}
	entries, err := lru.New[cacheKey, []morph.Result](size)
	if err != nil {
		return nil, err
	}
	log.Debugf("Created result cache for %d texts", size)
	return &ResultCache{entries: entries}, nil
}

func (rc *ResultCache) get(k cacheKey) ([]morph.Result, bool) {
	if rc == nil {
		return nil, false
	}
	res, ok := rc.entries.Get(k)
	if !ok {
		rc.misses.Add(1)
		return nil, false
	}
	rc.hits.Add(1)
	return cloneResults(res), true
}

func (rc *ResultCache) put(k cacheKey, res []morph.Result) {
	if rc == nil {
		return
	}
	rc.entries.Add(k, cloneResults(res))
}

// Purge drops every cached result.
func (rc *ResultCache) Purge() {
	if rc == nil {
		return
	}
	rc.entries.Purge()
}

func (rc *ResultCache) Stats() map[string]int {
	if rc == nil {
		return map[string]int{}
	}
	return map[string]int{
		"cacheEntries": rc.entries.Len(),
		"cacheHits":    int(rc.hits.Load()),
		"cacheMisses":  int(rc.misses.Load()),
	}
}

func cloneResults(in []morph.Result) []morph.Result {
	out := make([]morph.Result, len(in))
	for i, r := range in {
		out[i] = morph.Result{Tokens: append([]morph.Token(nil), r.Tokens...), Score: r.Score}
	}
	return out
}
