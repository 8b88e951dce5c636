// Package extract proposes new words from an unlabeled corpus.
//
// Candidates are substrings of letter runs that occur often, hold together
// (cohesion) and have unpredictable neighbours on both sides (branching
// entropy). Each candidate also gets a per-tag affinity from the known
// morphemes that follow it in the corpus.
package extract

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"time"
	"unicode"

	"github.com/bastiangx/morphserve/pkg/lexicon"
	"github.com/bastiangx/morphserve/pkg/morph"
	"github.com/charmbracelet/log"
	"golang.org/x/text/unicode/norm"
)

// Defaults mirror the engine's public API defaults.
const (
	DefaultMinCount   = 10
	DefaultMaxWordLen = 10
	DefaultMinScore   = 0.25
	DefaultPOSScore   = -3.0

	// maxSuffix bounds the right context kept per occurrence, in runes.
	maxSuffix = 4
)

// Params bounds which substrings become candidates.
type Params struct {
	MinCount   int
	MaxWordLen int
	MinScore   float64
}

// DefaultParams returns the documented defaults.
func DefaultParams() Params {
	return Params{MinCount: DefaultMinCount, MaxWordLen: DefaultMaxWordLen, MinScore: DefaultMinScore}
}

// Validate rejects parameters that cannot produce a meaningful scan.
func (p Params) Validate() error {
	if p.MinCount < 1 {
		return fmt.Errorf("%w: min count %d < 1", morph.ErrInvalidArgument, p.MinCount)
	}
	if p.MaxWordLen < 2 {
		return fmt.Errorf("%w: max word length %d < 2", morph.ErrInvalidArgument, p.MaxWordLen)
	}
	if math.IsNaN(p.MinScore) {
		return fmt.Errorf("%w: min score is NaN", morph.ErrInvalidArgument)
	}
	return nil
}

type ngram struct {
	freq      int
	leftEdge  int
	rightEdge int
	left      map[rune]int
	right     map[rune]int
	suffixes  map[string]int
}

// Extractor scans corpora against a lexicon. It only reads the lexicon.
type Extractor struct {
	lex *lexicon.Lexicon
}

// New binds an extractor to lex.
func New(lex *lexicon.Lexicon) *Extractor {
	return &Extractor{lex: lex}
}

// Counts holds the corpus statistics gathered by Count.
type Counts struct {
	unigrams map[rune]int
	ngrams   map[string]*ngram
	docs     int
	elapsed  time.Duration
}

// Documents returns the number of documents read.
func (c *Counts) Documents() int { return c.docs }

// Count pulls documents 0, 1, 2, ... from r until io.EOF and gathers n-gram
// statistics. It does not use any lexicon.
func Count(r morph.Reader, p Params) (*Counts, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil reader", morph.ErrInvalidArgument)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	c := &Counts{unigrams: make(map[rune]int), ngrams: make(map[string]*ngram)}
	for id := 0; ; id++ {
		text, err := r.Read(id)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &morph.CallbackError{Op: "read", ID: id, Err: err}
		}
		for _, tok := range letterRuns(norm.NFC.String(text)) {
			count(tok, p.MaxWordLen, c.unigrams, c.ngrams)
		}
		c.docs++
	}
	c.elapsed = time.Since(start)
	return c, nil
}

// Extract is Count followed by Score. Candidates are ordered by score, then
// frequency (both descending), then form.
func (x *Extractor) Extract(r morph.Reader, p Params) ([]morph.Candidate, error) {
	c, err := Count(r, p)
	if err != nil {
		return nil, err
	}
	return x.Score(c, p), nil
}

// Score turns counts into candidates, reading the lexicon for known words,
// particles and endings.
func (x *Extractor) Score(counts *Counts, p Params) []morph.Candidate {
	start := time.Now()
	unigrams, ngrams := counts.unigrams, counts.ngrams

	var cands []morph.Candidate
	for form, g := range ngrams {
		if g.freq < p.MinCount || x.lex.Contains(form) {
			continue
		}
		first, _ := firstRune(form)
		score := cohesion(g.freq, unigrams[first], runeLen(form)) *
			math.Sqrt(boundary(g.left, g.leftEdge)*boundary(g.right, g.rightEdge))
		if score < p.MinScore {
			continue
		}
		cands = append(cands, morph.Candidate{
			Form:     form,
			Score:    score,
			Freq:     g.freq,
			POSScore: x.affinity(g.suffixes, g.freq),
		})
	}
	cands = x.dropInflected(cands)

	slices.SortFunc(cands, func(a, b morph.Candidate) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Freq, a.Freq); c != 0 {
			return c
		}
		return cmp.Compare(a.Form, b.Form)
	})

	log.Debugf("Extracted %d candidates from %d documents (%d n-grams) in %v",
		len(cands), counts.docs, len(ngrams), counts.elapsed+time.Since(start))
	return cands
}

// letterRuns splits text into maximal runs of letters.
func letterRuns(text string) [][]rune {
	var runs [][]rune
	var cur []rune
	for _, r := range text {
		if unicode.IsLetter(r) {
			cur = append(cur, r)
			continue
		}
		if len(cur) > 0 {
			runs = append(runs, cur)
			cur = nil
		}
	}
	if len(cur) > 0 {
		runs = append(runs, cur)
	}
	return runs
}

func count(tok []rune, maxLen int, unigrams map[rune]int, ngrams map[string]*ngram) {
	m := len(tok)
	for i := 0; i < m; i++ {
		unigrams[tok[i]]++
		for l := 2; l <= maxLen && i+l <= m; l++ {
			w := string(tok[i : i+l])
			g := ngrams[w]
			if g == nil {
				g = &ngram{
					left:     make(map[rune]int),
					right:    make(map[rune]int),
					suffixes: make(map[string]int),
				}
				ngrams[w] = g
			}
			g.freq++
			if i == 0 {
				g.leftEdge++
			} else {
				g.left[tok[i-1]]++
			}
			end := i + l
			if end == m {
				g.rightEdge++
			} else {
				g.right[tok[end]]++
			}
			g.suffixes[string(tok[end:min(m, end+maxSuffix)])]++
		}
	}
}

// cohesion is the geometric mean of the forward extension probabilities:
// (freq(w) / freq(w[0]))^(1/(len-1)).
func cohesion(freq, firstFreq, length int) float64 {
	if firstFreq == 0 || length < 2 {
		return 0
	}
	return math.Pow(float64(freq)/float64(firstFreq), 1/float64(length-1))
}

// boundary turns the branching entropy of a neighbour distribution into a
// factor in [0, 1). Token edges count as distinct neighbours each.
func boundary(neigh map[rune]int, edge int) float64 {
	n := edge
	for _, c := range neigh {
		n += c
	}
	if n == 0 {
		return 0
	}
	total := float64(n)
	h := float64(edge) / total * math.Log(total)
	for _, c := range neigh {
		p := float64(c) / total
		h -= p * math.Log(p)
	}
	return 1 - math.Exp(-h)
}

// affinity scores each tag by how often a supporting context follows the
// form: token ends and particles, copulas or nominal suffixes support nouns,
// endings support predicates.
func (x *Extractor) affinity(suffixes map[string]int, total int) [morph.NumPOS]float64 {
	var noun, pred int
	for s, c := range suffixes {
		if s == "" {
			noun += c
			continue
		}
		var n, p bool
		for _, m := range x.lex.PrefixesOf(s) {
			switch {
			case supportsNoun(m.Tag):
				n = true
			case m.Tag.IsEnding():
				p = true
			}
		}
		if n {
			noun += c
		}
		if p {
			pred += c
		}
	}

	denom := float64(total) + 1
	floor := math.Log(0.5 / denom)
	var scores [morph.NumPOS]float64
	for i := range scores {
		scores[i] = floor
	}
	nounScore := math.Log((float64(noun) + 0.5) / denom)
	predScore := math.Log((float64(pred) + 0.5) / denom)
	scores[morph.NNG], scores[morph.NNP] = nounScore, nounScore
	scores[morph.VV], scores[morph.VA] = predScore, predScore
	return scores
}

func supportsNoun(tag morph.POS) bool {
	return tag.IsParticle() || tag == morph.VCP || tag == morph.XSN || tag == morph.XSV || tag == morph.XSA
}

// dropInflected removes candidates that are a shorter candidate or known
// word followed by a known particle, ending or suffix.
func (x *Extractor) dropInflected(cands []morph.Candidate) []morph.Candidate {
	known := make(map[string]bool, len(cands))
	for _, c := range cands {
		known[c.Form] = true
	}
	kept := cands[:0]
	for _, c := range cands {
		if !x.inflected(c.Form, known) {
			kept = append(kept, c)
		}
	}
	return kept
}

func (x *Extractor) inflected(form string, known map[string]bool) bool {
	r := []rune(form)
	for k := 2; k < len(r); k++ {
		stem := string(r[:k])
		if !known[stem] && !x.lex.Contains(stem) {
			continue
		}
		for _, m := range x.lex.Lookup(string(r[k:])) {
			if supportsNoun(m.Tag) || m.Tag.IsEnding() {
				return true
			}
		}
	}
	return false
}

// Filter keeps the candidates whose best tag affinity reaches threshold, in
// their original order. It never touches the lexicon.
func Filter(cands []morph.Candidate, threshold float64) []morph.Candidate {
	var out []morph.Candidate
	for _, c := range cands {
		if c.MaxPOSScore() >= threshold {
			out = append(out, c)
		}
	}
	return out
}

// Entries converts candidates into lexicon entries tagged with their best
// tag and scored with that tag's affinity.
func Entries(cands []morph.Candidate) []morph.Morpheme {
	out := make([]morph.Morpheme, len(cands))
	for i, c := range cands {
		tag, score := c.BestPOS()
		out[i] = morph.Morpheme{Form: c.Form, Tag: tag, Score: score}
	}
	return out
}

// AddWords inserts every candidate into the lexicon, all or nothing.
func (x *Extractor) AddWords(cands []morph.Candidate) error {
	if len(cands) == 0 {
		return nil
	}
	_, err := x.lex.InsertBatch(Entries(cands))
	return err
}

func firstRune(s string) (rune, bool) {
	for _, r := range s {
		return r, true
	}
	return 0, false
}

func runeLen(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}
