package analyzer

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"unicode/utf8"

	"github.com/bastiangx/morphserve/pkg/lexicon"
	"github.com/bastiangx/morphserve/pkg/morph"
	"golang.org/x/text/unicode/norm"
)

// Options are the out-of-vocabulary penalties. All are positive costs.
type Options struct {
	OOVPenalty     float64 `toml:"oov_penalty"`
	OOVCharPenalty float64 `toml:"oov_char_penalty"`
	ClassPenalty   float64 `toml:"class_penalty"`
}

// DefaultOptions returns the standard penalties.
func DefaultOptions() Options {
	return Options{OOVPenalty: 8, OOVCharPenalty: 1, ClassPenalty: 2}
}

func (o Options) validate() error {
	for _, v := range []float64{o.OOVPenalty, o.OOVCharPenalty, o.ClassPenalty} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: penalty %v must be finite and >= 0", morph.ErrInvalidArgument, v)
		}
	}
	return nil
}

// node is one partial segmentation. Nodes are shared between paths and never
// modified after creation.
type node struct {
	prev  *node
	tok   morph.Token
	score float64
	seq   uint64
}

func (n *node) root() bool { return n.prev == nil }

// Decoder runs beam search over one prepared snapshot. It holds no mutable
// state and may be used from many goroutines.
type Decoder struct {
	snap *lexicon.Prepared
	opts Options
}

// NewDecoder binds a decoder to snap.
func NewDecoder(snap *lexicon.Prepared, opts Options) (*Decoder, error) {
	if snap == nil {
		return nil, morph.ErrNotPrepared
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Decoder{snap: snap, opts: opts}, nil
}

// Snapshot returns the snapshot the decoder reads.
func (d *Decoder) Snapshot() *lexicon.Prepared { return d.snap }

type lattice struct {
	d     *Decoder
	input []rune
	// runes is the NFC form matched against the lexicon. offset[i] is the
	// input rune index where NFC rune i starts, or -1 inside a segment that
	// normalization rewrote; offset[len(runes)] is len(input).
	runes  []rune
	offset []int
	beams  [][]*node
	seq    uint64
	topN   int
	cutoff float64
}

// Decode segments text into at most topN results sorted by descending
// score. Matching uses the NFC form of text, but token offsets, lengths and
// forms refer to the runes of text as given. Cutoff in [0, 1]
// drops any partial path whose probability is below cutoff times the best
// one at the same position; 0 disables it.
func (d *Decoder) Decode(text string, topN int, cutoff float64) ([]morph.Result, error) {
	if topN < 1 {
		return nil, fmt.Errorf("%w: topN %d < 1", morph.ErrInvalidArgument, topN)
	}
	if cutoff < 0 || cutoff > 1 || math.IsNaN(cutoff) {
		return nil, fmt.Errorf("%w: cutoff threshold %v outside [0, 1]", morph.ErrInvalidArgument, cutoff)
	}

	lt := &lattice{
		d:      d,
		input:  []rune(text),
		topN:   topN,
		cutoff: cutoff,
	}
	lt.runes, lt.offset = normalize(text)
	return lt.run(), nil
}

// normalize returns the NFC runes of text and their input offsets. Text is
// normalized one segment at a time, so a composed syllable maps back to the
// whole run of jamo it replaced.
func normalize(text string) ([]rune, []int) {
	if norm.NFC.IsNormalString(text) {
		runes := []rune(text)
		offset := make([]int, len(runes)+1)
		for i := range offset {
			offset[i] = i
		}
		return runes, offset
	}

	runes := make([]rune, 0, len(text))
	offset := make([]int, 0, len(text)+1)
	pos := 0
	for rest := text; rest != ""; {
		n := norm.NFC.NextBoundaryInString(rest, true)
		if n <= 0 {
			n = len(rest)
		}
		seg := rest[:n]
		rest = rest[n:]

		out := norm.NFC.String(seg)
		if out == seg {
			for _, r := range seg {
				runes = append(runes, r)
				offset = append(offset, pos)
				pos++
			}
			continue
		}
		for k, r := range []rune(out) {
			runes = append(runes, r)
			if k == 0 {
				offset = append(offset, pos)
			} else {
				offset = append(offset, -1)
			}
		}
		pos += utf8.RuneCountInString(seg)
	}
	return runes, append(offset, pos)
}

// boundary reports whether a token may start or end before NFC rune i.
func (lt *lattice) boundary(i int) bool { return lt.offset[i] >= 0 }

// token builds the segment covering NFC runes [i, j) from the input text.
func (lt *lattice) token(i, j int, tag morph.POS) morph.Token {
	start, end := lt.offset[i], lt.offset[j]
	return morph.Token{Form: string(lt.input[start:end]), Tag: tag, Start: start, Len: end - start}
}

func (lt *lattice) run() []morph.Result {
	n := len(lt.runes)
	lt.beams = make([][]*node, n+1)
	lt.beams[0] = []*node{{}}

	classes := make([]charClass, n)
	for i, r := range lt.runes {
		classes[i] = classify(r)
	}
	matches := lt.matchAll(classes)

	for i := 0; i < n; i++ {
		beam := lt.prune(lt.beams[i])
		lt.beams[i] = beam
		if len(beam) == 0 {
			continue
		}
		if classes[i] == classSpace && lt.boundary(i+1) {
			lt.beams[i+1] = beam
			continue
		}

		for _, e := range matches[i] {
			lt.extend(beam, lt.token(i, i+e.Runes, e.Tag), i+e.Runes, e.Weight)
		}
		if len(matches[i]) > 0 {
			continue
		}

		// Unknown run: same class, stops before whitespace or a matching
		// position, and never inside a normalization segment.
		j := i + 1
		for j < n && (!lt.boundary(j) || (classes[j] == classes[i] && len(matches[j]) == 0)) {
			j++
		}
		tok := lt.token(i, j, classes[i].tag())
		weight := -lt.d.opts.ClassPenalty
		if tok.Tag == morph.UN {
			weight = -(lt.d.opts.OOVPenalty + lt.d.opts.OOVCharPenalty*float64(j-i-1))
		}
		lt.extend(beam, tok, j, weight)
	}

	final := lt.prune(lt.beams[n])
	results := make([]morph.Result, len(final))
	for k, end := range final {
		results[k] = end.result()
	}
	return results
}

// matchAll collects, per position, the lexicon entries spelled there.
func (lt *lattice) matchAll(classes []charClass) [][]lexicon.Entry {
	n := len(lt.runes)
	maxLen := lt.d.snap.MaxFormLen()
	matches := make([][]lexicon.Entry, n)
	for i := 0; i < n; i++ {
		if classes[i] == classSpace || !lt.boundary(i) {
			continue
		}
		end := min(n, i+maxLen)
		lt.d.snap.MatchPrefixes(string(lt.runes[i:end]), func(e lexicon.Entry) {
			if lt.boundary(i + e.Runes) {
				matches[i] = append(matches[i], e)
			}
		})
	}
	return matches
}

// extend appends tok, which ends before NFC rune end, to every path in beam.
func (lt *lattice) extend(beam []*node, tok morph.Token, end int, weight float64) {
	tr := lt.d.snap.Transitions()
	for _, p := range beam {
		edge := tr.Start(tok.Tag)
		if !p.root() {
			edge = tr.Get(p.tok.Tag, tok.Tag)
		}
		lt.seq++
		lt.beams[end] = append(lt.beams[end], &node{
			prev:  p,
			tok:   tok,
			score: p.score + edge + weight,
			seq:   lt.seq,
		})
	}
}

// prune orders a beam by score, then creation order, and keeps at most topN
// paths within the cutoff of the best.
func (lt *lattice) prune(beam []*node) []*node {
	if len(beam) <= 1 {
		return beam
	}
	slices.SortFunc(beam, func(a, b *node) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
	if lt.cutoff > 0 {
		floor := beam[0].score + math.Log(lt.cutoff)
		keep := 1
		for keep < len(beam) && beam[keep].score >= floor {
			keep++
		}
		beam = beam[:keep]
	}
	if len(beam) > lt.topN {
		beam = beam[:lt.topN]
	}
	return beam
}

func (n *node) result() morph.Result {
	var tokens []morph.Token
	for p := n; !p.root(); p = p.prev {
		tokens = append(tokens, p.tok)
	}
	slices.Reverse(tokens)
	return morph.Result{Tokens: tokens, Score: n.score}
}
