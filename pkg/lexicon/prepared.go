package lexicon

import (
	"fmt"
	"unicode/utf8"

	"github.com/bastiangx/morphserve/pkg/morph"
	"github.com/charmbracelet/log"
	"github.com/tchap/go-patricia/v2/patricia"
)

// Entry is a morpheme compiled for decoding.
type Entry struct {
	morph.Morpheme
	Weight float64
	Runes  int
}

// Prepared is an immutable decoding snapshot of a Lexicon.
type Prepared struct {
	trie        *patricia.Trie // form -> []Entry
	transitions *Transitions
	size        int
	maxFormLen  int
	generation  uint64
}

// Prepare compiles the current entries into a snapshot. Without intervening
// insertions it returns the previous snapshot.
func (l *Lexicon) Prepare() (*Prepared, error) {
	if l.Len() == 0 {
		return nil, morph.ErrEmptyLexicon
	}
	if !l.Dirty() {
		return l.prepared, nil
	}

	trie := patricia.NewTrie()
	err := l.trie.Visit(func(key patricia.Prefix, item patricia.Item) error {
		fe := item.(*formEntries)
		compiled := make([]Entry, len(fe.ids))
		for i, id := range fe.ids {
			m := l.entries[id]
			compiled[i] = Entry{
				Morpheme: m,
				Weight:   Weight(m.Score),
				Runes:    utf8.RuneCountInString(m.Form),
			}
		}
		trie.Insert(append(patricia.Prefix(nil), key...), compiled)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("compile lexicon: %w", err)
	}

	l.generation++
	l.prepared = &Prepared{
		trie:        trie,
		transitions: l.transitions.Clone(),
		size:        l.Len(),
		maxFormLen:  l.maxFormLen,
		generation:  l.generation,
	}
	l.dirty = false
	log.Debugf("Prepared lexicon generation %d: %d entries", l.generation, l.Len())
	return l.prepared, nil
}

// Prepared returns the last snapshot, or nil.
func (l *Lexicon) Prepared() *Prepared { return l.prepared }

// Size is the number of entries compiled into the snapshot.
func (p *Prepared) Size() int { return p.size }

// MaxFormLen is the longest form in runes.
func (p *Prepared) MaxFormLen() int { return p.maxFormLen }

// Generation increases with every rebuilt snapshot of the same lexicon.
func (p *Prepared) Generation() uint64 { return p.generation }

// Transitions returns the snapshot's tag bigram table.
func (p *Prepared) Transitions() *Transitions { return p.transitions }

// MatchPrefixes calls fn for every entry whose form is a prefix of s,
// shortest forms first.
func (p *Prepared) MatchPrefixes(s string, fn func(Entry)) {
	err := p.trie.VisitPrefixes(patricia.Prefix(s), func(_ patricia.Prefix, item patricia.Item) error {
		for _, e := range item.([]Entry) {
			fn(e)
		}
		return nil
	})
	if err != nil {
		log.Errorf("Error visiting prepared prefixes: %v", err)
	}
}

// Lookup returns the compiled entries for an exact form.
func (p *Prepared) Lookup(form string) []Entry {
	item := p.trie.Get(patricia.Prefix(form))
	if item == nil {
		return nil
	}
	return item.([]Entry)
}
