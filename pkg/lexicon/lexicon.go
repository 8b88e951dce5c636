// Package lexicon stores morphemes in a patricia trie and compiles them into
// immutable snapshots for decoding.
//
// A Lexicon is mutated only through Insert and InsertBatch and is not safe
// for concurrent mutation. Prepare returns a *Prepared that never changes
// afterwards and may be shared by any number of decoding goroutines.
package lexicon

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/bastiangx/morphserve/pkg/morph"
	"github.com/charmbracelet/log"
	"github.com/tchap/go-patricia/v2/patricia"
	"golang.org/x/text/unicode/norm"
)

// formEntries is the trie item: all entries sharing one surface form.
type formEntries struct {
	ids []int // indexes into Lexicon.entries, insertion order
}

// Lexicon is the mutable staging dictionary.
type Lexicon struct {
	trie        *patricia.Trie
	entries     []morph.Morpheme
	transitions *Transitions
	maxFormLen  int // runes

	generation uint64
	dirty      bool
	prepared   *Prepared
}

// New creates an empty lexicon.
func New() *Lexicon {
	return &Lexicon{
		trie:        patricia.NewTrie(),
		transitions: NewTransitions(),
	}
}

// Normalize returns the canonical (NFC, trimmed) spelling of a form.
func Normalize(form string) string {
	return norm.NFC.String(strings.TrimSpace(form))
}

func validate(form string, tag morph.POS) error {
	if form == "" {
		return fmt.Errorf("%w: empty form", morph.ErrInvalidArgument)
	}
	if strings.IndexFunc(form, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: form %q contains whitespace", morph.ErrInvalidArgument, form)
	}
	if !tag.Valid() {
		return fmt.Errorf("%w: unrecognized tag %d for %q", morph.ErrInvalidArgument, uint8(tag), form)
	}
	return nil
}

// Len returns the number of entries.
func (l *Lexicon) Len() int { return len(l.entries) }

// MaxFormLen returns the longest form length in runes.
func (l *Lexicon) MaxFormLen() int { return l.maxFormLen }

// Dirty reports whether entries were added since the last Prepare.
func (l *Lexicon) Dirty() bool { return l.dirty || l.prepared == nil }

// Has reports whether (form, tag) is present.
func (l *Lexicon) Has(form string, tag morph.POS) bool {
	for _, m := range l.Lookup(form) {
		if m.Tag == tag {
			return true
		}
	}
	return false
}

// Insert adds one entry and returns the entry count afterwards.
func (l *Lexicon) Insert(form string, tag morph.POS, score float64) (int, error) {
	form = Normalize(form)
	if err := validate(form, tag); err != nil {
		return l.Len(), err
	}
	if l.Has(form, tag) {
		return l.Len(), fmt.Errorf("%w: %s/%s", morph.ErrDuplicate, form, tag)
	}
	l.add(morph.Morpheme{Form: form, Tag: tag, Score: score})
	return l.Len(), nil
}

// InsertBatch adds all entries or none. Validation covers duplicates against
// the lexicon and within the batch itself.
func (l *Lexicon) InsertBatch(batch []morph.Morpheme) (int, error) {
	type key struct {
		form string
		tag  morph.POS
	}
	seen := make(map[key]int, len(batch))
	normalized := make([]morph.Morpheme, len(batch))
	for i, m := range batch {
		m.Form = Normalize(m.Form)
		if err := validate(m.Form, m.Tag); err != nil {
			return 0, fmt.Errorf("entry %d: %w", i, err)
		}
		k := key{m.Form, m.Tag}
		if j, ok := seen[k]; ok {
			return 0, fmt.Errorf("entry %d: %w: %s repeats entry %d", i, morph.ErrDuplicate, m, j)
		}
		if l.Has(m.Form, m.Tag) {
			return 0, fmt.Errorf("entry %d: %w: %s", i, morph.ErrDuplicate, m)
		}
		seen[k] = i
		normalized[i] = m
	}
	for _, m := range normalized {
		l.add(m)
	}
	return len(normalized), nil
}

func (l *Lexicon) add(m morph.Morpheme) {
	id := len(l.entries)
	l.entries = append(l.entries, m)
	key := patricia.Prefix(m.Form)
	if item := l.trie.Get(key); item != nil {
		fe := item.(*formEntries)
		fe.ids = append(fe.ids, id)
	} else {
		l.trie.Insert(key, &formEntries{ids: []int{id}})
	}
	if n := len([]rune(m.Form)); n > l.maxFormLen {
		l.maxFormLen = n
	}
	l.dirty = true
}

func (l *Lexicon) collect(fe *formEntries) []morph.Morpheme {
	out := make([]morph.Morpheme, len(fe.ids))
	for i, id := range fe.ids {
		out[i] = l.entries[id]
	}
	return out
}

// Lookup returns the entries whose form equals form.
func (l *Lexicon) Lookup(form string) []morph.Morpheme {
	item := l.trie.Get(patricia.Prefix(Normalize(form)))
	if item == nil {
		return nil
	}
	return l.collect(item.(*formEntries))
}

// Contains reports whether any entry has this exact form.
func (l *Lexicon) Contains(form string) bool {
	return l.trie.Get(patricia.Prefix(Normalize(form))) != nil
}

// WithPrefix returns every entry whose form starts with prefix, in trie order.
func (l *Lexicon) WithPrefix(prefix string) []morph.Morpheme {
	var out []morph.Morpheme
	err := l.trie.VisitSubtree(patricia.Prefix(Normalize(prefix)), func(_ patricia.Prefix, item patricia.Item) error {
		out = append(out, l.collect(item.(*formEntries))...)
		return nil
	})
	if err != nil {
		log.Errorf("Error visiting lexicon subtree: %v", err)
	}
	return out
}

// PrefixesOf returns every entry whose form is a prefix of s, shortest first.
func (l *Lexicon) PrefixesOf(s string) []morph.Morpheme {
	var out []morph.Morpheme
	err := l.trie.VisitPrefixes(patricia.Prefix(s), func(_ patricia.Prefix, item patricia.Item) error {
		out = append(out, l.collect(item.(*formEntries))...)
		return nil
	})
	if err != nil {
		log.Errorf("Error visiting lexicon prefixes: %v", err)
	}
	return out
}

// Entries returns a copy of all entries in insertion order.
func (l *Lexicon) Entries() []morph.Morpheme {
	out := make([]morph.Morpheme, len(l.entries))
	copy(out, l.entries)
	return out
}

// SetTransitions replaces the tag bigram table used by future snapshots.
func (l *Lexicon) SetTransitions(t *Transitions) {
	if t == nil {
		t = NewTransitions()
	}
	l.transitions = t
	l.dirty = true
}

// Transitions returns the current tag bigram table.
func (l *Lexicon) Transitions() *Transitions { return l.transitions }

// Weight maps an entry score onto a decode weight: log σ(score), always ≤ 0
// and increasing in score.
func Weight(score float64) float64 {
	if score > 0 {
		return -math.Log1p(math.Exp(-score))
	}
	return score - math.Log1p(math.Exp(score))
}
