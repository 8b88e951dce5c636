// Package stopwords keeps a set of (form, tag) pairs to drop from analyses.
package stopwords

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/bastiangx/morphserve/pkg/morph"
	"github.com/charmbracelet/log"
)

//go:embed default.txt
var defaultList string

type key struct {
	form string
	tag  morph.POS
}

// Set is a concurrency-safe stopword set.
type Set struct {
	mu    sync.RWMutex
	words map[key]struct{}
}

// New returns an empty set.
func New() *Set {
	return &Set{words: make(map[key]struct{})}
}

// Default returns the bundled list.
func Default() *Set {
	s := New()
	if err := s.Load(strings.NewReader(defaultList), "default"); err != nil {
		// The embedded list is fixed at build time.
		panic(err)
	}
	return s
}

// LoadFile reads `form/tag` lines from path.
func LoadFile(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open stopwords: %w", morph.ErrIO, err)
	}
	defer f.Close()
	s := New()
	if err := s.Load(f, path); err != nil {
		return nil, err
	}
	return s, nil
}

// Load adds every `form/tag` line of r. A bad line fails the whole load and
// leaves the set unchanged.
func (s *Set) Load(r io.Reader, source string) error {
	scanner := bufio.NewScanner(r)
	var batch []key
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, err := parse(line)
		if err != nil {
			return &morph.ParseError{Source: source, Line: lineNum, Record: line, Err: err}
		}
		batch = append(batch, k)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: reading %s: %w", morph.ErrIO, source, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range batch {
		s.words[k] = struct{}{}
	}
	log.Debugf("Loaded %d stopwords from %s", len(batch), source)
	return nil
}

func parse(line string) (key, error) {
	i := strings.LastIndexByte(line, '/')
	if i <= 0 || i == len(line)-1 {
		return key{}, fmt.Errorf("%w: expected form/tag", morph.ErrInvalidArgument)
	}
	tag, err := morph.ParsePOS(line[i+1:])
	if err != nil {
		return key{}, err
	}
	return key{form: line[:i], tag: tag}, nil
}

// Add inserts form/tag. Adding an existing pair is a no-op.
func (s *Set) Add(form string, tag morph.POS) error {
	if form == "" || !tag.Valid() {
		return fmt.Errorf("%w: stopword %q/%d", morph.ErrInvalidArgument, form, uint8(tag))
	}
	s.mu.Lock()
	s.words[key{form, tag}] = struct{}{}
	s.mu.Unlock()
	return nil
}

// Remove deletes form/tag, failing if it is absent.
func (s *Set) Remove(form string, tag morph.POS) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{form, tag}
	if _, ok := s.words[k]; !ok {
		return fmt.Errorf("%w: %s/%s is not a stopword", morph.ErrInvalidArgument, form, tag)
	}
	delete(s.words, k)
	return nil
}

// Contains reports whether form/tag is a stopword.
func (s *Set) Contains(form string, tag morph.POS) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.words[key{form, tag}]
	return ok
}

func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.words)
}

// Words returns the pairs sorted by form, then tag.
func (s *Set) Words() []morph.Morpheme {
	s.mu.RLock()
	out := make([]morph.Morpheme, 0, len(s.words))
	for k := range s.words {
		out = append(out, morph.Morpheme{Form: k.form, Tag: k.tag})
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b morph.Morpheme) int {
		if c := strings.Compare(a.Form, b.Form); c != 0 {
			return c
		}
		return int(a.Tag) - int(b.Tag)
	})
	return out
}

// Filter returns tokens without stopwords, keeping their order.
func (s *Set) Filter(tokens []morph.Token) []morph.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]morph.Token, 0, len(tokens))
	for _, t := range tokens {
		if _, stop := s.words[key{t.Form, t.Tag}]; !stop {
			out = append(out, t)
		}
	}
	return out
}
