// Package dictionary loads base models and user dictionaries into a lexicon.
package dictionary

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bastiangx/morphserve/pkg/lexicon"
	"github.com/bastiangx/morphserve/pkg/morph"
	"github.com/charmbracelet/log"
	"github.com/edsrzf/mmap-go"
	"github.com/vmihailenco/msgpack/v5"
)

// Option toggles load-time behaviour of LoadModel.
type Option uint

const (
	// OptionMmap maps the binary model into memory instead of reading it.
	OptionMmap Option = 1 << iota
	// OptionNoTransitions drops the model's tag transition table.
	OptionNoTransitions
)

const (
	modelMagic   = "MSRV"
	modelVersion = 1
	// startTag marks a transition record that applies to the first token.
	startTag = "^"
)

// ModelFile is the msgpack layout of morph.bin.
type ModelFile struct {
	Magic       string             `msgpack:"magic"`
	Version     int                `msgpack:"version"`
	Entries     []ModelEntry       `msgpack:"entries"`
	Transitions []TransitionRecord `msgpack:"transitions,omitempty"`
}

// ModelEntry stores the tag by name so files survive tagset reordering.
type ModelEntry struct {
	Form  string  `msgpack:"f"`
	Tag   string  `msgpack:"t"`
	Score float64 `msgpack:"s"`
}

// TransitionRecord is one cell of the tag bigram table; From == "^" targets
// the start row.
type TransitionRecord struct {
	From   string  `msgpack:"from"`
	To     string  `msgpack:"to"`
	Weight float64 `msgpack:"w"`
}

// Model is a decoded base model.
type Model struct {
	Entries     []morph.Morpheme
	Transitions *lexicon.Transitions
	Source      string
}

// LoadModel finds and decodes the base model inside dir. Every failure
// matches morph.ErrModelLoad.
func LoadModel(dir string, opts Option) (*Model, error) {
	path, format, err := FindModelFile(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", morph.ErrModelLoad, err)
	}

	var model *Model
	switch format {
	case FormatBinary:
		model, err = readBinaryModel(path, opts)
	default:
		var entries []morph.Morpheme
		entries, err = readTextModel(path)
		model = &Model{Entries: entries, Transitions: lexicon.NewTransitions(), Source: path}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", morph.ErrModelLoad, err)
	}
	if opts&OptionNoTransitions != 0 {
		model.Transitions = lexicon.NewTransitions()
	}
	log.Debugf("Loaded model %s: %d entries", path, len(model.Entries))
	return model, nil
}

func readTextModel(path string) ([]morph.Morpheme, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open model: %w", morph.ErrIO, err)
	}
	defer f.Close()
	return ParseText(f, path)
}

func readBinaryModel(path string, opts Option) (*Model, error) {
	if err := ValidateFileFormat(path, FormatBinary); err != nil {
		return nil, err
	}

	var (
		data []byte
		err  error
	)
	if opts&OptionMmap != 0 {
		f, openErr := os.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("%w: open model: %w", morph.ErrIO, openErr)
		}
		defer f.Close()

		m, mapErr := mmap.Map(f, mmap.RDONLY, 0)
		if mapErr != nil {
			return nil, fmt.Errorf("%w: mmap model: %w", morph.ErrIO, mapErr)
		}
		defer func() {
			if unmapErr := m.Unmap(); unmapErr != nil {
				log.Errorf("unmapping %s: %v", path, unmapErr)
			}
		}()
		data = m
	} else {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: read model: %w", morph.ErrIO, err)
		}
	}

	// Unmarshal copies every string out of data, so the mapping can go away.
	var mf ModelFile
	if err := msgpack.Unmarshal(data, &mf); err != nil {
		return nil, &morph.ParseError{Source: path, Err: err}
	}
	return decodeModel(&mf, path)
}

func decodeModel(mf *ModelFile, source string) (*Model, error) {
	if mf.Magic != modelMagic {
		return nil, &morph.ParseError{Source: source, Err: fmt.Errorf("bad magic %q", mf.Magic)}
	}
	if mf.Version != modelVersion {
		return nil, &morph.ParseError{Source: source, Err: fmt.Errorf("unsupported model version %d", mf.Version)}
	}

	model := &Model{
		Entries:     make([]morph.Morpheme, 0, len(mf.Entries)),
		Transitions: lexicon.NewTransitions(),
		Source:      source,
	}
	for i, e := range mf.Entries {
		m, err := parseRecord([]string{e.Form, e.Tag})
		if err != nil {
			return nil, &morph.ParseError{Source: source, Line: i + 1, Record: e.Form + " " + e.Tag, Err: err}
		}
		m.Score = e.Score
		model.Entries = append(model.Entries, m)
	}
	for i, t := range mf.Transitions {
		if err := applyTransition(model.Transitions, t); err != nil {
			return nil, &morph.ParseError{Source: source, Line: i + 1, Record: t.From + " " + t.To, Err: err}
		}
	}
	return model, nil
}

func applyTransition(tr *lexicon.Transitions, t TransitionRecord) error {
	to, err := morph.ParsePOS(t.To)
	if err != nil {
		return err
	}
	if t.From == startTag {
		return tr.SetStart(to, t.Weight)
	}
	from, err := morph.ParsePOS(t.From)
	if err != nil {
		return err
	}
	return tr.Set(from, to, t.Weight)
}

// ParseTransitions reads `from<TAB>to<TAB>weight` lines; from may be "^".
func ParseTransitions(r io.Reader, source string) ([]TransitionRecord, error) {
	scanner := bufio.NewScanner(r)
	var records []TransitionRecord
	check := lexicon.NewTransitions()
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, &morph.ParseError{Source: source, Line: lineNum, Record: line, Err: fmt.Errorf("expected `from to weight`")}
		}
		w, err := parseScore(fields[2])
		if err != nil {
			return nil, &morph.ParseError{Source: source, Line: lineNum, Record: line, Err: err}
		}
		rec := TransitionRecord{From: fields[0], To: fields[1], Weight: w}
		if err := applyTransition(check, rec); err != nil {
			return nil, &morph.ParseError{Source: source, Line: lineNum, Record: line, Err: err}
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", morph.ErrIO, source, err)
	}
	return records, nil
}

// WriteModel encodes entries and transitions as dir/morph.bin. The file is
// written next to the target and renamed, so an existing model is replaced
// only by a complete one.
func WriteModel(dir string, entries []morph.Morpheme, transitions []TransitionRecord) (string, error) {
	mf := ModelFile{
		Magic:       modelMagic,
		Version:     modelVersion,
		Entries:     make([]ModelEntry, len(entries)),
		Transitions: transitions,
	}
	for i, m := range entries {
		mf.Entries[i] = ModelEntry{Form: m.Form, Tag: m.Tag.String(), Score: m.Score}
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("%w: create model dir: %w", morph.ErrIO, err)
	}
	path := filepath.Join(dir, ModelBinaryName)
	f, err := os.CreateTemp(dir, ".morph-*.bin")
	if err != nil {
		return "", fmt.Errorf("%w: create model: %w", morph.ErrIO, err)
	}
	defer os.Remove(f.Name())

	bw := bufio.NewWriter(f)
	if err := msgpack.NewEncoder(bw).Encode(&mf); err != nil {
		f.Close()
		return "", fmt.Errorf("encode model: %w", err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return "", fmt.Errorf("%w: write model: %w", morph.ErrIO, err)
	}
	if err := f.Chmod(0644); err != nil {
		f.Close()
		return "", fmt.Errorf("%w: write model: %w", morph.ErrIO, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("%w: close model: %w", morph.ErrIO, err)
	}
	if err := os.Rename(f.Name(), path); err != nil {
		return "", fmt.Errorf("%w: install model: %w", morph.ErrIO, err)
	}
	log.Debugf("Wrote model %s: %d entries, %d transitions", path, len(entries), len(transitions))
	return path, nil
}

// Apply inserts the model into lex atomically and installs its transitions.
func (m *Model) Apply(lex *lexicon.Lexicon) (int, error) {
	n, err := lex.InsertBatch(m.Entries)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", morph.ErrModelLoad, m.Source, err)
	}
	lex.SetTransitions(m.Transitions)
	return n, nil
}
