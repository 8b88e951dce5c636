package stopwords

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bastiangx/morphserve/pkg/morph"
)

func TestDefault(t *testing.T) {
	s := Default()
	if s.Len() == 0 {
		t.Fatal("default list is empty")
	}
	for _, w := range []morph.Morpheme{{Form: "은", Tag: morph.JX}, {Form: "다", Tag: morph.EF}} {
		if !s.Contains(w.Form, w.Tag) {
			t.Errorf("default list lacks %s", w)
		}
	}
	if s.Contains("은", morph.NNG) {
		t.Error("tags must be part of the key")
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		description string
		input       string
		wantLen     int
		wantLine    int
	}{
		{"valid", "# comment\n이/JKS\n\n하/XSV\n", 2, 0},
		{"slash in form", "a/b/SW\n", 1, 0},
		{"missing tag", "이/JKS\n이\n", 0, 2},
		{"unknown tag", "이/QQ\n", 0, 1},
		{"empty form", "/NNG\n", 0, 1},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			s := New()
			err := s.Load(strings.NewReader(test.input), "stop.txt")
			if test.wantLine > 0 {
				var pe *morph.ParseError
				if !errors.As(err, &pe) || pe.Line != test.wantLine {
					t.Fatalf("error = %v, want ParseError on line %d", err, test.wantLine)
				}
				if s.Len() != 0 {
					t.Error("failed load must not add words")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if s.Len() != test.wantLen {
				t.Errorf("Len() = %d, want %d", s.Len(), test.wantLen)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stop.txt")
	if err := os.WriteFile(path, []byte("것/NNB\n수/NNB\n"), 0644); err != nil {
		t.Fatal(err)
	}
	s, err := LoadFile(path)
	if err != nil || s.Len() != 2 {
		t.Fatalf("LoadFile = %v, %v", s, err)
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing")); !errors.Is(err, morph.ErrIO) {
		t.Errorf("missing file error = %v", err)
	}
}

func TestAddRemove(t *testing.T) {
	s := New()
	if err := s.Add("것", morph.NNB); err != nil {
		t.Fatal(err)
	}
	if err := s.Add("것", morph.NNB); err != nil {
		t.Errorf("re-adding should be a no-op, got %v", err)
	}
	if err := s.Add("", morph.NNB); !errors.Is(err, morph.ErrInvalidArgument) {
		t.Errorf("empty form error = %v", err)
	}
	if err := s.Remove("것", morph.NNG); !errors.Is(err, morph.ErrInvalidArgument) {
		t.Errorf("removing absent pair error = %v", err)
	}
	if err := s.Remove("것", morph.NNB); err != nil || s.Len() != 0 {
		t.Errorf("Remove = %v, Len() = %d", err, s.Len())
	}
}

func TestWordsAndFilter(t *testing.T) {
	s := New()
	s.Add("은", morph.JX)
	s.Add("가", morph.JKS)
	s.Add("가", morph.VV)

	words := s.Words()
	if len(words) != 3 || words[0].String() != "가/VV" || words[1].String() != "가/JKS" || words[2].String() != "은/JX" {
		t.Errorf("Words() = %v", words)
	}

	tokens := []morph.Token{
		{Form: "학교", Tag: morph.NNG, Start: 0, Len: 2},
		{Form: "은", Tag: morph.JX, Start: 2, Len: 1},
		{Form: "가", Tag: morph.VV, Start: 4, Len: 1},
		{Form: "다", Tag: morph.EF, Start: 5, Len: 1},
	}
	got := s.Filter(tokens)
	if len(got) != 2 || got[0].Form != "학교" || got[1].Form != "다" {
		t.Errorf("Filter() = %v", got)
	}
}
