package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/bastiangx/morphserve/pkg/morph"
)

type fakeAnalyzer struct {
	calls int
	fail  bool
}

func (f *fakeAnalyzer) Analyze(text string, topN int) ([]morph.Result, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("not prepared")
	}
	var out []morph.Result
	for i := 0; i < topN; i++ {
		out = append(out, morph.Result{
			Tokens: []morph.Token{
				{Form: text, Tag: morph.NNP, Len: len([]rune(text))},
				{Form: "다", Tag: morph.EF},
			},
			Score: -float64(i),
		})
	}
	return out, nil
}

type dropEndings struct{}

func (dropEndings) Filter(tokens []morph.Token) []morph.Token {
	var out []morph.Token
	for _, t := range tokens {
		if !t.Tag.IsEnding() {
			out = append(out, t)
		}
	}
	return out
}

func TestHandleInput(t *testing.T) {
	tests := []struct {
		description string
		line        string
		fail        bool
		filter      TokenFilter
		wantLines   int
		contains    []string
		excludes    []string
	}{
		{"two results", "깜짝", false, nil, 2, []string{"깜짝", "NNP", "EF", " 1.", " 2."}, nil},
		{"filtered", "깜짝", false, dropEndings{}, 2, []string{"깜짝"}, []string{"EF"}},
		{"too long", strings.Repeat("가", 21), false, nil, 0, nil, nil},
		{"analyzer error", "깜짝", true, nil, 0, nil, nil},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			var out bytes.Buffer
			h := NewInputHandler(&fakeAnalyzer{fail: test.fail}, 2, 20, test.filter)
			if err := h.handleInput(test.line, &out); err != nil {
				t.Fatalf("handleInput: %v", err)
			}
			text := out.String()
			if got := strings.Count(text, "\n"); got != test.wantLines {
				t.Errorf("got %d lines, want %d:\n%s", got, test.wantLines, text)
			}
			for _, s := range test.contains {
				if !strings.Contains(text, s) {
					t.Errorf("output lacks %q:\n%s", s, text)
				}
			}
			for _, s := range test.excludes {
				if strings.Contains(text, s) {
					t.Errorf("output contains %q:\n%s", s, text)
				}
			}
		})
	}
}

func TestStart(t *testing.T) {
	fa := &fakeAnalyzer{}
	var out bytes.Buffer
	h := NewInputHandler(fa, 1, 0, nil)
	if err := h.Start(strings.NewReader("하나\n\n  \n둘\n"), &out); err != nil {
		t.Fatal(err)
	}
	if fa.calls != 2 {
		t.Errorf("analyzer called %d times, want 2", fa.calls)
	}
	if strings.Count(out.String(), "\n") != 2 {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}
