package dictionary

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bastiangx/morphserve/pkg/lexicon"
	"github.com/bastiangx/morphserve/pkg/morph"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestModelRoundTrip(t *testing.T) {
	entries := []morph.Morpheme{
		{Form: "깜짝", Tag: morph.MAG, Score: 3},
		{Form: "놀라", Tag: morph.VV, Score: 2.5},
		{Form: "었", Tag: morph.EP, Score: 4},
		{Form: "다", Tag: morph.EF, Score: 4},
	}
	transitions := []TransitionRecord{
		{From: "^", To: "MAG", Weight: -0.2},
		{From: "VV", To: "EP", Weight: -0.1},
	}

	for _, opts := range []Option{0, OptionMmap} {
		dir := t.TempDir()
		if _, err := WriteModel(dir, entries, transitions); err != nil {
			t.Fatalf("WriteModel: %v", err)
		}
		model, err := LoadModel(dir, opts)
		if err != nil {
			t.Fatalf("LoadModel(opts=%d): %v", opts, err)
		}
		if len(model.Entries) != len(entries) {
			t.Fatalf("got %d entries, want %d", len(model.Entries), len(entries))
		}
		for i := range entries {
			if model.Entries[i] != entries[i] {
				t.Errorf("entry %d = %+v, want %+v", i, model.Entries[i], entries[i])
			}
		}
		if w := model.Transitions.Start(morph.MAG); w != -0.2 {
			t.Errorf("start weight = %v, want -0.2", w)
		}
		if w := model.Transitions.Get(morph.VV, morph.EP); w != -0.1 {
			t.Errorf("VV->EP weight = %v, want -0.1", w)
		}
	}
}

func TestLoadModelNoTransitions(t *testing.T) {
	dir := t.TempDir()
	entries := []morph.Morpheme{{Form: "집", Tag: morph.NNG, Score: 1}}
	if _, err := WriteModel(dir, entries, []TransitionRecord{{From: "^", To: "NNG", Weight: -3}}); err != nil {
		t.Fatal(err)
	}
	model, err := LoadModel(dir, OptionNoTransitions)
	if err != nil {
		t.Fatal(err)
	}
	if w := model.Transitions.Start(morph.NNG); w != 0 {
		t.Errorf("transitions should be neutral, got %v", w)
	}
}

func TestLoadModelTextFallback(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ModelTextName, "# base\n깜짝\tMAG\t3\n놀라\tVV\n")

	model, err := LoadModel(dir, OptionMmap)
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	if len(model.Entries) != 2 || model.Entries[1].Score != DefaultUserScore {
		t.Errorf("unexpected entries %+v", model.Entries)
	}

	lex := lexicon.New()
	if n, err := model.Apply(lex); err != nil || n != 2 {
		t.Fatalf("Apply = %d, %v", n, err)
	}
	if !lex.Has("놀라", morph.VV) {
		t.Error("applied model missing 놀라/VV")
	}
}

func TestWriteModelReplaces(t *testing.T) {
	dir := t.TempDir()
	old := []morph.Morpheme{{Form: "깜짝", Tag: morph.MAG, Score: 3}}
	if _, err := WriteModel(dir, old, nil); err != nil {
		t.Fatal(err)
	}
	newer := []morph.Morpheme{{Form: "깜짝", Tag: morph.NNP, Score: 10}, {Form: "다", Tag: morph.EF, Score: 4}}
	path, err := WriteModel(dir, newer, nil)
	if err != nil {
		t.Fatalf("WriteModel over existing model: %v", err)
	}
	if info, err := os.Stat(path); err != nil || info.Mode().Perm() != 0644 {
		t.Errorf("model file stat = %v, %v; want mode 0644", info, err)
	}

	model, err := LoadModel(dir, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(model.Entries) != 2 || model.Entries[0].Tag != morph.NNP {
		t.Errorf("reloaded entries = %+v, want the second model", model.Entries)
	}
	files, _ := os.ReadDir(dir)
	if len(files) != 1 {
		t.Errorf("model dir holds %d files, want only %s", len(files), ModelBinaryName)
	}
}

func TestWriteModelFailureKeepsTarget(t *testing.T) {
	dir := t.TempDir()
	// A directory in place of morph.bin makes the final rename fail.
	target := filepath.Join(dir, ModelBinaryName)
	if err := os.Mkdir(target, 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, target, "keep", "x")

	_, err := WriteModel(dir, []morph.Morpheme{{Form: "다", Tag: morph.EF, Score: 4}}, nil)
	if !errors.Is(err, morph.ErrIO) {
		t.Fatalf("WriteModel error = %v, want ErrIO", err)
	}
	files, _ := os.ReadDir(dir)
	if len(files) != 1 {
		t.Errorf("failed write left %d entries in %s, want 1", len(files), dir)
	}
	if _, err := os.Stat(filepath.Join(target, "keep")); err != nil {
		t.Errorf("existing target was disturbed: %v", err)
	}
}

func TestLoadModelErrors(t *testing.T) {
	tests := []struct {
		description string
		setup       func(dir string) string
	}{
		{"missing dir", func(dir string) string { return filepath.Join(dir, "nope") }},
		{"empty dir", func(dir string) string { return dir }},
		{"corrupt binary", func(dir string) string {
			os.WriteFile(filepath.Join(dir, ModelBinaryName), []byte("not a msgpack model"), 0644)
			return dir
		}},
		{"bad text record", func(dir string) string {
			os.WriteFile(filepath.Join(dir, ModelTextName), []byte("깜짝\tBOGUS\n"), 0644)
			return dir
		}},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			_, err := LoadModel(test.setup(t.TempDir()), 0)
			if !errors.Is(err, morph.ErrModelLoad) {
				t.Errorf("LoadModel error = %v, want ErrModelLoad", err)
			}
		})
	}
}

func TestParseText(t *testing.T) {
	tests := []struct {
		description string
		input       string
		wantLen     int
		wantLine    int
	}{
		{"tabs with scores", "깜짝\tNNP\t10\n놀라\tVV\t2\n", 2, 0},
		{"spaces", "깜짝 NNP\n", 1, 0},
		{"comments and blanks", "# header\n\n깜짝\tNNP\n", 1, 0},
		{"unknown tag", "깜짝\tNNP\n놀라\tZZ\n", 0, 2},
		{"missing tag", "\n깜짝\n", 0, 2},
		{"bad score", "깜짝\tNNP\tten\n", 0, 1},
		{"too many fields", "깜짝\tNNP\t1\textra\n", 0, 1},
		{"infinite score", "깜짝\tNNP\tInf\n", 0, 1},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			entries, err := ParseText(strings.NewReader(test.input), "user.dict")
			if test.wantLine > 0 {
				var pe *morph.ParseError
				if !errors.As(err, &pe) {
					t.Fatalf("error = %v, want *ParseError", err)
				}
				if pe.Line != test.wantLine {
					t.Errorf("error line = %d, want %d", pe.Line, test.wantLine)
				}
				if !errors.Is(err, morph.ErrDictionaryParse) {
					t.Error("ParseError should match ErrDictionaryParse")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(entries) != test.wantLen {
				t.Errorf("got %d entries, want %d", len(entries), test.wantLen)
			}
		})
	}
}

func TestParseYAML(t *testing.T) {
	good := "words:\n  - form: 깜짝\n    tag: NNP\n    score: 7\n  - form: 놀라\n    tag: VV\n"
	entries, err := ParseYAML([]byte(good), "user.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].Score != 7 || entries[1].Score != DefaultUserScore {
		t.Errorf("unexpected entries %+v", entries)
	}

	bad := "words:\n  - form: 깜짝\n    tag: NNP\n  - form: 놀라\n    tag: ZZ\n"
	_, err = ParseYAML([]byte(bad), "user.yaml")
	var pe *morph.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
	if pe.Line != 4 {
		t.Errorf("error line = %d, want 4", pe.Line)
	}
}

func TestLoadUserDictionary(t *testing.T) {
	dir := t.TempDir()
	text := writeFile(t, dir, "user.txt", "깜짝\tNNP\n")
	yml := writeFile(t, dir, "user.yml", "words:\n  - form: 놀라\n    tag: VV\n")

	for path, want := range map[string]string{text: "깜짝", yml: "놀라"} {
		entries, err := LoadUserDictionary(path)
		if err != nil {
			t.Fatalf("LoadUserDictionary(%s): %v", path, err)
		}
		if len(entries) != 1 || entries[0].Form != want {
			t.Errorf("LoadUserDictionary(%s) = %+v", path, entries)
		}
	}

	if _, err := LoadUserDictionary(filepath.Join(dir, "missing.txt")); !errors.Is(err, morph.ErrIO) {
		t.Errorf("missing file error = %v, want ErrIO", err)
	}
}

func TestParseTransitions(t *testing.T) {
	recs, err := ParseTransitions(strings.NewReader("^\tNNG\t-0.5\nNNG JKS -0.1\n"), "trans.tsv")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 || recs[0].From != "^" || recs[1].To != "JKS" {
		t.Errorf("unexpected records %+v", recs)
	}

	for _, bad := range []string{"NNG\tJKS\t0.5\n", "NNG\tJKS\n", "NNG\tZZ\t-1\n"} {
		if _, err := ParseTransitions(strings.NewReader(bad), "trans.tsv"); !errors.Is(err, morph.ErrDictionaryParse) {
			t.Errorf("ParseTransitions(%q) error = %v, want ErrDictionaryParse", bad, err)
		}
	}
}

func TestDetectFileFormat(t *testing.T) {
	tests := map[string]FileFormat{
		"morph.bin": FormatBinary,
		"user.YAML": FormatYAML,
		"user.yml":  FormatYAML,
		"user.dict": FormatText,
		"user":      FormatText,
		"words.tsv": FormatText,
	}
	for name, want := range tests {
		if got := DetectFileFormat(name); got != want {
			t.Errorf("DetectFileFormat(%q) = %v, want %v", name, got, want)
		}
	}
}
