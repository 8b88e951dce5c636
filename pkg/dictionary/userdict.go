package dictionary

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/bastiangx/morphserve/pkg/morph"
	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

// DefaultUserScore is applied to user records that omit a score.
const DefaultUserScore = 10.0

var (
	errFieldCount = errors.New("expected `form tag [score]`")
	errEmptyForm  = errors.New("empty form")
	errSpaceForm  = errors.New("form contains whitespace")
)

// LoadUserDictionary reads every record of a user dictionary file. Any
// malformed record fails the whole file with a *morph.ParseError.
func LoadUserDictionary(path string) ([]morph.Morpheme, error) {
	format := DetectFileFormat(path)
	if format == FormatBinary {
		model, err := readBinaryModel(path, 0)
		if err != nil {
			return nil, err
		}
		return model.Entries, nil
	}
	if err := ValidateFileFormat(path, format); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read user dictionary: %w", morph.ErrIO, err)
	}
	if format == FormatYAML {
		return ParseYAML(data, path)
	}
	return ParseText(bytes.NewReader(data), path)
}

// ParseText reads `form<TAB>tag[<TAB>score]` records, one per line. Fields
// may also be separated by spaces when no tab is present. Blank lines and
// lines starting with '#' are skipped.
func ParseText(r io.Reader, source string) ([]morph.Morpheme, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var entries []morph.Morpheme
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		var fields []string
		if strings.Contains(line, "\t") {
			fields = strings.Split(strings.TrimRight(line, "\t "), "\t")
		} else {
			fields = strings.Fields(line)
		}

		m, err := parseRecord(fields)
		if err != nil {
			return nil, &morph.ParseError{Source: source, Line: lineNum, Record: line, Err: err}
		}
		entries = append(entries, m)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", morph.ErrIO, source, err)
	}

	log.Debugf("Parsed %d records from %s", len(entries), source)
	return entries, nil
}

func parseRecord(fields []string) (morph.Morpheme, error) {
	if len(fields) < 2 || len(fields) > 3 {
		return morph.Morpheme{}, errFieldCount
	}
	form := strings.TrimSpace(fields[0])
	if form == "" {
		return morph.Morpheme{}, errEmptyForm
	}
	if strings.IndexFunc(form, unicode.IsSpace) >= 0 {
		return morph.Morpheme{}, errSpaceForm
	}
	tag, err := morph.ParsePOS(fields[1])
	if err != nil {
		return morph.Morpheme{}, err
	}
	score := DefaultUserScore
	if len(fields) == 3 {
		score, err = parseScore(fields[2])
		if err != nil {
			return morph.Morpheme{}, err
		}
	}
	return morph.Morpheme{Form: form, Tag: tag, Score: score}, nil
}

func parseScore(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid score %q", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("score %q is not finite", s)
	}
	return v, nil
}

type yamlRecord struct {
	Form  string   `yaml:"form"`
	Tag   string   `yaml:"tag"`
	Score *float64 `yaml:"score"`
}

// ParseYAML reads a document of the form
//
//	words:
//	  - form: 깜짝
//	    tag: NNP
//	    score: 10
//
// Errors point at the line of the offending record.
func ParseYAML(data []byte, source string) ([]morph.Morpheme, error) {
	var doc struct {
		Words []yaml.Node `yaml:"words"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &morph.ParseError{Source: source, Line: yamlErrorLine(err), Err: err}
	}

	entries := make([]morph.Morpheme, 0, len(doc.Words))
	for _, node := range doc.Words {
		var rec yamlRecord
		if err := node.Decode(&rec); err != nil {
			return nil, &morph.ParseError{Source: source, Line: node.Line, Err: err}
		}
		fields := []string{rec.Form, rec.Tag}
		if rec.Score != nil {
			fields = append(fields, strconv.FormatFloat(*rec.Score, 'g', -1, 64))
		}
		m, err := parseRecord(fields)
		if err != nil {
			return nil, &morph.ParseError{
				Source: source,
				Line:   node.Line,
				Record: rec.Form + " " + rec.Tag,
				Err:    err,
			}
		}
		entries = append(entries, m)
	}
	log.Debugf("Parsed %d YAML records from %s", len(entries), source)
	return entries, nil
}

// yamlErrorLine pulls the line number out of a yaml syntax error message.
func yamlErrorLine(err error) int {
	var line int
	if _, scanErr := fmt.Sscanf(err.Error(), "yaml: line %d:", &line); scanErr == nil {
		return line
	}
	return 0
}

// WriteText writes entries in the text record format.
func WriteText(w io.Writer, entries []morph.Morpheme) error {
	bw := bufio.NewWriter(w)
	for _, m := range entries {
		if _, err := fmt.Fprintf(bw, "%s\t%s\t%s\n", m.Form, m.Tag, strconv.FormatFloat(m.Score, 'g', -1, 64)); err != nil {
			return err
		}
	}
	return bw.Flush()
}
