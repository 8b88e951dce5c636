// Package cli handles cmd line input for analyzing text interactively
package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bastiangx/morphserve/pkg/morph"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// Analyzer is the part of the engine the input loop needs.
type Analyzer interface {
	Analyze(text string, topN int) ([]morph.Result, error)
}

// TokenFilter drops tokens before printing, e.g. stopwords.
type TokenFilter interface {
	Filter(tokens []morph.Token) []morph.Token
}

var (
	formStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	tagStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	scoreStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// InputHandler reads lines and prints their analyses. Lines longer than
// maxLen runes are rejected.
type InputHandler struct {
	analyzer     Analyzer
	filter       TokenFilter
	topN         int
	maxLen       int
	requestCount int
}

// NewInputHandler handles initialization of the InputHandler with basic parameters.
// filter may be nil.
func NewInputHandler(analyzer Analyzer, topN, maxLen int, filter TokenFilter) *InputHandler {
	return &InputHandler{
		analyzer: analyzer,
		filter:   filter,
		topN:     topN,
		maxLen:   maxLen,
	}
}

// Start reads lines from in until EOF and writes analyses to out.
func (h *InputHandler) Start(in io.Reader, out io.Writer) error {
	log.Print("morphserve CLI")
	log.Print("type a sentence and press Enter to analyze it (Ctrl+D to exit):")

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := h.handleInput(line, out); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// handleInput analyzes one line. Analysis errors are logged, write errors returned.
func (h *InputHandler) handleInput(line string, out io.Writer) error {
	h.requestCount++
	if n := len([]rune(line)); h.maxLen > 0 && n > h.maxLen {
		log.Errorf("Input too long: %d > %d characters", n, h.maxLen)
		return nil
	}

	start := time.Now()
	results, err := h.analyzer.Analyze(line, h.topN)
	if err != nil {
		log.Errorf("Analyze failed: %v", err)
		return nil
	}
	log.Debugf("Took [ %v ] for request #%d", time.Since(start), h.requestCount)

	for i, r := range results {
		if _, err := fmt.Fprintf(out, "%2d. %s %s\n", i+1, h.render(r.Tokens),
			scoreStyle.Render(fmt.Sprintf("(%.3f)", r.Score))); err != nil {
			return err
		}
	}
	return nil
}

func (h *InputHandler) render(tokens []morph.Token) string {
	if h.filter != nil {
		tokens = h.filter.Filter(tokens)
	}
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = formStyle.Render(t.Form) + "/" + tagStyle.Render(t.Tag.String())
	}
	return strings.Join(parts, " + ")
}
