package server

import (
	"errors"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/bastiangx/morphserve/internal/logger"
	"github.com/bastiangx/morphserve/pkg/dictionary"
	"github.com/bastiangx/morphserve/pkg/morph"
	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"
)

// Engine is the part of the engine the server drives.
type Engine interface {
	Analyze(text string, topN int) ([]morph.Result, error)
	AddUserWord(form string, tag morph.POS, score float64) (int, error)
	Prepare() (int, error)
	Stats() map[string]int
}

// Limits bound request sizes.
type Limits struct {
	MaxTopN    int
	MaxTextLen int // runes
}

// Server handles the IPC for analysis requests
type Server struct {
	engine       Engine
	limits       Limits
	dec          *msgpack.Decoder
	enc          *msgpack.Encoder
	logger       *log.Logger
	requestCount int
}

// NewServer creates a server reading requests from r and writing responses to w.
func NewServer(engine Engine, limits Limits, r io.Reader, w io.Writer) *Server {
	return &Server{
		engine: engine,
		limits: limits,
		dec:    msgpack.NewDecoder(r),
		enc:    msgpack.NewEncoder(w),
		logger: logger.New("server"),
	}
}

// Start serves requests until the input ends. A request that cannot be
// decoded ends the session since the stream position is lost.
func (s *Server) Start() error {
	s.logger.Debug("Starting Server.")
	for {
		var req Request
		if err := s.dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Debugf("Input closed after %d requests", s.requestCount)
				return nil
			}
			s.sendError("", fmt.Sprintf("invalid request: %v", err), 400)
			return fmt.Errorf("decoding request: %w", err)
		}
		if err := s.handleRequest(req); err != nil {
			return err
		}
	}
}

// handleRequest dispatches one request; only write failures are returned.
func (s *Server) handleRequest(req Request) error {
	s.requestCount++
	switch req.Action {
	case "", ActionAnalyze:
		return s.handleAnalyze(req)
	case ActionAddWord:
		return s.handleAddWord(req)
	case ActionPrepare:
		return s.handlePrepare(req)
	case ActionStats:
		return s.send(StatusResponse{ID: req.ID, Status: "ok", Stats: s.engine.Stats()})
	default:
		return s.sendError(req.ID, fmt.Sprintf("unknown action: %s", req.Action), 400)
	}
}

// handleAnalyze answers an empty text like the engine does, with one result
// holding no tokens.
func (s *Server) handleAnalyze(req Request) error {
	if n := utf8.RuneCountInString(req.Text); s.limits.MaxTextLen > 0 && n > s.limits.MaxTextLen {
		return s.sendError(req.ID, fmt.Sprintf("text exceeds maximum length of %d characters", s.limits.MaxTextLen), 400)
	}
	topN := req.TopN
	if topN < 1 {
		topN = 1
	}
	if s.limits.MaxTopN > 0 && topN > s.limits.MaxTopN {
		topN = s.limits.MaxTopN
	}

	start := time.Now()
	results, err := s.engine.Analyze(req.Text, topN)
	if err != nil {
		return s.sendEngineError(req.ID, err)
	}
	elapsed := time.Since(start)

	return s.send(AnalyzeResponse{
		ID:        req.ID,
		Results:   encodeResults(results),
		Count:     len(results),
		TimeTaken: elapsed.Microseconds(),
	})
}

func (s *Server) handleAddWord(req Request) error {
	tagName := req.Tag
	if tagName == "" {
		tagName = morph.NNP.String()
	}
	tag, err := morph.ParsePOS(tagName)
	if err != nil {
		return s.sendError(req.ID, err.Error(), 400)
	}
	score := dictionary.DefaultUserScore
	if req.Score != nil {
		score = *req.Score
	}

	start := time.Now()
	n, err := s.engine.AddUserWord(req.Form, tag, score)
	if err != nil {
		return s.sendEngineError(req.ID, err)
	}
	return s.send(StatusResponse{ID: req.ID, Status: "ok", Entries: n, TimeTaken: time.Since(start).Microseconds()})
}

func (s *Server) handlePrepare(req Request) error {
	start := time.Now()
	n, err := s.engine.Prepare()
	if err != nil {
		return s.sendEngineError(req.ID, err)
	}
	return s.send(StatusResponse{ID: req.ID, Status: "ok", Entries: n, TimeTaken: time.Since(start).Microseconds()})
}

func encodeResults(results []morph.Result) []AnalysisResult {
	out := make([]AnalysisResult, len(results))
	for i, r := range results {
		tokens := make([]ResultToken, len(r.Tokens))
		for j, t := range r.Tokens {
			tokens[j] = ResultToken{Form: t.Form, Tag: t.Tag.String(), Start: t.Start, Len: t.Len}
		}
		out[i] = AnalysisResult{Tokens: tokens, Score: r.Score}
	}
	return out
}

// send encodes one response.
func (s *Server) send(response any) error {
	if err := s.enc.Encode(response); err != nil {
		s.logger.Errorf("Encoding response: %v", err)
		return fmt.Errorf("writing response: %w", err)
	}
	return nil
}

// sendError sends an error response
func (s *Server) sendError(id, message string, code int) error {
	s.logger.Debugf("Request %q failed (%d): %s", id, code, message)
	return s.send(ErrorResponse{ID: id, Error: message, Code: code})
}

func (s *Server) sendEngineError(id string, err error) error {
	switch {
	case errors.Is(err, morph.ErrInvalidArgument):
		return s.sendError(id, err.Error(), 400)
	case errors.Is(err, morph.ErrNotPrepared), errors.Is(err, morph.ErrBusy), errors.Is(err, morph.ErrEmptyLexicon):
		return s.sendError(id, err.Error(), 409)
	default:
		return s.sendError(id, err.Error(), 500)
	}
}
