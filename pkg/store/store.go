// Package store persists extraction candidates and streamed analyses in a
// SQLite database.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bastiangx/morphserve/internal/logger"
	"github.com/bastiangx/morphserve/pkg/morph"
	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS candidates (
	form      TEXT PRIMARY KEY,
	score     REAL NOT NULL,
	freq      INTEGER NOT NULL,
	tag       TEXT NOT NULL,
	pos_score REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS analyses (
	doc_id INTEGER NOT NULL,
	rank   INTEGER NOT NULL,
	score  REAL NOT NULL,
	tokens BLOB NOT NULL,
	PRIMARY KEY (doc_id, rank)
);`

// tokenRecord is the msgpack layout of one token inside a tokens blob.
type tokenRecord struct {
	Form  string `msgpack:"f"`
	Tag   string `msgpack:"t"`
	Start int    `msgpack:"p"`
	Len   int    `msgpack:"l"`
}

// Store wraps one database file.
type Store struct {
	db     *sql.DB
	path   string
	logger *log.Logger
}

// Open creates or opens the database at path. ":memory:" is accepted.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %w", morph.ErrIO, err)
	}
	// A single connection keeps ":memory:" databases shared and writes serialized.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: creating schema: %w", morph.ErrIO, err)
	}
	s := &Store{db: db, path: path, logger: logger.Default("store")}
	s.logger.Debugf("Opened store %s", path)
	return s, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveCandidates upserts candidates with their best tag.
func (s *Store) SaveCandidates(ctx context.Context, cands []morph.Candidate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", morph.ErrIO, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO candidates (form, score, freq, tag, pos_score)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(form) DO UPDATE SET score = excluded.score, freq = excluded.freq,
			tag = excluded.tag, pos_score = excluded.pos_score`)
	if err != nil {
		return fmt.Errorf("%w: prepare: %w", morph.ErrIO, err)
	}
	defer stmt.Close()

	for _, c := range cands {
		tag, posScore := c.BestPOS()
		if _, err := stmt.ExecContext(ctx, c.Form, c.Score, c.Freq, tag.String(), posScore); err != nil {
			return fmt.Errorf("%w: saving candidate %q: %w", morph.ErrIO, c.Form, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", morph.ErrIO, err)
	}
	s.logger.Debugf("Saved %d candidates to %s", len(cands), s.path)
	return nil
}

// StoredCandidate is a candidate row.
type StoredCandidate struct {
	Form     string
	Score    float64
	Freq     int
	Tag      morph.POS
	POSScore float64
}

// Candidates returns the saved candidates by descending score.
func (s *Store) Candidates(ctx context.Context) ([]StoredCandidate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT form, score, freq, tag, pos_score FROM candidates ORDER BY score DESC, freq DESC, form`)
	if err != nil {
		return nil, fmt.Errorf("%w: query candidates: %w", morph.ErrIO, err)
	}
	defer rows.Close()

	var out []StoredCandidate
	for rows.Next() {
		var c StoredCandidate
		var tag string
		if err := rows.Scan(&c.Form, &c.Score, &c.Freq, &tag, &c.POSScore); err != nil {
			return nil, fmt.Errorf("%w: scan candidate: %w", morph.ErrIO, err)
		}
		if c.Tag, err = morph.ParsePOS(tag); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SaveAnalysis replaces the stored results of one document, one row per rank.
func (s *Store) SaveAnalysis(ctx context.Context, id int, results []morph.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", morph.ErrIO, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM analyses WHERE doc_id = ?`, id); err != nil {
		return fmt.Errorf("%w: clearing document %d: %w", morph.ErrIO, id, err)
	}
	for rank, r := range results {
		blob, err := encodeTokens(r.Tokens)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO analyses (doc_id, rank, score, tokens) VALUES (?, ?, ?, ?)`,
			id, rank, r.Score, blob); err != nil {
			return fmt.Errorf("%w: saving document %d: %w", morph.ErrIO, id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", morph.ErrIO, err)
	}
	return nil
}

// Receiver returns a morph.Receiver that saves every delivered document.
func (s *Store) Receiver(ctx context.Context) morph.Receiver {
	return morph.ReceiverFunc(func(id int, results []morph.Result) error {
		return s.SaveAnalysis(ctx, id, results)
	})
}

// Drain saves documents from ch until it is closed and returns how many were
// saved. It stops at the first failed save or when ctx is done.
func (s *Store) Drain(ctx context.Context, ch <-chan morph.Document) (int, error) {
	n := 0
	for {
		select {
		case d, ok := <-ch:
			if !ok {
				return n, nil
			}
			if err := s.SaveAnalysis(ctx, d.ID, d.Results); err != nil {
				return n, err
			}
			n++
		case <-ctx.Done():
			return n, ctx.Err()
		}
	}
}

// Analyses returns the stored results of document id, best first.
func (s *Store) Analyses(ctx context.Context, id int) ([]morph.Result, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT score, tokens FROM analyses WHERE doc_id = ? ORDER BY rank`, id)
	if err != nil {
		return nil, fmt.Errorf("%w: query document %d: %w", morph.ErrIO, id, err)
	}
	defer rows.Close()

	var out []morph.Result
	for rows.Next() {
		var r morph.Result
		var blob []byte
		if err := rows.Scan(&r.Score, &blob); err != nil {
			return nil, fmt.Errorf("%w: scan document %d: %w", morph.ErrIO, id, err)
		}
		if r.Tokens, err = decodeTokens(blob); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Documents returns the number of stored documents.
func (s *Store) Documents(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT doc_id) FROM analyses`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: count documents: %w", morph.ErrIO, err)
	}
	return n, nil
}

func encodeTokens(tokens []morph.Token) ([]byte, error) {
	recs := make([]tokenRecord, len(tokens))
	for i, t := range tokens {
		recs[i] = tokenRecord{Form: t.Form, Tag: t.Tag.String(), Start: t.Start, Len: t.Len}
	}
	blob, err := msgpack.Marshal(recs)
	if err != nil {
		return nil, fmt.Errorf("encode tokens: %w", err)
	}
	return blob, nil
}

func decodeTokens(blob []byte) ([]morph.Token, error) {
	var recs []tokenRecord
	if err := msgpack.Unmarshal(blob, &recs); err != nil {
		return nil, fmt.Errorf("decode tokens: %w", err)
	}
	tokens := make([]morph.Token, len(recs))
	for i, rec := range recs {
		tag, err := morph.ParsePOS(rec.Tag)
		if err != nil {
			return nil, err
		}
		tokens[i] = morph.Token{Form: rec.Form, Tag: tag, Start: rec.Start, Len: rec.Len}
	}
	return tokens, nil
}
