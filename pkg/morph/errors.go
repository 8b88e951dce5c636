package morph

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by this module matches at least one of
// these through errors.Is.
var (
	ErrModelLoad       = errors.New("model load failed")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrDuplicate       = fmt.Errorf("%w: duplicate entry", ErrInvalidArgument)
	ErrDictionaryParse = errors.New("dictionary parse error")
	ErrNotPrepared     = errors.New("lexicon not prepared")
	ErrEmptyLexicon    = errors.New("lexicon is empty")
	ErrCallback        = errors.New("callback failed")
	ErrIO              = errors.New("i/o error")
	ErrBusy            = errors.New("lexicon is in use by an in-flight analysis")
)

// ParseError identifies a malformed dictionary record.
type ParseError struct {
	Source string // file name or other label of the input
	Line   int    // 1-based
	Record string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %v (record %q)", e.Source, e.Line, e.Err, e.Record)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is makes every ParseError match ErrDictionaryParse.
func (e *ParseError) Is(target error) bool { return target == ErrDictionaryParse }

// CallbackError wraps a failure reported by a Reader or Receiver.
type CallbackError struct {
	Op  string // "read" or "receive"
	ID  int
	Err error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("%s callback failed for document %d: %v", e.Op, e.ID, e.Err)
}

func (e *CallbackError) Unwrap() error { return e.Err }

// Is makes every CallbackError match ErrCallback.
func (e *CallbackError) Is(target error) bool { return target == ErrCallback }
