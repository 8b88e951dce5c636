package analyzer

import (
	"unicode"

	"github.com/bastiangx/morphserve/pkg/morph"
)

// charClass groups runes for out-of-vocabulary runs. A run never crosses a
// class change.
type charClass uint8

const (
	classSpace charClass = iota
	classHangul
	classLetter
	classLatin
	classHan
	classDigit
	classTerminal
	classPunct
	classBracket
	classOther
)

func classify(r rune) charClass {
	switch {
	case unicode.IsSpace(r):
		return classSpace
	case unicode.Is(unicode.Hangul, r):
		return classHangul
	case unicode.Is(unicode.Han, r):
		return classHan
	case unicode.Is(unicode.Latin, r):
		return classLatin
	case unicode.IsLetter(r):
		return classLetter
	case unicode.IsDigit(r):
		return classDigit
	case r == '.' || r == '?' || r == '!':
		return classTerminal
	case r == '"' || r == '\'' || unicode.In(r, unicode.Ps, unicode.Pe, unicode.Pi, unicode.Pf):
		return classBracket
	case unicode.IsPunct(r):
		return classPunct
	default:
		return classOther
	}
}

// tag is the POS assigned to an unknown run of this class.
func (c charClass) tag() morph.POS {
	switch c {
	case classDigit:
		return morph.SN
	case classLatin:
		return morph.SL
	case classHan:
		return morph.SH
	case classTerminal:
		return morph.SF
	case classPunct:
		return morph.SP
	case classBracket:
		return morph.SS
	case classOther:
		return morph.SW
	default:
		return morph.UN
	}
}
