package morph

import (
	"fmt"
	"strings"
)

// POS is a part-of-speech tag from the closed Sejong-style tagset.
// The zero value is UN (unknown).
type POS uint8

const (
	UN POS = iota

	NNG // general noun
	NNP // proper noun
	NNB // bound noun
	NR  // numeral
	NP  // pronoun

	VV  // verb
	VA  // adjective
	VX  // auxiliary predicate
	VCP // positive copula
	VCN // negative copula

	MM  // determiner
	MAG // general adverb
	MAJ // conjunctive adverb
	IC  // interjection

	JKS // subject particle
	JKC // complement particle
	JKG // adnominal particle
	JKO // object particle
	JKB // adverbial particle
	JKV // vocative particle
	JKQ // quotative particle
	JX  // auxiliary particle
	JC  // conjunctive particle

	EP  // pre-final ending
	EF  // final ending
	EC  // connective ending
	ETN // nominal transformative ending
	ETM // adnominal transformative ending

	XPN // nominal prefix
	XSN // nominal suffix
	XSV // verb-deriving suffix
	XSA // adjective-deriving suffix
	XR  // root

	SF // sentence-final punctuation
	SP // separator punctuation
	SS // quote, bracket
	SE // ellipsis
	SO // hyphen, tilde
	SW // other symbol
	SL // foreign (latin) letters
	SH // hanja
	SN // number

	WURL
	WEmail
	WHashtag
	WMention

	// NumPOS is the size of the tagset.
	NumPOS
)

var posNames = [NumPOS]string{
	"UN",
	"NNG", "NNP", "NNB", "NR", "NP",
	"VV", "VA", "VX", "VCP", "VCN",
	"MM", "MAG", "MAJ", "IC",
	"JKS", "JKC", "JKG", "JKO", "JKB", "JKV", "JKQ", "JX", "JC",
	"EP", "EF", "EC", "ETN", "ETM",
	"XPN", "XSN", "XSV", "XSA", "XR",
	"SF", "SP", "SS", "SE", "SO", "SW", "SL", "SH", "SN",
	"W_URL", "W_EMAIL", "W_HASHTAG", "W_MENTION",
}

var posByName = func() map[string]POS {
	m := make(map[string]POS, NumPOS)
	for i, name := range posNames {
		m[name] = POS(i)
	}
	return m
}()

// ParsePOS converts a tag name such as "NNP" into a POS.
// Matching is case-insensitive; unknown names are an ErrInvalidArgument.
func ParsePOS(name string) (POS, error) {
	if p, ok := posByName[strings.ToUpper(strings.TrimSpace(name))]; ok {
		return p, nil
	}
	return UN, fmt.Errorf("%w: unknown tag %q", ErrInvalidArgument, name)
}

// Valid reports whether p belongs to the tagset.
func (p POS) Valid() bool { return p < NumPOS }

func (p POS) String() string {
	if !p.Valid() {
		return fmt.Sprintf("POS(%d)", uint8(p))
	}
	return posNames[p]
}

// MarshalText implements encoding.TextMarshaler.
func (p POS) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: tag %d out of range", ErrInvalidArgument, uint8(p))
	}
	return []byte(posNames[p]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *POS) UnmarshalText(text []byte) error {
	v, err := ParsePOS(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// IsNounLike reports NNG, NNP, NNB, NR and NP.
func (p POS) IsNounLike() bool { return p >= NNG && p <= NP }

// IsPredicate reports verbs, adjectives, auxiliaries and copulas.
func (p POS) IsPredicate() bool { return p >= VV && p <= VCN }

// IsParticle reports the J* tags.
func (p POS) IsParticle() bool { return p >= JKS && p <= JC }

// IsEnding reports the E* tags.
func (p POS) IsEnding() bool { return p >= EP && p <= ETM }

// IsSymbol reports the S* tags.
func (p POS) IsSymbol() bool { return p >= SF && p <= SN }

// AllPOS returns every tag in declaration order.
func AllPOS() []POS {
	all := make([]POS, NumPOS)
	for i := range all {
		all[i] = POS(i)
	}
	return all
}
