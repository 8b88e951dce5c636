package morph

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestParsePOS(t *testing.T) {
	tests := []struct {
		description string
		input       string
		want        POS
		wantErr     bool
	}{
		{"upper case", "NNP", NNP, false},
		{"lower case", "vv", VV, false},
		{"padded", "  JKS ", JKS, false},
		{"web tag", "W_URL", WURL, false},
		{"unknown", "XYZ", UN, true},
		{"empty", "", UN, true},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			got, err := ParsePOS(test.input)
			if test.wantErr {
				if !errors.Is(err, ErrInvalidArgument) {
					t.Fatalf("ParsePOS(%q) error = %v, want ErrInvalidArgument", test.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePOS(%q) unexpected error: %v", test.input, err)
			}
			if got != test.want {
				t.Errorf("ParsePOS(%q) = %v, want %v", test.input, got, test.want)
			}
		})
	}
}

func TestPOSNamesRoundTrip(t *testing.T) {
	for _, p := range AllPOS() {
		text, err := p.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%d): %v", p, err)
		}
		var back POS
		if err := back.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%s): %v", text, err)
		}
		if back != p {
			t.Errorf("round trip of %s gave %s", p, back)
		}
	}
	if _, err := NumPOS.MarshalText(); err == nil {
		t.Error("expected out of range tag to fail")
	}
}

func TestPOSClasses(t *testing.T) {
	if !NNP.IsNounLike() || VV.IsNounLike() {
		t.Error("IsNounLike misclassifies")
	}
	if !VCP.IsPredicate() || JKS.IsPredicate() {
		t.Error("IsPredicate misclassifies")
	}
	if !JX.IsParticle() || EF.IsParticle() {
		t.Error("IsParticle misclassifies")
	}
	if !ETM.IsEnding() || XSN.IsEnding() {
		t.Error("IsEnding misclassifies")
	}
	if !SN.IsSymbol() || WURL.IsSymbol() {
		t.Error("IsSymbol misclassifies")
	}
}

func TestCandidateBestPOS(t *testing.T) {
	var c Candidate
	for i := range c.POSScore {
		c.POSScore[i] = -5
	}
	if tag, _ := c.BestPOS(); tag != NNP {
		t.Errorf("tie should prefer NNP, got %s", tag)
	}
	c.POSScore[VA] = -1
	tag, score := c.BestPOS()
	if tag != VA || score != -1 {
		t.Errorf("BestPOS() = %s %v, want VA -1", tag, score)
	}
	if c.MaxPOSScore() != -1 {
		t.Errorf("MaxPOSScore() = %v, want -1", c.MaxPOSScore())
	}
}

func TestLineReader(t *testing.T) {
	lr := NewLineReader(strings.NewReader("하나\n둘\n"))
	for id, want := range []string{"하나", "둘"} {
		got, err := lr.Read(id)
		if err != nil || got != want {
			t.Fatalf("Read(%d) = %q, %v; want %q", id, got, err, want)
		}
	}
	if _, err := lr.Read(2); err != io.EOF {
		t.Errorf("Read past end error = %v, want io.EOF", err)
	}
	if _, err := NewLineReader(strings.NewReader("a")).Read(3); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("out of order Read error = %v, want ErrInvalidArgument", err)
	}
}

func TestErrorKinds(t *testing.T) {
	pe := &ParseError{Source: "user.dict", Line: 3, Record: "x", Err: errors.New("bad")}
	if !errors.Is(pe, ErrDictionaryParse) {
		t.Error("ParseError should match ErrDictionaryParse")
	}
	if !strings.Contains(pe.Error(), "user.dict:3") {
		t.Errorf("ParseError message %q lacks position", pe.Error())
	}

	cause := errors.New("disk gone")
	ce := &CallbackError{Op: "read", ID: 7, Err: cause}
	if !errors.Is(ce, ErrCallback) || !errors.Is(ce, cause) {
		t.Error("CallbackError should match ErrCallback and its cause")
	}
	if !errors.Is(ErrDuplicate, ErrInvalidArgument) {
		t.Error("ErrDuplicate should be an ErrInvalidArgument")
	}
}
