package lexicon

import (
	"fmt"
	"math"

	"github.com/bastiangx/morphserve/pkg/morph"
)

// Transitions is a tag bigram table of log weights. Every weight is ≤ 0 so
// decoding scores never increase along a path. A fresh table is all zeros.
type Transitions struct {
	start [morph.NumPOS]float64
	pair  [morph.NumPOS][morph.NumPOS]float64
}

// NewTransitions returns a neutral table.
func NewTransitions() *Transitions { return &Transitions{} }

// SetStart sets the weight of a path beginning with tag.
func (t *Transitions) SetStart(tag morph.POS, w float64) error {
	if err := checkWeight(tag, tag, w); err != nil {
		return err
	}
	t.start[tag] = w
	return nil
}

// Set sets the weight of tag `to` following tag `from`.
func (t *Transitions) Set(from, to morph.POS, w float64) error {
	if err := checkWeight(from, to, w); err != nil {
		return err
	}
	t.pair[from][to] = w
	return nil
}

// Start returns the initial weight for tag.
func (t *Transitions) Start(tag morph.POS) float64 { return t.start[tag] }

// Get returns the weight of to following from.
func (t *Transitions) Get(from, to morph.POS) float64 { return t.pair[from][to] }

// Clone returns an independent copy.
func (t *Transitions) Clone() *Transitions {
	c := *t
	return &c
}

func checkWeight(from, to morph.POS, w float64) error {
	if !from.Valid() || !to.Valid() {
		return fmt.Errorf("%w: transition %d->%d out of tagset", morph.ErrInvalidArgument, from, to)
	}
	if w > 0 || math.IsNaN(w) {
		return fmt.Errorf("%w: transition %s->%s weight %v must be <= 0", morph.ErrInvalidArgument, from, to, w)
	}
	return nil
}
