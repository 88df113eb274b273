package deck

import "github.com/corvidfield/storylet-engine/pkg/storylet"

// Reshuffle materializes the ordered draw pile once, by the same
// algorithm as DrawImmediate, unlimited count (§4.7 reshuffle model).
func (d *Deck) Reshuffle(filter Filter, trace *[]string) error {
	if d.pending != nil {
		return ErrReshuffleInProgress
	}
	buckets, err := d.computeBuckets(filter, trace)
	if err != nil {
		return err
	}
	d.pile = d.materialize(buckets, -1)
	d.pileStale = false
	return nil
}

// Draw pops the head of the materialized pile, applying the popped
// storylet's UpdateOnDrawn. It returns ok=false when the pile is
// empty (callers wanting auto-reshuffle should use DrawHand).
func (d *Deck) Draw() (*storylet.Storylet, bool, error) {
	if d.pending != nil {
		return nil, false, ErrReshuffleInProgress
	}
	if len(d.pile) == 0 {
		return nil, false, nil
	}
	s := d.pile[0]
	d.pile = d.pile[1:]
	if err := s.OnDrawn(d.ctx, d.parser); err != nil {
		return nil, false, err
	}
	return s, true, nil
}

// DrawHand pops up to count storylets from the pile. If the pile
// empties mid-hand and reshuffleIfNeeded is set, a synchronous
// reshuffle occurs (with the filter and trace passed to DrawHand) and
// drawing continues; otherwise the hand is returned short.
func (d *Deck) DrawHand(count int, reshuffleIfNeeded bool, filter Filter, trace *[]string) ([]*storylet.Storylet, error) {
	if d.pending != nil {
		return nil, ErrReshuffleInProgress
	}
	var hand []*storylet.Storylet
	for len(hand) < count {
		if len(d.pile) == 0 {
			if !reshuffleIfNeeded {
				break
			}
			if err := d.Reshuffle(filter, trace); err != nil {
				return hand, err
			}
			if len(d.pile) == 0 {
				break // nothing left eligible even after reshuffling
			}
		}
		s, ok, err := d.Draw()
		if err != nil {
			return hand, err
		}
		if !ok {
			break
		}
		hand = append(hand, s)
	}
	return hand, nil
}

// DumpDrawPile renders the current pile as an ordered id listing. If
// an async reshuffle is pending, it returns the last materialized
// pile (which predates the pending reshuffle) with stale=true instead
// of failing, per the SUPPLEMENTAL FEATURES read-only affordance —
// unlike Draw/Reshuffle/ReshuffleAsync, which hard-fail while pending.
func (d *Deck) DumpDrawPile() (ids []string, stale bool) {
	ids = make([]string, len(d.pile))
	for i, s := range d.pile {
		ids[i] = s.ID
	}
	return ids, d.pending != nil
}

// PileLen reports how many storylets remain in the materialized pile.
func (d *Deck) PileLen() int { return len(d.pile) }
