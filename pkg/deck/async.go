package deck

import (
	"github.com/google/uuid"

	"github.com/corvidfield/storylet-engine/pkg/storylet"
)

// pendingReshuffle holds the state of an in-progress chunked
// reshuffle: the remaining to-process list, the priority buckets
// under construction, the filter, the trace sink, and the completion
// callback (§3 Deck fields, §4.7 async protocol).
type pendingReshuffle struct {
	id        uuid.UUID
	remaining []string // storylet ids still to evaluate, in enumeration order
	buckets   map[int][]*storylet.Storylet
	filter    Filter
	trace     *[]string
	callback  func([]*storylet.Storylet)
}

// ReshuffleAsync prepares pending-reshuffle state and returns
// immediately; it does not process any storylets. Subsequent Update
// calls drive the chunker (§4.7).
func (d *Deck) ReshuffleAsync(callback func([]*storylet.Storylet), filter Filter, trace *[]string) error {
	if d.pending != nil {
		return ErrReshuffleInProgress
	}
	remaining := make([]string, len(d.order))
	copy(remaining, d.order)
	d.pending = &pendingReshuffle{
		id:        uuid.New(),
		remaining: remaining,
		buckets:   make(map[int][]*storylet.Storylet),
		filter:    filter,
		trace:     trace,
		callback:  callback,
	}
	return nil
}

// AsyncReshuffleInProgress is true iff a ReshuffleAsync is pending
// (started, and neither completed by Update nor cleared by
// AbortAsyncReshuffle or Reset), whether or not its callback is nil.
func (d *Deck) AsyncReshuffleInProgress() bool {
	return d.pending != nil
}

// AbortAsyncReshuffle clears pending state without firing the
// callback, giving callers an explicit way to give up on a chunked
// reshuffle (§5: "Implementations should provide an explicit abort
// that clears pending state without firing the callback").
func (d *Deck) AbortAsyncReshuffle() {
	d.pending = nil
}

// Update processes up to asyncChunkSize storylets from the pending
// list; filtering, conditions, and priorities are computed exactly as
// in the eager path. When the pending list empties, the buckets are
// sorted, shuffled, materialized into the draw pile, the callback
// fires, and the pending state is cleared.
func (d *Deck) Update() error {
	if d.pending == nil {
		return nil
	}
	p := d.pending

	n := d.asyncChunkSize
	if n > len(p.remaining) {
		n = len(p.remaining)
	}
	chunk := p.remaining[:n]
	p.remaining = p.remaining[n:]

	for _, id := range chunk {
		res, ok, err := d.evaluateOne(d.storylets[id], p.filter, p.trace)
		if err != nil {
			d.pending = nil
			return err
		}
		if ok {
			p.buckets[res.priority] = append(p.buckets[res.priority], res.s)
		}
	}

	if len(p.remaining) > 0 {
		return nil
	}

	d.pile = d.materialize(p.buckets, -1)
	d.pileStale = false
	callback := p.callback
	d.pending = nil
	if callback != nil {
		callback(d.pile)
	}
	return nil
}
