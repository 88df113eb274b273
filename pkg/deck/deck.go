// Package deck implements the storylet selection engine: a container
// of storylets and a context that produces priority-bucketed,
// shuffled draw piles, in both an immediate (recompute-per-call) and
// a materialized reshuffle-pile model, with a cooperative chunked
// async reshuffle protocol (§4.7).
package deck

import (
	"log/slog"
	"math/rand"
	"sort"

	"github.com/google/uuid"

	"github.com/corvidfield/storylet-engine/pkg/exprlang"
	"github.com/corvidfield/storylet-engine/pkg/storylet"
)

// Filter is an optional predicate applied during bucket computation;
// a nil Filter accepts everything.
type Filter func(s *storylet.Storylet) bool

// Deck owns a storylet table plus a Context, and produces ordered
// draw piles by priority (§3, §4.7). The zero value is not usable;
// construct with New.
type Deck struct {
	storylets map[string]*storylet.Storylet
	order     []string // insertion order, for deterministic enumeration

	ctx         *exprlang.Context
	ownsContext bool
	parser      *exprlang.Parser

	currentDraw    int
	useSpecificity bool

	pile      []*storylet.Storylet
	pileStale bool // set by AddStorylet; cleared when a pile is materialized or Reset discards it

	pending *pendingReshuffle

	rng            *rand.Rand
	asyncChunkSize int

	logger *slog.Logger
}

// Option configures a Deck at construction time.
type Option func(*Deck)

// WithContext supplies a caller-owned Context; the Deck does not free
// it (§5 shared-resource policy).
func WithContext(ctx *exprlang.Context) Option {
	return func(d *Deck) { d.ctx = ctx; d.ownsContext = false }
}

// WithSeed makes the Deck's shuffles deterministic: a seeded deck
// must produce identical draw sequences given identical context and
// call sequence (§5).
func WithSeed(seed int64) Option {
	return func(d *Deck) { d.rng = rand.New(rand.NewSource(seed)) }
}

// WithSpecificity turns on the priority tie-break described in §4.6.
func WithSpecificity(on bool) Option {
	return func(d *Deck) { d.useSpecificity = on }
}

// WithAsyncChunkSize sets how many storylets ReshuffleAsync's Update
// processes per call (default 8, per SPEC_FULL.md).
func WithAsyncChunkSize(n int) Option {
	return func(d *Deck) {
		if n > 0 {
			d.asyncChunkSize = n
		}
	}
}

// WithLogger attaches a *slog.Logger for per-draw diagnostics (bucket
// composition at Debug level); nil is safe, New falls back to
// slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Deck) { d.logger = logger }
}

// New returns an empty Deck. Without WithContext, the Deck creates
// and owns its own Context.
func New(opts ...Option) *Deck {
	d := &Deck{
		storylets:      make(map[string]*storylet.Storylet),
		parser:         exprlang.NewParser(),
		asyncChunkSize: 8,
		rng:            rand.New(rand.NewSource(rand.Int63())),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.ctx == nil {
		d.ctx = exprlang.NewContext()
		d.ownsContext = true
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// Context returns the deck's Context.
func (d *Deck) Context() *exprlang.Context { return d.ctx }

// CurrentDraw returns the monotonic play counter.
func (d *Deck) CurrentDraw() int { return d.currentDraw }

// Storylet looks up a storylet by id.
func (d *Deck) Storylet(id string) (*storylet.Storylet, bool) {
	s, ok := d.storylets[id]
	return s, ok
}

// Len returns the number of storylets owned by the deck.
func (d *Deck) Len() int { return len(d.storylets) }

// IDs returns every storylet id in insertion order.
func (d *Deck) IDs() []string {
	ids := make([]string, len(d.order))
	copy(ids, d.order)
	return ids
}

// AddStorylet inserts a storylet, failing if its id already exists
// deck-wide (§3).
func (d *Deck) AddStorylet(s *storylet.Storylet) error {
	if _, exists := d.storylets[s.ID]; exists {
		return ErrDuplicateID
	}
	d.storylets[s.ID] = s
	d.order = append(d.order, s.ID)
	d.pileStale = true
	return nil
}

// Reset clears every storylet's redraw cooldown and the draw counter,
// preserving the Context (§3 lifecycle). Any materialized pile is
// discarded since it was built against pre-reset eligibility.
func (d *Deck) Reset() {
	for _, id := range d.order {
		d.storylets[id].Reset()
	}
	d.currentDraw = 0
	d.pile = nil
	d.pileStale = false
	d.pending = nil
}

// evaluated is one storylet's outcome from a single filtering pass:
// its priority bucket key, if it survived CanDraw/filter/condition.
type evaluated struct {
	s        *storylet.Storylet
	priority int
}

// evaluateOne runs the per-storylet pipeline shared by the immediate,
// eager-reshuffle, and chunked-async paths (§4.7 steps 2-5): skip on
// CanDraw, skip on filter, skip on condition, else compute priority.
func (d *Deck) evaluateOne(s *storylet.Storylet, filter Filter, trace *[]string) (evaluated, bool, error) {
	if !s.CanDraw(d.currentDraw) {
		return evaluated{}, false, nil
	}
	if filter != nil && !filter(s) {
		return evaluated{}, false, nil
	}
	ok, err := s.EvaluateCondition(d.ctx, trace)
	if err != nil {
		return evaluated{}, false, err
	}
	if !ok {
		return evaluated{}, false, nil
	}
	priority, err := s.Priority(d.ctx, d.useSpecificity)
	if err != nil {
		return evaluated{}, false, err
	}
	return evaluated{s: s, priority: priority}, true, nil
}

// computeBuckets runs evaluateOne over every storylet and groups
// survivors by priority.
func (d *Deck) computeBuckets(filter Filter, trace *[]string) (map[int][]*storylet.Storylet, error) {
	buckets := make(map[int][]*storylet.Storylet)
	for _, id := range d.order {
		res, ok, err := d.evaluateOne(d.storylets[id], filter, trace)
		if err != nil {
			return nil, err
		}
		if ok {
			buckets[res.priority] = append(buckets[res.priority], res.s)
		}
	}
	return buckets, nil
}

// materialize sorts bucket keys descending, shuffles within each
// bucket uniformly, and flattens into a single ordered slice,
// honoring count (-1 = unlimited).
func (d *Deck) materialize(buckets map[int][]*storylet.Storylet, count int) []*storylet.Storylet {
	keys := make([]int, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(keys)))

	sizes := make([]int, len(keys))
	for i, k := range keys {
		sizes[i] = len(buckets[k])
	}
	d.logger.Debug("deck: priority buckets", "priorities", keys, "sizes", sizes)

	var out []*storylet.Storylet
	for _, k := range keys {
		bucket := buckets[k]
		d.rng.Shuffle(len(bucket), func(i, j int) { bucket[i], bucket[j] = bucket[j], bucket[i] })
		for _, s := range bucket {
			if count >= 0 && len(out) >= count {
				return out
			}
			out = append(out, s)
		}
	}
	return out
}

// DrawImmediate implements the immediate model (§4.7): a fresh
// ordered list of up to count eligible storylets, recomputed from
// scratch every call. It shares no state with the reshuffle-model
// pile.
func (d *Deck) DrawImmediate(count int, filter Filter, trace *[]string) ([]*storylet.Storylet, error) {
	if d.pending != nil {
		return nil, ErrReshuffleInProgress
	}
	buckets, err := d.computeBuckets(filter, trace)
	if err != nil {
		return nil, err
	}
	return d.materialize(buckets, count), nil
}

// DrawAndPlay is DrawImmediate followed by Play on each returned
// storylet, in order.
func (d *Deck) DrawAndPlay(count int, filter Filter, trace *[]string) ([]*storylet.Storylet, error) {
	drawn, err := d.DrawImmediate(count, filter, trace)
	if err != nil {
		return nil, err
	}
	for _, s := range drawn {
		if err := d.Play(s); err != nil {
			return drawn, err
		}
	}
	return drawn, nil
}

// Play increments current_draw and applies the storylet's OnPlayed
// hook. It is the only operation that advances the draw counter or a
// storylet's cooldown (§4.7, §8).
func (d *Deck) Play(s *storylet.Storylet) error {
	d.currentDraw++
	return s.OnPlayed(d.currentDraw, d.ctx, d.parser)
}

// AsyncReshuffleID returns the token identifying the in-progress reshuffle, or
// the zero UUID with ok=false if none is pending (§DOMAIN STACK,
// google/uuid wiring).
func (d *Deck) AsyncReshuffleID() (uuid.UUID, bool) {
	if d.pending == nil {
		return uuid.UUID{}, false
	}
	return d.pending.id, true
}
