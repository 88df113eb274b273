// Package storylet defines the Storylet type: a named, self-describing
// content unit gated by a precompiled condition and ranked by a
// (possibly dynamic) priority, with a redraw cooldown policy and a
// map of context mutations applied on draw and on play.
package storylet

import (
	"github.com/corvidfield/storylet-engine/pkg/exprlang"
)

// Redraw policy sentinels (§3). Any non-negative integer other than
// these is a cooldown length in draws.
const (
	RedrawAlways = 0
	RedrawNever  = -1
)

// Update is a single context mutation: assign the result of
// evaluating Expr to Key. Expr is precompiled once at load time.
type Update struct {
	Key  string
	Expr exprlang.Expression
}

// Storylet is a single content unit owned by a Deck.
type Storylet struct {
	ID      string
	Content any // opaque, returned verbatim to the caller

	Redraw int // ALWAYS(0), NEVER(-1), or a positive cooldown in draws

	Condition exprlang.Expression // nil means "always eligible"

	// FixedPriority is used verbatim when PriorityExpr is nil.
	FixedPriority int
	PriorityExpr  exprlang.Expression // nil means use FixedPriority

	UpdateOnPlayed []Update
	UpdateOnDrawn  []Update

	// nextPlay is the earliest draw counter at which this storylet
	// becomes eligible again; -1 after a NEVER play (§3).
	nextPlay int
}

// New constructs a Storylet with sane defaults (ALWAYS redraw, no
// condition, priority zero).
func New(id string) *Storylet {
	return &Storylet{ID: id, Redraw: RedrawAlways}
}

// CanDraw implements the eligibility predicate of §4.6.
func (s *Storylet) CanDraw(current int) bool {
	if s.Redraw == RedrawNever {
		return s.nextPlay >= 0
	}
	if s.Redraw == RedrawAlways {
		return true
	}
	return current >= s.nextPlay
}

// OnPlayed advances the redraw cooldown and applies UpdateOnPlayed to
// ctx. Play is the only operation that mutates nextPlay (§8).
func (s *Storylet) OnPlayed(current int, ctx *exprlang.Context, p *exprlang.Parser) error {
	if s.Redraw == RedrawNever {
		s.nextPlay = -1
	} else {
		s.nextPlay = current + s.Redraw
	}
	return applyUpdates(s.UpdateOnPlayed, ctx, p)
}

// OnDrawn applies UpdateOnDrawn to ctx. It does not touch nextPlay;
// only OnPlayed does (§8, and the updateOnDrawn supplement in
// SPEC_FULL.md, fired once per pop from the reshuffle pile, ahead of
// the eventual Play that fires OnPlayed).
func (s *Storylet) OnDrawn(ctx *exprlang.Context, p *exprlang.Parser) error {
	return applyUpdates(s.UpdateOnDrawn, ctx, p)
}

func applyUpdates(updates []Update, ctx *exprlang.Context, p *exprlang.Parser) error {
	for _, u := range updates {
		v, err := u.Expr.Evaluate(ctx, nil)
		if err != nil {
			return err
		}
		if err := ctx.Update(u.Key, v); err != nil {
			return err
		}
	}
	return nil
}

// Reset clears the storylet's redraw cooldown, as required by
// Deck.Reset (§3: "a storylet reset clears next_play to 0").
func (s *Storylet) Reset() {
	s.nextPlay = 0
}

// NextPlay exposes the internal cooldown counter for diagnostics and
// tests; it is not part of the mutation surface (only OnPlayed and
// Reset may change it).
func (s *Storylet) NextPlay() int { return s.nextPlay }

// Priority evaluates the storylet's priority against ctx, truncating
// a dynamic expression's result to an integer (§4.6). When
// useSpecificity is set, the base priority is multiplied by 100 and
// the condition's specificity is added as a tie-break (0 if there is
// no condition).
func (s *Storylet) Priority(ctx *exprlang.Context, useSpecificity bool) (int, error) {
	base := s.FixedPriority
	if s.PriorityExpr != nil {
		v, err := s.PriorityExpr.Evaluate(ctx, nil)
		if err != nil {
			return 0, err
		}
		n, err := v.ToNumber()
		if err != nil {
			return 0, err
		}
		base = int(n)
	}
	if !useSpecificity {
		return base, nil
	}
	return base*100 + s.Specificity(), nil
}

// Specificity is the frozen tie-break rule from SPEC_FULL.md: one
// point per node in the condition's AST, zero for an absent
// condition. Equal conditions score equally; a strictly larger AST
// always scores strictly higher.
func (s *Storylet) Specificity() int {
	if s.Condition == nil {
		return 0
	}
	return s.Condition.Specificity()
}

// EvaluateCondition returns true when Condition is nil (an absent
// condition is always true, §3) or when it evaluates truthy against
// ctx.
func (s *Storylet) EvaluateCondition(ctx *exprlang.Context, trace *[]string) (bool, error) {
	if s.Condition == nil {
		return true, nil
	}
	v, err := s.Condition.Evaluate(ctx, trace)
	if err != nil {
		return false, err
	}
	return v.ToBool()
}
