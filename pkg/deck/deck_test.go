package deck

import (
	"testing"

	"github.com/corvidfield/storylet-engine/pkg/exprlang"
	"github.com/corvidfield/storylet-engine/pkg/storylet"
)

func newStorylet(t *testing.T, id, condition string, priority int) *storylet.Storylet {
	t.Helper()
	s := storylet.New(id)
	s.FixedPriority = priority
	if condition != "" {
		expr, err := exprlang.NewParser().Parse(condition)
		if err != nil {
			t.Fatalf("failed to compile condition %q: %v", condition, err)
		}
		s.Condition = expr
	}
	return s
}

func TestAddStorylet_DuplicateIDFails(t *testing.T) {
	d := New()
	if err := d.AddStorylet(newStorylet(t, "a", "", 0)); err != nil {
		t.Fatal(err)
	}
	if err := d.AddStorylet(newStorylet(t, "a", "", 0)); err != ErrDuplicateID {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
}

func TestDrawImmediate_RespectsConditionFilterAndCanDraw(t *testing.T) {
	d := New(WithSeed(1))
	ctx := d.Context()
	ctx.Set("go", exprlang.Bool(true))

	eligible := newStorylet(t, "eligible", "go", 0)
	ineligible := newStorylet(t, "ineligible", "not go", 0)
	neverAgain := storylet.New("played-out")
	neverAgain.Redraw = storylet.RedrawNever

	for _, s := range []*storylet.Storylet{eligible, ineligible, neverAgain} {
		if err := d.AddStorylet(s); err != nil {
			t.Fatal(err)
		}
	}
	// Play the NEVER storylet once so it drops out of future draws.
	if err := d.Play(neverAgain); err != nil {
		t.Fatal(err)
	}

	drawn, err := d.DrawImmediate(-1, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	ids := map[string]bool{}
	for _, s := range drawn {
		ids[s.ID] = true
	}
	if !ids["eligible"] {
		t.Fatal("expected the true-condition storylet to be drawn")
	}
	if ids["ineligible"] {
		t.Fatal("expected the false-condition storylet to be excluded")
	}
	if ids["played-out"] {
		t.Fatal("expected the NEVER storylet to be excluded after being played")
	}
}

func TestDrawImmediate_FilterPredicate(t *testing.T) {
	d := New(WithSeed(2))
	tagged := newStorylet(t, "start", "", 0)
	tagged.Content = map[string]any{"tags": []string{"start"}}
	other := newStorylet(t, "other", "", 0)
	other.Content = map[string]any{"tags": []string{}}
	_ = d.AddStorylet(tagged)
	_ = d.AddStorylet(other)

	filter := func(s *storylet.Storylet) bool {
		m, ok := s.Content.(map[string]any)
		if !ok {
			return false
		}
		tags, _ := m["tags"].([]string)
		for _, tg := range tags {
			if tg == "start" {
				return true
			}
		}
		return false
	}

	drawn, err := d.DrawImmediate(-1, filter, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(drawn) != 1 || drawn[0].ID != "start" {
		t.Fatalf("expected only the start-tagged storylet, got %v", drawn)
	}
}

func TestBucketOrderingHighPriorityFirst(t *testing.T) {
	d := New(WithSeed(3))
	low := newStorylet(t, "low", "", 1)
	high := newStorylet(t, "high", "", 10)
	_ = d.AddStorylet(low)
	_ = d.AddStorylet(high)

	drawn, err := d.DrawImmediate(-1, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(drawn) != 2 || drawn[0].ID != "high" || drawn[1].ID != "low" {
		t.Fatalf("expected [high, low], got %v", drawn)
	}
}

func TestBucketShufflePermutationsReachable(t *testing.T) {
	seen := map[string]bool{}
	for seed := int64(0); seed < 50; seed++ {
		d := New(WithSeed(seed))
		for _, id := range []string{"a", "b", "c"} {
			_ = d.AddStorylet(newStorylet(t, id, "", 0))
		}
		drawn, err := d.DrawImmediate(-1, nil, nil)
		if err != nil {
			t.Fatal(err)
		}
		key := drawn[0].ID + drawn[1].ID + drawn[2].ID
		seen[key] = true
	}
	if len(seen) < 3 {
		t.Fatalf("expected multiple distinct permutations across seeds, saw %d: %v", len(seen), seen)
	}
}

func TestPlayIsTheOnlyOperationThatAdvancesState(t *testing.T) {
	d := New(WithSeed(4))
	s := newStorylet(t, "s", "", 0)
	s.Redraw = 2
	_ = d.AddStorylet(s)

	if _, err := d.DrawImmediate(-1, nil, nil); err != nil {
		t.Fatal(err)
	}
	if d.CurrentDraw() != 0 || s.NextPlay() != 0 {
		t.Fatal("Draw must not change current_draw or next_play")
	}

	if err := d.Play(s); err != nil {
		t.Fatal(err)
	}
	if d.CurrentDraw() != 1 || s.NextPlay() != 3 {
		t.Fatalf("expected current_draw=1, next_play=3, got %d, %d", d.CurrentDraw(), s.NextPlay())
	}
}

func TestReshuffleModelDrawPopsHead(t *testing.T) {
	d := New(WithSeed(5))
	for _, id := range []string{"a", "b"} {
		_ = d.AddStorylet(newStorylet(t, id, "", 1))
	}
	if err := d.Reshuffle(nil, nil); err != nil {
		t.Fatal(err)
	}
	if d.PileLen() != 2 {
		t.Fatalf("expected pile of 2, got %d", d.PileLen())
	}
	before, _ := d.DumpDrawPile()
	first, ok, err := d.Draw()
	if err != nil || !ok {
		t.Fatalf("expected a draw, err=%v ok=%v", err, ok)
	}
	if d.PileLen() != 1 {
		t.Fatalf("expected pile to shrink to 1, got %d", d.PileLen())
	}
	if first.ID != before[0] {
		t.Fatalf("expected Draw to pop the head %q, got %q", before[0], first.ID)
	}
}

func TestDrawHandReshufflesWhenPileEmpties(t *testing.T) {
	d := New(WithSeed(6))
	for _, id := range []string{"a", "b"} {
		_ = d.AddStorylet(newStorylet(t, id, "", 0))
	}
	if err := d.Reshuffle(nil, nil); err != nil {
		t.Fatal(err)
	}
	hand, err := d.DrawHand(3, true, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hand) != 3 {
		t.Fatalf("expected a hand of 3 (pile refilled mid-hand), got %d", len(hand))
	}
}

func TestDrawHandWithoutReshuffleStopsShort(t *testing.T) {
	d := New(WithSeed(7))
	for _, id := range []string{"a", "b"} {
		_ = d.AddStorylet(newStorylet(t, id, "", 0))
	}
	if err := d.Reshuffle(nil, nil); err != nil {
		t.Fatal(err)
	}
	hand, err := d.DrawHand(5, false, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hand) != 2 {
		t.Fatalf("expected a short hand of 2, got %d", len(hand))
	}
}

func TestAsyncReshuffle_ChunkedCompletion(t *testing.T) {
	// Scenario 6 from spec §8: asyncReshuffleCount=N, M storylets
	// completes after ceil(M/N) Update calls, callback fires on the
	// final one, and Draw/Reshuffle fail while pending.
	const chunkSize, storyletCount = 3, 10
	d := New(WithSeed(8), WithAsyncChunkSize(chunkSize))
	for i := 0; i < storyletCount; i++ {
		_ = d.AddStorylet(newStorylet(t, string(rune('a'+i)), "", 0))
	}

	var fired bool
	var result []*storylet.Storylet
	if err := d.ReshuffleAsync(func(pile []*storylet.Storylet) {
		fired = true
		result = pile
	}, nil, nil); err != nil {
		t.Fatal(err)
	}

	if !d.AsyncReshuffleInProgress() {
		t.Fatal("expected AsyncReshuffleInProgress to be true immediately after ReshuffleAsync")
	}
	if _, err := d.DrawImmediate(-1, nil, nil); err != ErrReshuffleInProgress {
		t.Fatalf("expected ErrReshuffleInProgress, got %v", err)
	}
	if err := d.Reshuffle(nil, nil); err != ErrReshuffleInProgress {
		t.Fatalf("expected ErrReshuffleInProgress, got %v", err)
	}
	if err := d.ReshuffleAsync(nil, nil, nil); err != ErrReshuffleInProgress {
		t.Fatalf("expected ErrReshuffleInProgress, got %v", err)
	}

	wantCalls := (storyletCount + chunkSize - 1) / chunkSize
	calls := 0
	for d.AsyncReshuffleInProgress() {
		if err := d.Update(); err != nil {
			t.Fatal(err)
		}
		calls++
		if calls > wantCalls {
			t.Fatalf("Update did not converge within %d calls", wantCalls)
		}
	}
	if calls != wantCalls {
		t.Fatalf("expected exactly %d Update calls, got %d", wantCalls, calls)
	}
	if !fired {
		t.Fatal("expected the completion callback to have fired")
	}
	if len(result) != storyletCount {
		t.Fatalf("expected the full pile in the callback, got %d", len(result))
	}
	if d.AsyncReshuffleInProgress() {
		t.Fatal("expected pending state cleared after completion")
	}
}

func TestAsyncReshuffleAbort(t *testing.T) {
	d := New(WithSeed(9), WithAsyncChunkSize(1))
	_ = d.AddStorylet(newStorylet(t, "a", "", 0))
	_ = d.AddStorylet(newStorylet(t, "b", "", 0))
	fired := false
	if err := d.ReshuffleAsync(func([]*storylet.Storylet) { fired = true }, nil, nil); err != nil {
		t.Fatal(err)
	}
	d.AbortAsyncReshuffle()
	if d.AsyncReshuffleInProgress() {
		t.Fatal("expected abort to clear pending state")
	}
	if fired {
		t.Fatal("abort must never fire the callback")
	}
}

func TestResetPreservesContextClearsCooldownsAndCounter(t *testing.T) {
	d := New(WithSeed(10))
	ctx := d.Context()
	ctx.Set("flag", exprlang.Bool(true))
	s := newStorylet(t, "s", "", 0)
	s.Redraw = 5
	_ = d.AddStorylet(s)
	_ = d.Play(s)

	if d.CurrentDraw() == 0 || s.NextPlay() == 0 {
		t.Fatal("expected state to have advanced before Reset")
	}
	d.Reset()
	if d.CurrentDraw() != 0 {
		t.Fatal("expected current_draw reset to 0")
	}
	if s.NextPlay() != 0 {
		t.Fatal("expected storylet cooldown reset to 0")
	}
	v, err := ctx.Get("flag")
	if err != nil {
		t.Fatal(err)
	}
	if b, _ := v.ToBool(); !b {
		t.Fatal("expected Reset to preserve the context")
	}
}
