package lottery

import (
    "errors"
    "reflect"
    "sort"
    "testing"

    "github.com/iliyamo/fairdraw/internal/model"
)

// scriptedRNG replays fixed answers, clamped into range.
type scriptedRNG struct {
    vals []int
    i    int
}

func (s *scriptedRNG) Intn(n int) int {
    if len(s.vals) == 0 {
        return 0
    }
    v := s.vals[s.i%len(s.vals)]
    s.i++
    if v >= n {
        v = n - 1
    }
    return v
}

func newEvent(capacity int, waiting, invited, enrolled []string) *model.Event {
    ev := model.NewEvent("ev-1", "Swim Lessons", capacity)
    ev.Waiting = model.NewIDSet(waiting...)
    ev.Invited = model.NewIDSet(invited...)
    ev.Enrolled = model.NewIDSet(enrolled...)
    return ev
}

func union(sets ...model.IDSet) []string {
    var out []string
    for _, s := range sets {
        out = append(out, s.Sorted()...)
    }
    sort.Strings(out)
    return out
}

func TestDraw_ScenarioA_OneSpotTwoWaiting(t *testing.T) {
    ev := newEvent(1, []string{"A", "B"}, nil, nil)

    res, err := Draw(ev, NewRNG(7))
    if err != nil {
        t.Fatalf("Expected no error, but got %v", err)
    }
    if res.Outcome != DrawDrawn {
        t.Fatalf("Expected outcome %q, got %q", DrawDrawn, res.Outcome)
    }
    if ev.Invited.Len() != 1 || ev.Waiting.Len() != 1 {
        t.Fatalf("Expected 1 invited and 1 waiting, got %d and %d", ev.Invited.Len(), ev.Waiting.Len())
    }
    if got := union(ev.Invited, ev.Waiting); !reflect.DeepEqual(got, []string{"A", "B"}) {
        t.Errorf("Expected invited+waiting to be {A,B}, got %v", got)
    }
    if len(res.Winners) != 1 || !ev.Invited.Has(res.Winners[0]) {
        t.Errorf("Expected the returned winner to be invited, got %v", res.Winners)
    }
}

func TestDraw_FillsUpToCapacity(t *testing.T) {
    ev := newEvent(3, []string{"a", "b"}, nil, nil)

    res, err := Draw(ev, NewRNG(1))
    if err != nil {
        t.Fatalf("Expected no error, but got %v", err)
    }
    if len(res.Winners) != 2 || ev.Waiting.Len() != 0 {
        t.Errorf("Expected both waiting entrants to be drawn, got winners=%v waiting=%d", res.Winners, ev.Waiting.Len())
    }
}

func TestDraw_NoSpotsReturnsCurrentInvitedWithoutMutation(t *testing.T) {
    ev := newEvent(3, []string{"c"}, []string{"i"}, []string{"x", "y"})
    before := ev.Clone()

    res, err := Draw(ev, NewRNG(1))
    if err != nil {
        t.Fatalf("Expected no error, but got %v", err)
    }
    if res.Outcome != DrawNoSpots {
        t.Fatalf("Expected outcome %q, got %q", DrawNoSpots, res.Outcome)
    }
    if len(res.Winners) != 0 {
        t.Errorf("Expected no winners, got %v", res.Winners)
    }
    if !reflect.DeepEqual(res.Invited, []string{"i"}) {
        t.Errorf("Expected invited snapshot [i], got %v", res.Invited)
    }
    assertSameMembership(t, before, ev)
}

func TestDraw_EmptyWaitingIsNoop(t *testing.T) {
    ev := newEvent(5, nil, []string{"i"}, []string{"e"})
    ev.Cancelled.Add("c")
    before := ev.Clone()

    res, err := Draw(ev, NewRNG(1))
    if err != nil {
        t.Fatalf("Expected no error, but got %v", err)
    }
    if res.Outcome != DrawNoCandidates {
        t.Errorf("Expected outcome %q, got %q", DrawNoCandidates, res.Outcome)
    }
    assertSameMembership(t, before, ev)
}

func TestDraw_NegativeCapacityIsRejected(t *testing.T) {
    ev := newEvent(-1, []string{"a"}, nil, nil)

    _, err := Draw(ev, NewRNG(1))
    if !errors.Is(err, model.ErrInvalidCapacity) {
        t.Fatalf("Expected ErrInvalidCapacity, got %v", err)
    }
    if !ev.Waiting.Has("a") {
        t.Error("Expected the waiting list to be untouched")
    }
}

func TestDraw_SeededIsReproducible(t *testing.T) {
    waiting := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
    first := newEvent(3, waiting, nil, nil)
    second := newEvent(3, waiting, nil, nil)

    r1, _ := Draw(first, NewRNG(42))
    r2, _ := Draw(second, NewRNG(42))
    if !reflect.DeepEqual(r1.Winners, r2.Winners) {
        t.Errorf("Expected identical winners for identical seeds, got %v and %v", r1.Winners, r2.Winners)
    }
}

func TestDraw_IsUniform(t *testing.T) {
    const rounds = 20000
    waiting := []string{"a", "b", "c", "d"}
    wins := map[string]int{}
    rng := NewRNG(99)
    for i := 0; i < rounds; i++ {
        ev := newEvent(1, waiting, nil, nil)
        res, err := Draw(ev, rng)
        if err != nil {
            t.Fatalf("Expected no error, but got %v", err)
        }
        wins[res.Winners[0]]++
    }
    want := rounds / len(waiting)
    for _, id := range waiting {
        // 5000 expected per entrant; +-8% is far outside sampling noise
        if d := wins[id] - want; d > want*8/100 || d < -want*8/100 {
            t.Errorf("Entrant %s won %d times, expected about %d", id, wins[id], want)
        }
    }
}

func TestReplace_ScenarioB(t *testing.T) {
    ev := newEvent(1, []string{"B", "C"}, []string{"A"}, nil)

    res, err := Replace(ev, "A", NewRNG(3))
    if err != nil {
        t.Fatalf("Expected no error, but got %v", err)
    }
    if res.Outcome != ReplaceReplaced {
        t.Fatalf("Expected outcome %q, got %q", ReplaceReplaced, res.Outcome)
    }
    if !ev.Cancelled.Has("A") || ev.Invited.Has("A") {
        t.Error("Expected A to move from invited to cancelled")
    }
    if res.Winner != "B" && res.Winner != "C" {
        t.Fatalf("Expected winner to be B or C, got %q", res.Winner)
    }
    if ev.Invited.Len() != 1 || !ev.Invited.Has(res.Winner) {
        t.Errorf("Expected only %s to be invited, got %v", res.Winner, ev.Invited.Sorted())
    }
    if ev.Waiting.Len() != 1 || ev.Waiting.Has(res.Winner) {
        t.Errorf("Expected the other candidate to stay waiting, got %v", ev.Waiting.Sorted())
    }
}

func TestReplace_PicksCandidateChosenByRNG(t *testing.T) {
    ev := newEvent(1, []string{"b", "c", "d"}, []string{"a"}, nil)

    res, _ := Replace(ev, "a", &scriptedRNG{vals: []int{2}})
    if res.Winner != "d" {
        t.Errorf("Expected the third sorted candidate d, got %q", res.Winner)
    }
}

func TestReplace_NotInvitedIsNoop(t *testing.T) {
    ev := newEvent(2, []string{"w"}, []string{"i"}, []string{"e"})
    before := ev.Clone()

    res, err := Replace(ev, "w", NewRNG(1))
    if err != nil {
        t.Fatalf("Expected no error, but got %v", err)
    }
    if res.Outcome != ReplaceNotInvited || res.Winner != "" {
        t.Errorf("Expected not_invited with no winner, got %+v", res)
    }
    assertSameMembership(t, before, ev)
}

func TestReplace_NoCandidatesStillCancelsDecliner(t *testing.T) {
    ev := newEvent(1, nil, []string{"a"}, nil)

    res, err := Replace(ev, "a", NewRNG(1))
    if err != nil {
        t.Fatalf("Expected no error, but got %v", err)
    }
    if res.Outcome != ReplaceNoCandidates {
        t.Errorf("Expected outcome %q, got %q", ReplaceNoCandidates, res.Outcome)
    }
    if ev.Invited.Len() != 0 || !ev.Cancelled.Has("a") {
        t.Errorf("Expected a in cancelled only, invited=%v cancelled=%v", ev.Invited.Sorted(), ev.Cancelled.Sorted())
    }
}

func TestReplace_DoesNotRefillAboveCapacity(t *testing.T) {
    // capacity lowered to 1 after two invitations went out
    ev := newEvent(1, []string{"w"}, []string{"a", "b"}, nil)

    res, err := Replace(ev, "a", NewRNG(1))
    if err != nil {
        t.Fatalf("Expected no error, but got %v", err)
    }
    if res.Outcome != ReplaceNoSpots {
        t.Errorf("Expected outcome %q, got %q", ReplaceNoSpots, res.Outcome)
    }
    if !ev.Waiting.Has("w") {
        t.Error("Expected w to remain waiting")
    }
}

func assertSameMembership(t *testing.T, want, got *model.Event) {
    t.Helper()
    pairs := []struct {
        name string
        a, b model.IDSet
    }{
        {"waiting", want.Waiting, got.Waiting},
        {"invited", want.Invited, got.Invited},
        {"enrolled", want.Enrolled, got.Enrolled},
        {"cancelled", want.Cancelled, got.Cancelled},
    }
    for _, p := range pairs {
        if !reflect.DeepEqual(p.a.Sorted(), p.b.Sorted()) {
            t.Errorf("%s changed: want %v, got %v", p.name, p.a.Sorted(), p.b.Sorted())
        }
    }
}
