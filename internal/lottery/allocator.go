package lottery

import "github.com/iliyamo/fairdraw/internal/model"

// DrawOutcome tags the result of a draw so callers never mistake the
// current invited list for freshly drawn winners.
type DrawOutcome string

const (
    // DrawDrawn means Winners moved from waiting to invited.
    DrawDrawn DrawOutcome = "drawn"
    // DrawNoSpots means invited + enrolled already fill capacity.
    DrawNoSpots DrawOutcome = "no_spots"
    // DrawNoCandidates means there were open spots but nobody waiting.
    DrawNoCandidates DrawOutcome = "no_candidates"
)

// DrawResult describes what a draw did.  Winners is only non-empty for
// DrawDrawn; Invited is a snapshot of the invited set after the call.
type DrawResult struct {
    Outcome DrawOutcome `json:"outcome"`
    Winners []string    `json:"winners"`
    Invited []string    `json:"invited"`
}

// Draw fills the open spots of ev from its waiting list.  The whole waiting
// pool is uniformly permuted before the winners are taken from the front,
// so every waiting entrant has the same chance regardless of join order.
// The pool is sorted before shuffling so the permutation depends on rng
// alone and a seeded rng reproduces the same draw.
func Draw(ev *model.Event, rng RNG) (DrawResult, error) {
    if err := ev.Validate(); err != nil {
        return DrawResult{}, err
    }
    ev.EnsureSets()

    spots := ev.OpenSpots()
    if spots <= 0 {
        return DrawResult{Outcome: DrawNoSpots, Winners: []string{}, Invited: ev.Invited.Sorted()}, nil
    }
    if ev.Waiting.Len() == 0 {
        return DrawResult{Outcome: DrawNoCandidates, Winners: []string{}, Invited: ev.Invited.Sorted()}, nil
    }

    n := min(spots, ev.Waiting.Len())
    pool := ev.Waiting.Sorted()
    shuffle(pool, rng)

    winners := pool[:n]
    for _, id := range winners {
        ev.Waiting.Remove(id)
        ev.Invited.Add(id)
    }
    return DrawResult{Outcome: DrawDrawn, Winners: winners, Invited: ev.Invited.Sorted()}, nil
}

// ReplaceOutcome tags the result of backfilling a declined invitation.
type ReplaceOutcome string

const (
    // ReplaceReplaced means Winner moved from waiting to invited.
    ReplaceReplaced ReplaceOutcome = "replaced"
    // ReplaceNotInvited means the decliner held no invitation; nothing changed.
    ReplaceNotInvited ReplaceOutcome = "not_invited"
    // ReplaceNoCandidates means the invitation was released but nobody was waiting.
    ReplaceNoCandidates ReplaceOutcome = "no_candidates"
    // ReplaceNoSpots means the invitation was released but capacity was
    // lowered below invited + enrolled, so the slot is not refilled.
    ReplaceNoSpots ReplaceOutcome = "no_spots"
)

// ReplaceResult describes what a replacement did.
type ReplaceResult struct {
    Outcome ReplaceOutcome `json:"outcome"`
    Winner  string         `json:"winner,omitempty"`
}

// Replace releases the invitation held by decliner and hands it to one
// waiting entrant chosen uniformly at random.  The decliner ends up in
// cancelled whether or not a replacement was found, including the
// no_candidates and no_spots outcomes; a released invitation is never left
// without a home in any set.
func Replace(ev *model.Event, decliner string, rng RNG) (ReplaceResult, error) {
    if err := ev.Validate(); err != nil {
        return ReplaceResult{}, err
    }
    ev.EnsureSets()

    if !ev.Invited.Remove(decliner) {
        return ReplaceResult{Outcome: ReplaceNotInvited}, nil
    }
    ev.Cancelled.Add(decliner)
    if ev.OpenSpots() <= 0 {
        return ReplaceResult{Outcome: ReplaceNoSpots}, nil
    }

    candidates := make([]string, 0, ev.Waiting.Len())
    for _, id := range ev.Waiting.Sorted() {
        if !ev.Invited.Has(id) {
            candidates = append(candidates, id)
        }
    }
    if len(candidates) == 0 {
        return ReplaceResult{Outcome: ReplaceNoCandidates}, nil
    }

    winner := candidates[rng.Intn(len(candidates))]
    ev.Waiting.Remove(winner)
    ev.Invited.Add(winner)
    return ReplaceResult{Outcome: ReplaceReplaced, Winner: winner}, nil
}
