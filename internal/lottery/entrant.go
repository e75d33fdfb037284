package lottery

import (
    "errors"

    "github.com/iliyamo/fairdraw/internal/model"
)

var (
    ErrEmptyEntrantID       = errors.New("entrant id is required")
    ErrAlreadyParticipating = errors.New("entrant already participates in this event")
    ErrWaitlistFull         = errors.New("waiting list is full")
    ErrLocationRequired     = errors.New("event requires a location to join")
    ErrNotWaiting           = errors.New("entrant is not on the waiting list")
)

// Status is where an entrant stands relative to one event.
type Status string

const (
    StatusNotParticipating Status = "NOT_PARTICIPATING"
    StatusWaiting          Status = "WAITING"
    StatusInvited          Status = "INVITED"
    StatusEnrolled         Status = "ENROLLED"
    StatusCancelled        Status = "CANCELLED"
)

// StatusOf returns the collection id belongs to.
func StatusOf(ev *model.Event, id string) Status {
    ev.EnsureSets()
    switch {
    case ev.Enrolled.Has(id):
        return StatusEnrolled
    case ev.Invited.Has(id):
        return StatusInvited
    case ev.Waiting.Has(id):
        return StatusWaiting
    case ev.Cancelled.Has(id):
        return StatusCancelled
    }
    return StatusNotParticipating
}

// CanJoin reports whether id may be added to the waiting list.  It is false
// for an empty id, for entrants already waiting, invited, enrolled or
// cancelled, and when the waiting list is at its limit.
func CanJoin(ev *model.Event, id string) bool {
    if id == "" {
        return false
    }
    ev.EnsureSets()
    if ev.Enrolled.Has(id) || ev.Invited.Has(id) || ev.Waiting.Has(id) || ev.Cancelled.Has(id) {
        return false
    }
    return !ev.WaitlistFull()
}

// Button is the join affordance shown to an entrant on the event page.
type Button struct {
    Label   string `json:"label"`
    Enabled bool   `json:"enabled"`
}

const (
    LabelUnavailable    = "Unavailable"
    LabelEnrolled       = "Enrolled"
    LabelInvitationSent = "Invitation Sent"
    LabelOnWaitlist     = "On Waitlist"
    LabelCancelled      = "Cancelled"
    LabelWaitlistFull   = "Waitlist Full"
    LabelJoinWaitlist   = "Join Waitlist"
)

// JoinButton maps the entrant's standing to the join affordance.  The order
// of the checks matters: an invited entrant sees "Invitation Sent" even
// when the waiting list is full.
func JoinButton(ev *model.Event, id string) Button {
    if id == "" {
        return Button{Label: LabelUnavailable}
    }
    ev.EnsureSets()
    switch {
    case ev.Enrolled.Has(id):
        return Button{Label: LabelEnrolled}
    case ev.Invited.Has(id):
        return Button{Label: LabelInvitationSent}
    case ev.Waiting.Has(id):
        return Button{Label: LabelOnWaitlist}
    case ev.Cancelled.Has(id):
        return Button{Label: LabelCancelled}
    case ev.WaitlistFull():
        return Button{Label: LabelWaitlistFull}
    }
    return Button{Label: LabelJoinWaitlist, Enabled: true}
}

// Join adds id to the waiting list and records loc when given.  Entrants
// that already declined cannot come back; there is no rejoin path.
func Join(ev *model.Event, id string, loc *model.Location) error {
    if id == "" {
        return ErrEmptyEntrantID
    }
    if err := ev.Validate(); err != nil {
        return err
    }
    ev.EnsureSets()
    if ev.Enrolled.Has(id) || ev.Invited.Has(id) || ev.Waiting.Has(id) || ev.Cancelled.Has(id) {
        return ErrAlreadyParticipating
    }
    if ev.WaitlistFull() {
        return ErrWaitlistFull
    }
    if loc != nil {
        if err := loc.Validate(); err != nil {
            return err
        }
    } else if ev.Geolocation {
        return ErrLocationRequired
    }

    ev.Waiting.Add(id)
    if loc != nil {
        l := *loc
        ev.WaitlistLocations[id] = &l
    }
    return nil
}

// Leave removes id from the waiting list together with its location.
func Leave(ev *model.Event, id string) error {
    ev.EnsureSets()
    if !ev.Waiting.Remove(id) {
        return ErrNotWaiting
    }
    delete(ev.WaitlistLocations, id)
    return nil
}

// Accept moves an invited entrant to enrolled.  It reports false, without
// touching the record, when id holds no invitation; calling it twice is the
// same as calling it once.
func Accept(ev *model.Event, id string) bool {
    ev.EnsureSets()
    if !ev.Invited.Remove(id) {
        return false
    }
    ev.Enrolled.Add(id)
    return true
}

// Decline gives up the invitation held by id and backfills it from the
// waiting list.  An id without an invitation yields ReplaceNotInvited and
// leaves the record untouched.
func Decline(ev *model.Event, id string, rng RNG) (ReplaceResult, error) {
    return Replace(ev, id, rng)
}
