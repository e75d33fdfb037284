package model

import (
    "encoding/json"
    "errors"
    "sort"
    "time"
)

// EventState is the publication state of an event as shown to organizers.
type EventState string

const (
    EventDraft     EventState = "DRAFT"
    EventPublished EventState = "PUBLISHED"
    EventClosed    EventState = "CLOSED"
)

// Valid reports whether s is one of the known states.
func (s EventState) Valid() bool {
    switch s {
    case EventDraft, EventPublished, EventClosed:
        return true
    }
    return false
}

// ErrInvalidCapacity is returned when an event carries a negative capacity
// or a negative waiting list limit.
var ErrInvalidCapacity = errors.New("capacity must not be negative")

// Event represents a limited-capacity event whose places are allocated by
// lottery.  Entrant ids live in exactly one of the four membership sets at a
// time; the allocator and the entrant transitions keep it that way.
//
// Fields:
//  ID                – opaque identifier, immutable after creation.
//  Title             – human readable title used in notification texts.
//  Description       – free text shown to entrants.
//  OrganizerID       – user id of the organizer that owns the event.
//  State             – DRAFT, PUBLISHED or CLOSED.
//  Capacity          – maximum combined invited + enrolled count.
//  WaitingListLimit  – optional cap on the waiting list (nil = unbounded).
//  Geolocation       – when true, entrants must supply a location on join.
//  Waiting           – entrants registered and not yet drawn.
//  Invited           – entrants drawn, pending accept/decline.
//  Enrolled          – entrants who accepted.
//  Cancelled         – entrants who declined or were replaced.
//  WaitlistLocations – location supplied on join, keyed by entrant id.
//  Version           – optimistic concurrency stamp, bumped on every write.
type Event struct {
    ID                string               `json:"id"`
    Title             string               `json:"title"`
    Description       string               `json:"description,omitempty"`
    OrganizerID       string               `json:"organizerId"`
    State             EventState           `json:"state"`
    Capacity          int                  `json:"capacity"`
    WaitingListLimit  *int                 `json:"waitingListLimit,omitempty"`
    Geolocation       bool                 `json:"geolocation"`
    Waiting           IDSet                `json:"waiting"`
    Invited           IDSet                `json:"invited"`
    Enrolled          IDSet                `json:"enrolled"`
    Cancelled         IDSet                `json:"cancelled"`
    WaitlistLocations map[string]*Location `json:"waitlistLocations,omitempty"`
    Version           uint64               `json:"version"`
    CreatedAt         time.Time            `json:"createdAt"`
    UpdatedAt         time.Time            `json:"updatedAt"`
}

// NewEvent returns an event with initialised membership sets.
func NewEvent(id, title string, capacity int) *Event {
    return &Event{
        ID:                id,
        Title:             title,
        State:             EventDraft,
        Capacity:          capacity,
        Waiting:           NewIDSet(),
        Invited:           NewIDSet(),
        Enrolled:          NewIDSet(),
        Cancelled:         NewIDSet(),
        WaitlistLocations: map[string]*Location{},
    }
}

// Validate checks the numeric fields of the record.
func (e *Event) Validate() error {
    if e.Capacity < 0 {
        return ErrInvalidCapacity
    }
    if e.WaitingListLimit != nil && *e.WaitingListLimit < 0 {
        return ErrInvalidCapacity
    }
    return nil
}

// EnsureSets replaces nil sets and maps with empty ones so records decoded
// from storage can be mutated safely.
func (e *Event) EnsureSets() {
    if e.Waiting == nil {
        e.Waiting = NewIDSet()
    }
    if e.Invited == nil {
        e.Invited = NewIDSet()
    }
    if e.Enrolled == nil {
        e.Enrolled = NewIDSet()
    }
    if e.Cancelled == nil {
        e.Cancelled = NewIDSet()
    }
    if e.WaitlistLocations == nil {
        e.WaitlistLocations = map[string]*Location{}
    }
}

// WaitlistFull reports whether the waiting list has reached its limit.
func (e *Event) WaitlistFull() bool {
    return e.WaitingListLimit != nil && e.Waiting.Len() >= *e.WaitingListLimit
}

// OpenSpots is capacity minus invited and enrolled; it may be negative when
// capacity was lowered after invitations went out.
func (e *Event) OpenSpots() int {
    return e.Capacity - e.Enrolled.Len() - e.Invited.Len()
}

// Clone returns a deep copy of the record.
func (e *Event) Clone() *Event {
    c := *e
    c.Waiting = e.Waiting.Clone()
    c.Invited = e.Invited.Clone()
    c.Enrolled = e.Enrolled.Clone()
    c.Cancelled = e.Cancelled.Clone()
    if e.WaitingListLimit != nil {
        l := *e.WaitingListLimit
        c.WaitingListLimit = &l
    }
    c.WaitlistLocations = make(map[string]*Location, len(e.WaitlistLocations))
    for k, v := range e.WaitlistLocations {
        if v == nil {
            c.WaitlistLocations[k] = nil
            continue
        }
        loc := *v
        c.WaitlistLocations[k] = &loc
    }
    return &c
}

// IDSet is a set of entrant ids.
type IDSet map[string]struct{}

// NewIDSet builds a set from the given ids; duplicates collapse.
func NewIDSet(ids ...string) IDSet {
    s := make(IDSet, len(ids))
    for _, id := range ids {
        s[id] = struct{}{}
    }
    return s
}

func (s IDSet) Has(id string) bool {
    _, ok := s[id]
    return ok
}

func (s IDSet) Add(id string) { s[id] = struct{}{} }

func (s IDSet) Len() int { return len(s) }

// Remove deletes id and reports whether it was present.
func (s IDSet) Remove(id string) bool {
    if _, ok := s[id]; !ok {
        return false
    }
    delete(s, id)
    return true
}

// Sorted returns the members in lexical order.
func (s IDSet) Sorted() []string {
    out := make([]string, 0, len(s))
    for id := range s {
        out = append(out, id)
    }
    sort.Strings(out)
    return out
}

func (s IDSet) Clone() IDSet {
    c := make(IDSet, len(s))
    for id := range s {
        c[id] = struct{}{}
    }
    return c
}

// MarshalJSON encodes the set as a sorted array.
func (s IDSet) MarshalJSON() ([]byte, error) {
    return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes an array of ids.
func (s *IDSet) UnmarshalJSON(b []byte) error {
    var ids []string
    if err := json.Unmarshal(b, &ids); err != nil {
        return err
    }
    *s = NewIDSet(ids...)
    return nil
}
