package service

import (
    "context"
    "errors"
    "fmt"
    "strings"

    "github.com/google/uuid"

    "github.com/iliyamo/fairdraw/internal/geo"
    "github.com/iliyamo/fairdraw/internal/lottery"
    "github.com/iliyamo/fairdraw/internal/model"
    "github.com/iliyamo/fairdraw/internal/repository"
)

var (
    ErrEventClosed     = errors.New("event is closed")
    ErrInvalidState    = errors.New("unknown event state")
    ErrInvalidAudience = errors.New("unknown audience")
    ErrEmptyMessage    = errors.New("message is required")
)

// errUnchanged makes mutate return the loaded record without writing it.
var errUnchanged = errors.New("unchanged")

// Options tunes the lottery service.
type Options struct {
    // CASAttempts bounds how often a transition is re-applied after losing
    // a version race.  Values below 1 mean a single attempt.
    CASAttempts      int
    NotifyLosers     bool
    NotifyWaitlisted bool
    GeoResolution    int
}

// LotteryService runs every event transition as load, apply, compare-and-
// swap, notify.  Allocation results are final once persisted; notification
// failures are reported to the caller but never roll them back.
type LotteryService struct {
    events EventStore
    notify *Dispatcher
    prefs  Preferences
    feed   EventPublisher
    rng    lottery.RNG
    log    Logger
    opts   Options
}

// NewLotteryService wires the service.  rng is shared between requests and
// must be safe for concurrent use; see lottery.Locked.  prefs and feed may
// be nil.
func NewLotteryService(events EventStore, notify *Dispatcher, prefs Preferences, feed EventPublisher,
    rng lottery.RNG, logger Logger, opts Options) *LotteryService {
    if opts.CASAttempts < 1 {
        opts.CASAttempts = 1
    }
    if opts.GeoResolution <= 0 {
        opts.GeoResolution = geo.DefaultResolution
    }
    return &LotteryService{
        events: events,
        notify: notify,
        prefs:  prefs,
        feed:   feed,
        rng:    rng,
        log:    logger,
        opts:   opts,
    }
}

// EventInput carries the organizer supplied fields of a new event.
type EventInput struct {
    Title            string
    Description      string
    Capacity         int
    WaitingListLimit *int
    Geolocation      bool
}

// CreateEvent stores a new draft event owned by organizerID.
func (s *LotteryService) CreateEvent(ctx context.Context, organizerID string, in EventInput) (*model.Event, error) {
    ev := model.NewEvent(uuid.NewString(), strings.TrimSpace(in.Title), in.Capacity)
    ev.Description = in.Description
    ev.OrganizerID = organizerID
    ev.WaitingListLimit = in.WaitingListLimit
    ev.Geolocation = in.Geolocation
    if err := ev.Validate(); err != nil {
        return nil, err
    }
    if err := s.events.Create(ctx, ev); err != nil {
        return nil, fmt.Errorf("create event: %w", err)
    }
    s.log.Infof("event %s created by %s (capacity %d)", ev.ID, organizerID, ev.Capacity)
    return ev, nil
}

// GetEvent loads the current record.
func (s *LotteryService) GetEvent(ctx context.Context, id string) (*model.Event, error) {
    return s.events.Load(ctx, id)
}

// ListEvents returns the events owned by organizerID, newest first.  The
// records carry no membership.
func (s *LotteryService) ListEvents(ctx context.Context, organizerID string) ([]model.Event, error) {
    return s.events.ListByOrganizer(ctx, organizerID)
}

// SetState publishes or closes an event.
func (s *LotteryService) SetState(ctx context.Context, organizerID, id string, state model.EventState) (*model.Event, error) {
    if !state.Valid() {
        return nil, ErrInvalidState
    }
    return s.mutate(ctx, id, func(ev *model.Event) error {
        if err := owns(ev, organizerID); err != nil {
            return err
        }
        if ev.State == state {
            return errUnchanged
        }
        ev.State = state
        return nil
    })
}

// DrawSummary is the result of an organizer draw.
type DrawSummary struct {
    Event  *model.Event
    Result lottery.DrawResult
    Report Report
}

// Draw fills open spots from the waiting list and notifies every winner.
// With NotifyLosers set, entrants left waiting after a real draw are sent
// a LOSE notice in the same fan-out.
func (s *LotteryService) Draw(ctx context.Context, organizerID, id string) (DrawSummary, error) {
    var res lottery.DrawResult
    ev, err := s.mutate(ctx, id, func(ev *model.Event) error {
        if err := owns(ev, organizerID); err != nil {
            return err
        }
        var err error
        res, err = lottery.Draw(ev, s.rng)
        if err != nil {
            return err
        }
        if res.Outcome != lottery.DrawDrawn {
            return errUnchanged
        }
        return nil
    })
    if err != nil {
        return DrawSummary{}, err
    }
    s.log.Infof("event %s draw: %s, %d winners", id, res.Outcome, len(res.Winners))

    sum := DrawSummary{Event: ev, Result: res}
    if res.Outcome != lottery.DrawDrawn {
        return sum, nil
    }
    winners := model.NewIDSet(res.Winners...)
    recipients := append([]string{}, res.Winners...)
    if s.opts.NotifyLosers {
        recipients = append(recipients, ev.Waiting.Sorted()...)
    }
    sum.Report = s.notify.FanOut(ctx, recipients, func(entrant string) *model.Notification {
        if winners.Has(entrant) {
            return notice(model.NotificationWin, ev)
        }
        return notice(model.NotificationLose, ev)
    })
    return sum, nil
}

// Join puts entrantID on the waiting list, optionally with a location.
func (s *LotteryService) Join(ctx context.Context, id, entrantID string, loc *model.Location) (*model.Event, error) {
    ev, err := s.mutate(ctx, id, func(ev *model.Event) error {
        if ev.State == model.EventClosed {
            return ErrEventClosed
        }
        return lottery.Join(ev, entrantID, loc)
    })
    if err != nil {
        return nil, err
    }
    if s.opts.NotifyWaitlisted {
        if err := s.notify.Push(context.WithoutCancel(ctx), entrantID, notice(model.NotificationWaitlist, ev)); err != nil {
            s.log.Warnf("event %s: %s joined but the waitlist notice was not delivered: %v", id, entrantID, err)
        }
    }
    return ev, nil
}

// Leave takes entrantID off the waiting list.
func (s *LotteryService) Leave(ctx context.Context, id, entrantID string) (*model.Event, error) {
    return s.mutate(ctx, id, func(ev *model.Event) error {
        return lottery.Leave(ev, entrantID)
    })
}

// Accept enrolls an invited entrant.  accepted is false when entrantID
// held no invitation, including a repeated accept.
func (s *LotteryService) Accept(ctx context.Context, id, entrantID string) (ev *model.Event, accepted bool, err error) {
    ev, err = s.mutate(ctx, id, func(ev *model.Event) error {
        accepted = lottery.Accept(ev, entrantID)
        if !accepted {
            return errUnchanged
        }
        return nil
    })
    return ev, accepted, err
}

// DeclineSummary is the result of an entrant declining an invitation.
type DeclineSummary struct {
    Event  *model.Event
    Result lottery.ReplaceResult
    Report Report
}

// Decline releases entrantID's invitation and backfills it from the
// waiting list.  Only the replacement is notified.
func (s *LotteryService) Decline(ctx context.Context, id, entrantID string) (DeclineSummary, error) {
    var res lottery.ReplaceResult
    ev, err := s.mutate(ctx, id, func(ev *model.Event) error {
        var err error
        res, err = lottery.Decline(ev, entrantID, s.rng)
        if err != nil {
            return err
        }
        if res.Outcome == lottery.ReplaceNotInvited {
            return errUnchanged
        }
        return nil
    })
    if err != nil {
        return DeclineSummary{}, err
    }
    s.log.Infof("event %s decline by %s: %s %s", id, entrantID, res.Outcome, res.Winner)

    sum := DeclineSummary{Event: ev, Result: res}
    if res.Outcome == lottery.ReplaceReplaced {
        sum.Report = s.notify.FanOut(ctx, []string{res.Winner}, func(string) *model.Notification {
            return notice(model.NotificationWin, ev)
        })
    }
    return sum, nil
}

// Audience selects which membership set a broadcast goes to.
type Audience string

const (
    AudienceWaiting   Audience = "WAITING"
    AudienceInvited   Audience = "INVITED"
    AudienceEnrolled  Audience = "ENROLLED"
    AudienceCancelled Audience = "CANCELLED"
)

func (a Audience) members(ev *model.Event) (model.IDSet, bool) {
    switch a {
    case AudienceWaiting:
        return ev.Waiting, true
    case AudienceInvited:
        return ev.Invited, true
    case AudienceEnrolled:
        return ev.Enrolled, true
    case AudienceCancelled:
        return ev.Cancelled, true
    }
    return nil, false
}

// BroadcastSummary reports a broadcast; Skipped lists entrants who turned
// notifications off.
type BroadcastSummary struct {
    Report  Report
    Skipped []string
}

// Broadcast sends an organizer written message to one audience of the
// event.  Entrants who disabled notifications are skipped.
func (s *LotteryService) Broadcast(ctx context.Context, organizerID, id string, audience Audience, title, message string) (BroadcastSummary, error) {
    if strings.TrimSpace(message) == "" {
        return BroadcastSummary{}, ErrEmptyMessage
    }
    ev, err := s.events.Load(ctx, id)
    if err != nil {
        return BroadcastSummary{}, err
    }
    if err := owns(ev, organizerID); err != nil {
        return BroadcastSummary{}, err
    }
    ev.EnsureSets()
    set, ok := audience.members(ev)
    if !ok {
        return BroadcastSummary{}, ErrInvalidAudience
    }
    ids := set.Sorted()

    sum := BroadcastSummary{Skipped: []string{}}
    if s.prefs != nil && len(ids) > 0 {
        enabled, err := s.prefs.NotificationsEnabled(ctx, ids)
        if err != nil {
            return BroadcastSummary{}, fmt.Errorf("load preferences: %w", err)
        }
        kept := ids[:0]
        for _, id := range ids {
            if enabled[id] {
                kept = append(kept, id)
            } else {
                sum.Skipped = append(sum.Skipped, id)
            }
        }
        ids = kept
    }

    if title = strings.TrimSpace(title); title == "" {
        title = model.NotificationOther.Title(ev.Title)
    }
    sum.Report = s.notify.FanOut(ctx, ids, func(string) *model.Notification {
        return &model.Notification{
            Type:    model.NotificationOther,
            EventID: ev.ID,
            Title:   title,
            Message: message,
        }
    })
    s.log.Infof("event %s broadcast to %s: %d sent, %d skipped", id, audience, len(sum.Report.Deliveries), len(sum.Skipped))
    return sum, nil
}

// WaitlistMap aggregates every location recorded at join time, including
// those of entrants since drawn or cancelled.  A negative resolution uses
// the configured default.
func (s *LotteryService) WaitlistMap(ctx context.Context, organizerID, id string, resolution int) ([]model.AreaStats, error) {
    ev, err := s.events.Load(ctx, id)
    if err != nil {
        return nil, err
    }
    if err := owns(ev, organizerID); err != nil {
        return nil, err
    }
    if resolution < 0 {
        resolution = s.opts.GeoResolution
    }
    return geo.Aggregate(ev.WaitlistLocations, resolution), nil
}

// mutate loads event id, applies fn and writes the record back guarded by
// its version.  When another writer got there first the whole sequence is
// repeated against the fresh record, up to CASAttempts times.  fn returning
// errUnchanged ends the call successfully without a write.
func (s *LotteryService) mutate(ctx context.Context, id string, fn func(ev *model.Event) error) (*model.Event, error) {
    var lastErr error
    for attempt := 1; attempt <= s.opts.CASAttempts; attempt++ {
        ev, err := s.events.Load(ctx, id)
        if err != nil {
            return nil, err
        }
        ev.EnsureSets()
        if err := fn(ev); err != nil {
            if errors.Is(err, errUnchanged) {
                return ev, nil
            }
            return nil, err
        }
        err = s.events.Replace(ctx, ev)
        if err == nil {
            s.publish(ctx, ev)
            return ev, nil
        }
        if !errors.Is(err, repository.ErrVersionConflict) {
            return nil, fmt.Errorf("persist event %s: %w", id, err)
        }
        lastErr = err
        s.log.Warnf("event %s: version %d is stale (attempt %d of %d)", id, ev.Version, attempt, s.opts.CASAttempts)
    }
    return nil, lastErr
}

func (s *LotteryService) publish(ctx context.Context, ev *model.Event) {
    if s.feed == nil {
        return
    }
    if err := s.feed.Publish(ctx, ev); err != nil {
        s.log.Warnf("event %s: feed publish failed: %v", ev.ID, err)
    }
}

func owns(ev *model.Event, organizerID string) error {
    if ev.OrganizerID != organizerID {
        return repository.ErrForbidden
    }
    return nil
}
