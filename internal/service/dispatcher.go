package service

import (
    "context"
    "sync"
    "time"

    "github.com/google/uuid"

    "github.com/iliyamo/fairdraw/internal/model"
)

// Delivery is the outcome of one push.
type Delivery struct {
    EntrantID      string
    NotificationID string
    Err            error
}

// Report collects the deliveries of a fan-out in the order the recipients
// were given.
type Report struct {
    Deliveries []Delivery
}

// Delivered counts the successful pushes.
func (r Report) Delivered() int {
    n := 0
    for _, d := range r.Deliveries {
        if d.Err == nil {
            n++
        }
    }
    return n
}

// Failed lists the entrants whose push failed.
func (r Report) Failed() []string {
    out := []string{}
    for _, d := range r.Deliveries {
        if d.Err != nil {
            out = append(out, d.EntrantID)
        }
    }
    return out
}

func (r Report) AllDelivered() bool { return r.Delivered() == len(r.Deliveries) }

// Dispatcher delivers notifications to entrant inboxes.  A failed push is
// logged and reported; it never undoes the allocation that caused it.
type Dispatcher struct {
    inbox Inbox
    audit DeliveryLog
    log   Logger
}

// NewDispatcher returns a dispatcher writing to inbox.  audit may be nil
// when deliveries are recorded further down the line, as the queue
// consumer does.
func NewDispatcher(inbox Inbox, audit DeliveryLog, logger Logger) *Dispatcher {
    return &Dispatcher{inbox: inbox, audit: audit, log: logger}
}

// Push appends n to the inbox of entrantID and records the delivery.
func (d *Dispatcher) Push(ctx context.Context, entrantID string, n *model.Notification) error {
    if n.ID == "" {
        n.ID = uuid.NewString()
    }
    if n.CreatedAt.IsZero() {
        n.CreatedAt = time.Now().UTC()
    }
    if err := d.inbox.AppendOrCreate(ctx, entrantID, n); err != nil {
        d.log.Errorf("notify: push %s to %s failed: %v", n.Type, entrantID, err)
        return err
    }
    if d.audit != nil {
        entry := model.NotificationLogEntry{
            RecipientID: entrantID,
            EventID:     n.EventID,
            EventTitle:  n.Title,
            Type:        n.Type,
        }
        if err := d.audit.Record(ctx, entry); err != nil {
            d.log.Warnf("notify: audit %s for %s failed: %v", n.ID, entrantID, err)
        }
    }
    return nil
}

// FanOut pushes build(id) to every id concurrently, one goroutine per
// recipient, and waits for all of them.  The pushes run on a context
// detached from ctx's cancellation so an aborted request does not cut
// deliveries short.  A nil notification from build skips that recipient.
func (d *Dispatcher) FanOut(ctx context.Context, ids []string, build func(id string) *model.Notification) Report {
    ctx = context.WithoutCancel(ctx)
    deliveries := make([]Delivery, len(ids))
    var wg sync.WaitGroup
    for i, id := range ids {
        n := build(id)
        if n == nil {
            continue
        }
        if n.ID == "" {
            n.ID = uuid.NewString()
        }
        deliveries[i] = Delivery{EntrantID: id, NotificationID: n.ID}
        wg.Add(1)
        go func(i int, id string, n *model.Notification) {
            defer wg.Done()
            deliveries[i].Err = d.Push(ctx, id, n)
        }(i, id, n)
    }
    wg.Wait()

    out := deliveries[:0]
    for _, dl := range deliveries {
        if dl.EntrantID != "" {
            out = append(out, dl)
        }
    }
    r := Report{Deliveries: out}
    if !r.AllDelivered() {
        d.log.Warnf("notify: %d of %d pushes failed", len(r.Failed()), len(r.Deliveries))
    }
    return r
}

// notice builds a notification of type t about ev with the default title.
func notice(t model.NotificationType, ev *model.Event) *model.Notification {
    return &model.Notification{
        Type:    t,
        EventID: ev.ID,
        Title:   t.Title(ev.Title),
    }
}
