package repository

import (
    "context"
    "encoding/json"
    "sync"

    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/fairdraw/internal/model"
)

// EventFeed broadcasts persisted event records over Redis pub/sub so that
// open entrant and organizer views can refresh without polling.  Each event
// has its own channel, "<prefix>:<event id>".
type EventFeed struct {
    rdb    *redis.Client
    prefix string
}

func NewEventFeed(rdb *redis.Client, prefix string) *EventFeed {
    if prefix == "" {
        prefix = "events"
    }
    return &EventFeed{rdb: rdb, prefix: prefix}
}

func (f *EventFeed) channel(id string) string { return f.prefix + ":" + id }

// Publish sends the current record to every subscriber of ev.ID.  A feed
// without a Redis client drops the message.
func (f *EventFeed) Publish(ctx context.Context, ev *model.Event) error {
    if f == nil || f.rdb == nil {
        return nil
    }
    b, err := json.Marshal(ev)
    if err != nil {
        return err
    }
    return f.rdb.Publish(ctx, f.channel(ev.ID), b).Err()
}

// Subscribe streams records published for id until ctx ends or the returned
// cancel func is called.  cancel is idempotent and returns only after the
// stream has been closed, so no record is delivered after it returns.
// Messages that fail to decode are skipped.
func (f *EventFeed) Subscribe(ctx context.Context, id string) (<-chan *model.Event, func()) {
    out := make(chan *model.Event, 8)
    if f == nil || f.rdb == nil {
        close(out)
        return out, func() {}
    }

    ps := f.rdb.Subscribe(ctx, f.channel(id))
    stop := make(chan struct{})
    done := make(chan struct{})
    var once sync.Once
    cancel := func() {
        once.Do(func() {
            close(stop)
            _ = ps.Close()
        })
        <-done
        for range out {
        }
    }

    go func() {
        defer close(done)
        defer close(out)
        msgs := ps.Channel()
        for {
            select {
            case <-stop:
                return
            case <-ctx.Done():
                _ = ps.Close()
                return
            case m, ok := <-msgs:
                if !ok {
                    return
                }
                ev := &model.Event{}
                if err := json.Unmarshal([]byte(m.Payload), ev); err != nil {
                    continue
                }
                ev.EnsureSets()
                select {
                case out <- ev:
                case <-stop:
                    return
                case <-ctx.Done():
                    _ = ps.Close()
                    return
                }
            }
        }
    }()
    return out, cancel
}
