package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/fairdraw/internal/model"
    "github.com/iliyamo/fairdraw/internal/service"
)

// Consumer drains the notification queue into entrant inboxes and records
// every delivery in the administrator log.
type Consumer struct {
    url   string
    queue string
    inbox service.Inbox
    audit service.DeliveryLog
    log   service.Logger
}

func NewConsumer(url, queue string, inbox service.Inbox, audit service.DeliveryLog, logger service.Logger) *Consumer {
    if queue == "" {
        queue = DefaultQueue
    }
    return &Consumer{url: url, queue: queue, inbox: inbox, audit: audit, log: logger}
}

// Run connects to RabbitMQ and consumes until ctx is cancelled.  Lost
// connections are re-dialed with exponential backoff capped at 30s; Run
// only returns once ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(c.url)
        if err != nil {
            c.log.Warnf("notify-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
            if !sleep(ctx, backoff) {
                return nil
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        err = c.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return nil
        }
        c.log.Warnf("notify-consumer: consume loop ended: %v; reconnecting", err)
        if !sleep(ctx, 2*time.Second) {
            return nil
        }
    }
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.log.Warnf("notify-consumer: set QoS failed: %v", err)
    }
    if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            c.settle(d, c.handle(ctx, d.Body))
        }
    }
}

// settle acks a handled delivery.  A message that cannot be decoded is
// dropped; a failed store write is requeued once and dropped if it fails
// again on redelivery, so a poisoned message cannot spin forever.
func (c *Consumer) settle(d amqp.Delivery, err error) {
    if err == nil {
        _ = d.Ack(false)
        return
    }
    var bad *malformedError
    requeue := !errors.As(err, &bad) && !d.Redelivered
    c.log.Errorf("notify-consumer: handle message %s failed (requeue=%v): %v", d.MessageId, requeue, err)
    _ = d.Nack(false, requeue)
}

type malformedError struct{ err error }

func (e *malformedError) Error() string { return "malformed message: " + e.err.Error() }
func (e *malformedError) Unwrap() error { return e.err }

func (c *Consumer) handle(ctx context.Context, body []byte) error {
    var m NotificationMessage
    if err := json.Unmarshal(body, &m); err != nil {
        return &malformedError{err}
    }
    if m.EntrantID == "" || m.NotificationID == "" {
        return &malformedError{errors.New("entrant and notification id are required")}
    }
    n := m.Notification()
    if err := c.inbox.AppendOrCreate(ctx, m.EntrantID, n); err != nil {
        return fmt.Errorf("append to inbox: %w", err)
    }
    if c.audit != nil {
        entry := model.NotificationLogEntry{
            RecipientID: m.EntrantID,
            EventID:     m.EventID,
            EventTitle:  m.Title,
            Type:        m.Type,
        }
        if err := c.audit.Record(ctx, entry); err != nil {
            c.log.Warnf("notify-consumer: audit %s failed: %v", m.NotificationID, err)
        }
    }
    return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}
