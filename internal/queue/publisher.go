package queue

import (
    "context"
    "encoding/json"
    "errors"
    "sync"
    "time"

    "github.com/google/uuid"
    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/fairdraw/internal/model"
    "github.com/iliyamo/fairdraw/internal/service"
)

// Publisher enqueues notifications instead of writing inboxes directly.
// It satisfies service.Inbox, so the dispatcher can use either transport.
// The connection is opened on first use and reopened after a failure.
type Publisher struct {
    url   string
    queue string
    log   service.Logger

    mu   sync.Mutex
    conn *amqp.Connection
    ch   *amqp.Channel
}

func NewPublisher(url, queue string, logger service.Logger) *Publisher {
    if queue == "" {
        queue = DefaultQueue
    }
    return &Publisher{url: url, queue: queue, log: logger}
}

// channel returns an open channel with the queue declared, dialing when
// needed.  Callers hold p.mu.
func (p *Publisher) channel() (*amqp.Channel, error) {
    if p.ch != nil && !p.ch.IsClosed() {
        return p.ch, nil
    }
    p.closeLocked()

    conn, err := amqp.Dial(p.url)
    if err != nil {
        return nil, err
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return nil, err
    }
    // Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
        _ = ch.Close()
        _ = conn.Close()
        return nil, err
    }
    p.conn, p.ch = conn, ch
    return ch, nil
}

// AppendOrCreate publishes n for entrantID as a persistent message.  The
// inbox is created by the consumer on delivery.
func (p *Publisher) AppendOrCreate(ctx context.Context, entrantID string, n *model.Notification) error {
    if entrantID == "" {
        return errors.New("queue: empty entrant id")
    }
    if n.ID == "" {
        n.ID = uuid.NewString()
    }
    if n.CreatedAt.IsZero() {
        n.CreatedAt = time.Now().UTC()
    }
    body, err := json.Marshal(newMessage(entrantID, n))
    if err != nil {
        return err
    }

    p.mu.Lock()
    defer p.mu.Unlock()
    ch, err := p.channel()
    if err != nil {
        p.log.Errorf("rabbitmq: open channel failed: %v", err)
        return err
    }
    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        MessageId:    n.ID,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
        p.log.Errorf("rabbitmq: publish %s failed: %v", n.ID, err)
        p.closeLocked()
        return err
    }
    return nil
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
    p.mu.Lock()
    defer p.mu.Unlock()
    p.closeLocked()
    return nil
}

func (p *Publisher) closeLocked() {
    if p.ch != nil {
        _ = p.ch.Close()
        p.ch = nil
    }
    if p.conn != nil {
        _ = p.conn.Close()
        p.conn = nil
    }
}
