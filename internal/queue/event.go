// Package queue moves entrant notifications through RabbitMQ.  The
// publisher stands in for the inbox store on the request path and the
// consumer drains the queue into the real inboxes.
package queue

import (
    "time"

    "github.com/iliyamo/fairdraw/internal/model"
)

// DefaultQueue is the durable queue notifications travel on.
const DefaultQueue = "entrant.notifications"

// NotificationMessage is one notification addressed to one entrant.  The
// notification id survives redelivery, so the consumer can append it more
// than once without duplicating the inbox entry.
type NotificationMessage struct {
    EntrantID      string                 `json:"entrant_id"`
    NotificationID string                 `json:"notification_id"`
    Type           model.NotificationType `json:"type"`
    EventID        string                 `json:"event_id"`
    Title          string                 `json:"title"`
    Message        string                 `json:"message,omitempty"`
    CreatedAt      time.Time              `json:"created_at"`
}

func newMessage(entrantID string, n *model.Notification) NotificationMessage {
    return NotificationMessage{
        EntrantID:      entrantID,
        NotificationID: n.ID,
        Type:           n.Type,
        EventID:        n.EventID,
        Title:          n.Title,
        Message:        n.Message,
        CreatedAt:      n.CreatedAt,
    }
}

// Notification rebuilds the inbox entry carried by m.
func (m NotificationMessage) Notification() *model.Notification {
    return &model.Notification{
        ID:        m.NotificationID,
        Type:      m.Type,
        EventID:   m.EventID,
        Title:     m.Title,
        Message:   m.Message,
        CreatedAt: m.CreatedAt,
    }
}
