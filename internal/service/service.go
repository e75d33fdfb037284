// Package service orchestrates the lottery: it loads an event record,
// applies a transition from package lottery, persists the result and then
// notifies the entrants affected by the change.
package service

import (
    "context"

    "github.com/iliyamo/fairdraw/internal/model"
)

//go:generate mockgen -source=service.go -destination=mocks/mock.go -package=mocks

// EventStore loads and writes whole event records.  Replace must reject a
// record whose Version is stale with repository.ErrVersionConflict.
type EventStore interface {
    Create(ctx context.Context, ev *model.Event) error
    Load(ctx context.Context, id string) (*model.Event, error)
    Replace(ctx context.Context, ev *model.Event) error
    ListByOrganizer(ctx context.Context, organizerID string) ([]model.Event, error)
}

// Inbox appends a notification to an entrant inbox, creating the inbox
// when it does not exist.
type Inbox interface {
    AppendOrCreate(ctx context.Context, entrantID string, n *model.Notification) error
}

// DeliveryLog records delivered notifications for administrators.
type DeliveryLog interface {
    Record(ctx context.Context, e model.NotificationLogEntry) error
}

// Preferences answers whether entrants accept organizer broadcasts.
type Preferences interface {
    NotificationsEnabled(ctx context.Context, ids []string) (map[string]bool, error)
}

// EventPublisher announces a freshly persisted record to live subscribers.
type EventPublisher interface {
    Publish(ctx context.Context, ev *model.Event) error
}
