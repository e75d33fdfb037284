package repository

import (
    "context"
    "database/sql"

    "github.com/iliyamo/fairdraw/internal/model"
)

// NotificationLogRepo keeps the administrator audit trail of deliveries.
type NotificationLogRepo struct{ DB *sql.DB }

func NewNotificationLogRepo(db *sql.DB) *NotificationLogRepo { return &NotificationLogRepo{DB: db} }

// Record appends one audit row.
func (r *NotificationLogRepo) Record(ctx context.Context, e model.NotificationLogEntry) error {
    _, err := r.DB.ExecContext(ctx,
        "INSERT INTO notification_log (recipient_id, event_id, event_title, type) VALUES (?,?,?,?)",
        e.RecipientID, e.EventID, e.EventTitle, string(e.Type))
    return err
}

// List returns up to limit entries, newest first.
func (r *NotificationLogRepo) List(ctx context.Context, limit int) ([]model.NotificationLogEntry, error) {
    if limit <= 0 || limit > 500 {
        limit = 100
    }
    rows, err := r.DB.QueryContext(ctx,
        "SELECT id, recipient_id, event_id, event_title, type, created_at FROM notification_log ORDER BY id DESC LIMIT ?",
        limit)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := []model.NotificationLogEntry{}
    for rows.Next() {
        var (
            e   model.NotificationLogEntry
            typ string
        )
        if err := rows.Scan(&e.ID, &e.RecipientID, &e.EventID, &e.EventTitle, &typ, &e.CreatedAt); err != nil {
            return nil, err
        }
        e.Type = model.NotificationType(typ)
        out = append(out, e)
    }
    return out, rows.Err()
}
