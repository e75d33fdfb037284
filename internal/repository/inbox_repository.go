package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/google/uuid"

    "github.com/iliyamo/fairdraw/internal/model"
)

// InboxRepo stores entrant inboxes.  Each inbox is a header row in
// entrants plus an ordered list of rows in entrant_notifications.
type InboxRepo struct{ DB *sql.DB }

func NewInboxRepo(db *sql.DB) *InboxRepo { return &InboxRepo{DB: db} }

// AppendOrCreate appends n to the inbox of entrantID.  When the inbox does
// not exist yet the header row is created and the append retried; an
// existing header is never overwritten.  Appending a notification whose id
// is already stored is a no-op, so redelivered messages do not duplicate.
//
// A zero ID or CreatedAt on n is filled in before writing.
func (r *InboxRepo) AppendOrCreate(ctx context.Context, entrantID string, n *model.Notification) error {
    if n.ID == "" {
        n.ID = uuid.NewString()
    }
    if n.CreatedAt.IsZero() {
        n.CreatedAt = time.Now().UTC()
    }
    if n.Type == "" {
        n.Type = model.NotificationOther
    }

    err := r.insert(ctx, entrantID, n)
    if mysqlErrno(err) == errNoReferenced {
        // no inbox yet
        if _, err := r.DB.ExecContext(ctx,
            "INSERT INTO entrants (entrant_id) VALUES (?) ON DUPLICATE KEY UPDATE entrant_id=entrant_id",
            entrantID); err != nil {
            return err
        }
        err = r.insert(ctx, entrantID, n)
    }
    if mysqlErrno(err) == errDupEntry {
        return nil
    }
    return err
}

func (r *InboxRepo) insert(ctx context.Context, entrantID string, n *model.Notification) error {
    var msg sql.NullString
    if n.Message != "" {
        msg = sql.NullString{String: n.Message, Valid: true}
    }
    _, err := r.DB.ExecContext(ctx,
        "INSERT INTO entrant_notifications (id, entrant_id, type, event_id, title, message, is_read, created_at) VALUES (?,?,?,?,?,?,?,?)",
        n.ID, entrantID, string(n.Type), n.EventID, n.Title, msg, n.Read, n.CreatedAt)
    return err
}

// List returns the inbox of entrantID in delivery order.  An entrant that
// never received anything has an empty inbox.
func (r *InboxRepo) List(ctx context.Context, entrantID string) ([]model.Notification, error) {
    rows, err := r.DB.QueryContext(ctx,
        "SELECT id, type, event_id, title, message, is_read, created_at FROM entrant_notifications WHERE entrant_id=? ORDER BY seq",
        entrantID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := []model.Notification{}
    for rows.Next() {
        var (
            n   model.Notification
            typ string
            msg sql.NullString
        )
        if err := rows.Scan(&n.ID, &typ, &n.EventID, &n.Title, &msg, &n.Read, &n.CreatedAt); err != nil {
            return nil, err
        }
        n.Type = model.NotificationType(typ)
        n.Message = msg.String
        out = append(out, n)
    }
    return out, rows.Err()
}

// MarkRead flags one notification of entrantID as read.  It reports false
// when the inbox holds no such notification.
func (r *InboxRepo) MarkRead(ctx context.Context, entrantID, notificationID string) (bool, error) {
    res, err := r.DB.ExecContext(ctx,
        "UPDATE entrant_notifications SET is_read=TRUE WHERE entrant_id=? AND id=?",
        entrantID, notificationID)
    if err != nil {
        return false, err
    }
    if n, err := res.RowsAffected(); err == nil && n > 0 {
        return true, nil
    }
    // Zero rows also means "already read"; check the row is there.
    var one int
    err = r.DB.QueryRowContext(ctx,
        "SELECT 1 FROM entrant_notifications WHERE entrant_id=? AND id=?", entrantID, notificationID).Scan(&one)
    if errors.Is(err, sql.ErrNoRows) {
        return false, nil
    }
    return err == nil, err
}
