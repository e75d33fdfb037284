package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/iliyamo/fairdraw/internal/model"
)

// List names as stored in event_entrants.list.
const (
    listWaiting   = "WAITING"
    listInvited   = "INVITED"
    listEnrolled  = "ENROLLED"
    listCancelled = "CANCELLED"
)

// EventRepo persists event records.  An event is one row in events plus
// its membership rows in event_entrants and the optional locations in
// event_locations.  Writes replace the whole record but are guarded by the
// version column, so two writers that loaded the same snapshot cannot
// silently overwrite each other.
type EventRepo struct {
    db *sql.DB
}

// NewEventRepo returns a new EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// Create inserts a new event at version 1.  ev.Version, CreatedAt and
// UpdatedAt are populated on success.
func (r *EventRepo) Create(ctx context.Context, ev *model.Event) error {
    if err := ev.Validate(); err != nil {
        return err
    }
    ev.EnsureSets()
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    now := time.Now().UTC().Truncate(time.Second)
    const q = `INSERT INTO events (id, organizer_id, title, description, state, capacity, waiting_list_limit, geolocation, version, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`
    if _, err := tx.ExecContext(ctx, q, ev.ID, ev.OrganizerID, ev.Title, ev.Description, string(ev.State),
        ev.Capacity, nullableInt(ev.WaitingListLimit), ev.Geolocation, now, now); err != nil {
        return err
    }
    if err := writeMembershipTx(ctx, tx, ev); err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    ev.Version = 1
    ev.CreatedAt, ev.UpdatedAt = now, now
    return nil
}

// Load reads the full record for id.  It returns ErrEventNotFound when the
// event does not exist.
func (r *EventRepo) Load(ctx context.Context, id string) (*model.Event, error) {
    const q = `SELECT id, organizer_id, title, description, state, capacity, waiting_list_limit, geolocation, version, created_at, updated_at
               FROM events WHERE id = ?`
    ev := model.NewEvent("", "", 0)
    var (
        desc  sql.NullString
        state string
        limit sql.NullInt64
    )
    err := r.db.QueryRowContext(ctx, q, id).Scan(&ev.ID, &ev.OrganizerID, &ev.Title, &desc, &state,
        &ev.Capacity, &limit, &ev.Geolocation, &ev.Version, &ev.CreatedAt, &ev.UpdatedAt)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrEventNotFound
        }
        return nil, err
    }
    ev.Description = desc.String
    ev.State = model.EventState(state)
    if limit.Valid {
        l := int(limit.Int64)
        ev.WaitingListLimit = &l
    }

    rows, err := r.db.QueryContext(ctx, `SELECT entrant_id, list FROM event_entrants WHERE event_id = ?`, id)
    if err != nil {
        return nil, err
    }
    for rows.Next() {
        var entrant, list string
        if err := rows.Scan(&entrant, &list); err != nil {
            rows.Close()
            return nil, err
        }
        switch list {
        case listWaiting:
            ev.Waiting.Add(entrant)
        case listInvited:
            ev.Invited.Add(entrant)
        case listEnrolled:
            ev.Enrolled.Add(entrant)
        case listCancelled:
            ev.Cancelled.Add(entrant)
        }
    }
    if err := rows.Close(); err != nil {
        return nil, err
    }

    locRows, err := r.db.QueryContext(ctx, `SELECT entrant_id, lat, lng FROM event_locations WHERE event_id = ?`, id)
    if err != nil {
        return nil, err
    }
    defer locRows.Close()
    for locRows.Next() {
        var (
            entrant string
            loc     model.Location
        )
        if err := locRows.Scan(&entrant, &loc.Lat, &loc.Lng); err != nil {
            return nil, err
        }
        ev.WaitlistLocations[entrant] = &loc
    }
    if err := locRows.Err(); err != nil {
        return nil, err
    }
    return ev, nil
}

// Replace overwrites the stored record with ev if, and only if, the stored
// version still equals ev.Version.  On success ev.Version is incremented.
// A stale record yields ErrVersionConflict and nothing is written.
func (r *EventRepo) Replace(ctx context.Context, ev *model.Event) error {
    if err := ev.Validate(); err != nil {
        return err
    }
    ev.EnsureSets()
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    now := time.Now().UTC().Truncate(time.Second)
    const q = `UPDATE events
               SET title = ?, description = ?, state = ?, capacity = ?, waiting_list_limit = ?, geolocation = ?,
                   version = version + 1, updated_at = ?
               WHERE id = ? AND version = ?`
    res, err := tx.ExecContext(ctx, q, ev.Title, ev.Description, string(ev.State), ev.Capacity,
        nullableInt(ev.WaitingListLimit), ev.Geolocation, now, ev.ID, ev.Version)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        var exists int
        err := tx.QueryRowContext(ctx, `SELECT 1 FROM events WHERE id = ?`, ev.ID).Scan(&exists)
        if errors.Is(err, sql.ErrNoRows) {
            return ErrEventNotFound
        }
        if err != nil {
            return err
        }
        return ErrVersionConflict
    }

    if _, err := tx.ExecContext(ctx, `DELETE FROM event_entrants WHERE event_id = ?`, ev.ID); err != nil {
        return err
    }
    if _, err := tx.ExecContext(ctx, `DELETE FROM event_locations WHERE event_id = ?`, ev.ID); err != nil {
        return err
    }
    if err := writeMembershipTx(ctx, tx, ev); err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    ev.Version++
    ev.UpdatedAt = now
    return nil
}

// ListByOrganizer returns the events owned by organizerID without their
// membership, newest first.
func (r *EventRepo) ListByOrganizer(ctx context.Context, organizerID string) ([]model.Event, error) {
    const q = `SELECT id, title, state, capacity, version, created_at FROM events WHERE organizer_id = ? ORDER BY created_at DESC, id`
    rows, err := r.db.QueryContext(ctx, q, organizerID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.Event
    for rows.Next() {
        ev := model.Event{OrganizerID: organizerID}
        var state string
        if err := rows.Scan(&ev.ID, &ev.Title, &state, &ev.Capacity, &ev.Version, &ev.CreatedAt); err != nil {
            return nil, err
        }
        ev.State = model.EventState(state)
        out = append(out, ev)
    }
    return out, rows.Err()
}

// writeMembershipTx bulk inserts the membership and location rows of ev.
// An entrant present in two sets violates the primary key and aborts the
// transaction.
func writeMembershipTx(ctx context.Context, tx *sql.Tx, ev *model.Event) error {
    type member struct{ id, list string }
    var members []member
    for _, s := range []struct {
        set  model.IDSet
        list string
    }{
        {ev.Waiting, listWaiting},
        {ev.Invited, listInvited},
        {ev.Enrolled, listEnrolled},
        {ev.Cancelled, listCancelled},
    } {
        for _, id := range s.set.Sorted() {
            members = append(members, member{id, s.list})
        }
    }
    if len(members) > 0 {
        var b strings.Builder
        b.WriteString(`INSERT INTO event_entrants (event_id, entrant_id, list) VALUES `)
        args := make([]interface{}, 0, len(members)*3)
        for i, m := range members {
            if i > 0 {
                b.WriteString(",")
            }
            b.WriteString("(?, ?, ?)")
            args = append(args, ev.ID, m.id, m.list)
        }
        if _, err := tx.ExecContext(ctx, b.String(), args...); err != nil {
            if mysqlErrno(err) == errDupEntry {
                return fmt.Errorf("entrant listed twice: %w", err)
            }
            return err
        }
    }

    ids := make([]string, 0, len(ev.WaitlistLocations))
    for id, loc := range ev.WaitlistLocations {
        if loc != nil {
            ids = append(ids, id)
        }
    }
    if len(ids) == 0 {
        return nil
    }
    ids = model.NewIDSet(ids...).Sorted()
    var b strings.Builder
    b.WriteString(`INSERT INTO event_locations (event_id, entrant_id, lat, lng) VALUES `)
    args := make([]interface{}, 0, len(ids)*4)
    for i, id := range ids {
        if i > 0 {
            b.WriteString(",")
        }
        b.WriteString("(?, ?, ?, ?)")
        loc := ev.WaitlistLocations[id]
        args = append(args, ev.ID, id, loc.Lat, loc.Lng)
    }
    _, err := tx.ExecContext(ctx, b.String(), args...)
    return err
}

func nullableInt(v *int) interface{} {
    if v == nil {
        return nil
    }
    return *v
}
