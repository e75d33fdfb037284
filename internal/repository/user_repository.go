package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/iliyamo/fairdraw/internal/model"
	"github.com/iliyamo/fairdraw/internal/utils"
)

const userColumns = "id,email,password_hash,role,notifications_enabled,is_active,created_at,updated_at"

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts user and returns its ID.
func (r *UserRepo) Create(ctx context.Context, email, password, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, role) VALUES (?,?,?)",
		email, hash, role)
	if err != nil {
		if mysqlErrno(err) == errDupEntry {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

func (r *UserRepo) scanOne(row *sql.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.NotificationsEnabled,
		&u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// SetNotificationsEnabled toggles whether organizer broadcasts reach the user.
func (r *UserRepo) SetNotificationsEnabled(ctx context.Context, id uint64, enabled bool) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET notifications_enabled=? WHERE id=?", enabled, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// MySQL reports 0 when the value did not change, so confirm the row exists.
		var one int
		if err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id=?", id).Scan(&one); err != nil {
			return err
		}
	}
	return nil
}

// NotificationsEnabled reports the preference for every entrant id in ids.
// Entrant ids are decimal user ids; ids that do not name a user are
// reported as enabled, matching the default for new accounts.
func (r *UserRepo) NotificationsEnabled(ctx context.Context, ids []string) (map[string]bool, error) {
	out := make(map[string]bool, len(ids))
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		out[id] = true
		if n, err := strconv.ParseUint(id, 10, 64); err == nil {
			args = append(args, n)
		}
	}
	if len(args) == 0 {
		return out, nil
	}
	q := "SELECT id, notifications_enabled FROM users WHERE id IN (?" + strings.Repeat(",?", len(args)-1) + ")"
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id      uint64
			enabled bool
		)
		if err := rows.Scan(&id, &enabled); err != nil {
			return nil, err
		}
		out[strconv.FormatUint(id, 10)] = enabled
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// IsNotFound reports whether err means the requested row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, ErrEventNotFound)
}
