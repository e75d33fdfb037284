package model

import "time"

// Roles a user can hold.  Organizers own events and run draws, entrants
// join waiting lists, admins read the notification log.
const (
    RoleOrganizer = "ORGANIZER"
    RoleEntrant   = "ENTRANT"
    RoleAdmin     = "ADMIN"
)

// User represents an application user record as stored in the
// `users` table.  The entrant id used in event membership sets is the
// decimal form of ID.
//
// Fields:
//  ID                   – primary key identifier of the user.
//  Email                – unique email address.
//  PasswordHash         – bcrypt hashed password.
//  Role                 – ORGANIZER, ENTRANT or ADMIN.
//  NotificationsEnabled – organizer broadcasts skip users who turned this off.
//  IsActive             – whether the account is active.
//  CreatedAt            – timestamp of creation.
//  UpdatedAt            – timestamp of last update.
type User struct {
    ID                   uint64    // users.id
    Email                string    // users.email
    PasswordHash         string    // users.password_hash
    Role                 string    // users.role
    NotificationsEnabled bool      // users.notifications_enabled
    IsActive             bool      // users.is_active
    CreatedAt            time.Time // users.created_at
    UpdatedAt            time.Time // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 hash of the token value is stored.
type RefreshToken struct {
    ID        uint64     // refresh_tokens.id
    UserID    uint64     // refresh_tokens.user_id
    TokenHash string     // refresh_tokens.token_hash
    ExpiresAt time.Time  // refresh_tokens.expires_at
    RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
    CreatedAt time.Time  // refresh_tokens.created_at
}
