package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID                uuid.UUID `db:"id" json:"id"`
	Name              string    `db:"name" json:"name"`
	Email             string    `db:"email" json:"email"`
	PasswordHash      string    `db:"password_hash" json:"-"`
	Role              string    `db:"role" json:"role"`
	Active            bool      `db:"active" json:"active"`
	PasswordChangedAt time.Time `db:"password_changed_at" json:"-"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// EffectiveRole returns the role used for authorization decisions. The
// configured admin email is always treated as admin regardless of the
// stored role.
func (u *User) EffectiveRole(adminEmail string) string {
	if adminEmail != "" && u.Email == adminEmail {
		return RoleAdmin
	}
	return u.Role
}

// Session is the single refresh-token slot for an account. A new login or
// refresh overwrites it, superseding the previous session.
type Session struct {
	ID        uuid.UUID `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	TokenHash string    `db:"token_hash"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

// PasswordReset is the single pending reset slot for an account, removed
// atomically when the token is redeemed.
type PasswordReset struct {
	ID        uuid.UUID `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	TokenHash string    `db:"token_hash"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}
