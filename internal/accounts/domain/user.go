package domain

import (
	"time"

	"github.com/pixelgrove/pixelgrove/pkg/idx"
)

// Role is an account's authorization level.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleUser      Role = "user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleModerator, RoleUser:
		return true
	}
	return false
}

// User is an account record. The JSON tags exist because session snapshots
// are serialized into the cache; they are never exposed over the API as-is.
type User struct {
	ID           idx.ID    `json:"id"`
	Nickname     string    `json:"nickname"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Role         Role      `json:"role"`
	RefreshToken string    `json:"refresh_token"`
	IsActive     bool      `json:"is_active"`
	Confirmed    bool      `json:"confirmed"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
