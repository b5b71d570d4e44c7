// Package store defines the persistence contract for the accounts service.
// Drivers live under store/drivers and satisfy these interfaces.
package store

import (
	"context"
	"errors"

	"github.com/pixelgrove/pixelgrove/internal/accounts/domain"
	"github.com/pixelgrove/pixelgrove/pkg/idx"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root persistence interface.
type Store interface {
	Users() Users

	// ApplyMigrations brings the schema up to date.
	ApplyMigrations() error

	Ping(ctx context.Context) error
	Close() error
}

// NewUser carries the fields the service provides when creating an account.
// ID, role and timestamps are assigned by the driver.
type NewUser struct {
	Nickname     string
	Email        string
	PasswordHash string
}

// Users is the account directory. Lookups return ErrNotFound for unknown
// accounts; CreateUser returns ErrAlreadyExists when the email is taken.
type Users interface {
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	GetUserByID(ctx context.Context, id idx.ID) (domain.User, error)

	// CreateUser inserts a new account and returns the stored record. The
	// very first account in an empty directory is created with the admin
	// role; everyone after that starts as a regular user.
	CreateUser(ctx context.Context, nu NewUser) (domain.User, error)

	// UpdateRefreshToken overwrites the account's single refresh slot.
	// An empty token clears the slot.
	UpdateRefreshToken(ctx context.Context, id idx.ID, token string) error

	// ConfirmEmail marks the account's email address as verified.
	ConfirmEmail(ctx context.Context, id idx.ID) error

	// SetActive enables or disables the account.
	SetActive(ctx context.Context, id idx.ID, active bool) error
}
