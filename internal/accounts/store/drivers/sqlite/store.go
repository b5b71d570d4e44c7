// Package sqlite implements the accounts store on a local sqlite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/pixelgrove/pixelgrove/internal/accounts/store"

	_ "modernc.org/sqlite"
)

// Store implements store.Store backed by sqlite.
type Store struct {
	db *sql.DB

	users *UsersRepo
}

var _ store.Store = (*Store)(nil)

// NewStore opens (creating if necessary) the sqlite database at path.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// sqlite allows a single writer; serialising through one connection
	// avoids SQLITE_BUSY under concurrent handlers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &Store{
		db:    db,
		users: &UsersRepo{db: db},
	}, nil
}

func (s *Store) Users() store.Users { return s.users }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// mapNotFound converts sql.ErrNoRows into the store-level sentinel.
func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// mapConflict converts sqlite unique-constraint violations into the
// store-level sentinel.
func mapConflict(err error) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return store.ErrAlreadyExists
	}
	return err
}
