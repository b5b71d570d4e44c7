package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pixelgrove/pixelgrove/internal/accounts/domain"
	"github.com/pixelgrove/pixelgrove/internal/accounts/store"
	"github.com/pixelgrove/pixelgrove/pkg/idx"
)

// UsersRepo implements store.Users on sqlite.
type UsersRepo struct {
	db *sql.DB
}

var _ store.Users = (*UsersRepo)(nil)

const userColumns = `id, nickname, email, password_hash, role, refresh_token, is_active, confirmed, created_at, updated_at`

func scanUser(row *sql.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Nickname,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.RefreshToken,
		&u.IsActive,
		&u.Confirmed,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *UsersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (r *UsersRepo) GetUserByID(ctx context.Context, id idx.ID) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// CreateUser inserts the account. The admin count and the insert run in one
// transaction so two concurrent signups cannot both become the first admin.
func (r *UsersRepo) CreateUser(ctx context.Context, nu store.NewUser) (domain.User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return domain.User{}, fmt.Errorf("count users: %w", err)
	}

	role := domain.RoleUser
	if total == 0 {
		role = domain.RoleAdmin
	}

	now := time.Now().UTC()
	u := domain.User{
		ID:           idx.New(),
		Nickname:     nu.Nickname,
		Email:        nu.Email,
		PasswordHash: nu.PasswordHash,
		Role:         role,
		IsActive:     true,
		Confirmed:    false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Nickname, u.Email, u.PasswordHash, u.Role, u.RefreshToken,
		u.IsActive, u.Confirmed, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, mapConflict(err)
	}

	if err := tx.Commit(); err != nil {
		return domain.User{}, fmt.Errorf("commit transaction: %w", err)
	}
	return u, nil
}

func (r *UsersRepo) UpdateRefreshToken(ctx context.Context, id idx.ID, token string) error {
	return r.updateOne(ctx,
		`UPDATE users SET refresh_token = ?, updated_at = ? WHERE id = ?`,
		token, time.Now().UTC(), id)
}

func (r *UsersRepo) ConfirmEmail(ctx context.Context, id idx.ID) error {
	return r.updateOne(ctx,
		`UPDATE users SET confirmed = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id)
}

func (r *UsersRepo) SetActive(ctx context.Context, id idx.ID, active bool) error {
	return r.updateOne(ctx,
		`UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?`,
		active, time.Now().UTC(), id)
}

func (r *UsersRepo) updateOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
