package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pixelgrove/pixelgrove/internal/accounts/domain"
	"github.com/pixelgrove/pixelgrove/internal/accounts/store"
	"github.com/pixelgrove/pixelgrove/pkg/cryptox"
	"github.com/pixelgrove/pixelgrove/pkg/idx"
	"github.com/pixelgrove/pixelgrove/pkg/jwtx"
	"github.com/pixelgrove/pixelgrove/pkg/slogx"
)

var (
	ErrEmailTaken         = errors.New("email_taken")
	ErrNoSuchUser         = errors.New("no_such_user")
	ErrEmailNotConfirmed  = errors.New("email_not_confirmed")
	ErrUserInactive       = errors.New("user_inactive")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidScope       = errors.New("invalid_scope")
	ErrStaleRefresh       = errors.New("stale_refresh_token")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrVerification       = errors.New("verification_failed")
)

// Sessions is the session snapshot cache the service reads through. Get
// returns (nil, nil) on a miss.
type Sessions interface {
	Get(ctx context.Context, email string) (*domain.User, error)
	Put(ctx context.Context, u domain.User) error
}

// AuthService implements registration, login, token refresh and session
// resolution on top of the user directory and the session cache.
type AuthService struct {
	Store    store.Store
	Sessions Sessions
	Codec    *jwtx.Codec

	AccessTTL  time.Duration
	RefreshTTL time.Duration
	EmailTTL   time.Duration
}

func (s *AuthService) accessTTL() time.Duration {
	if s.AccessTTL > 0 {
		return s.AccessTTL
	}
	return jwtx.DefaultAccessTokenTTL
}

func (s *AuthService) refreshTTL() time.Duration {
	if s.RefreshTTL > 0 {
		return s.RefreshTTL
	}
	return jwtx.DefaultRefreshTokenTTL
}

func (s *AuthService) emailTTL() time.Duration {
	if s.EmailTTL > 0 {
		return s.EmailTTL
	}
	return jwtx.DefaultEmailTokenTTL
}

// Register creates a new account. The email must not already be in use;
// collisions surface as ErrEmailTaken whether caught by the pre-check or
// by the directory's unique constraint.
func (s *AuthService) Register(ctx context.Context, nickname, email, password string) (domain.User, error) {
	_, err := s.Store.Users().GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return domain.User{}, ErrEmailTaken
	case !errors.Is(err, store.ErrNotFound):
		return domain.User{}, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.Store.Users().CreateUser(ctx, store.NewUser{
		Nickname:     nickname,
		Email:        email,
		PasswordHash: hash,
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		return domain.User{}, ErrEmailTaken
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	slogx.FromContext(ctx).Info("account registered", "user_id", u.ID, "role", u.Role)
	return u, nil
}

// Login verifies credentials and issues a fresh token pair. Checks run in a
// fixed order so each failure maps to a distinct error: unknown account,
// unconfirmed email, deactivated account, then bad password.
func (s *AuthService) Login(ctx context.Context, email, password string) (domain.TokenPair, error) {
	u, err := s.Store.Users().GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return domain.TokenPair{}, ErrNoSuchUser
	}
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("lookup email: %w", err)
	}

	if !u.Confirmed {
		return domain.TokenPair{}, ErrEmailNotConfirmed
	}
	if !u.IsActive {
		return domain.TokenPair{}, ErrUserInactive
	}
	if err := cryptox.VerifyPassword(password, u.PasswordHash); err != nil {
		return domain.TokenPair{}, ErrInvalidCredentials
	}

	return s.issuePair(ctx, u)
}

// issuePair mints an access/refresh pair and persists the refresh token in
// the account's single slot, displacing whatever was there.
func (s *AuthService) issuePair(ctx context.Context, u domain.User) (domain.TokenPair, error) {
	access, err := s.Codec.Encode(u.Email, jwtx.ScopeAccess, s.accessTTL())
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := s.Codec.Encode(u.Email, jwtx.ScopeRefresh, s.refreshTTL())
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	if err := s.Store.Users().UpdateRefreshToken(ctx, u.ID, refresh); err != nil {
		return domain.TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}

	return domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.accessTTL().Seconds()),
	}, nil
}

// Refresh exchanges a refresh token for a new pair, rotating the stored
// slot. Presenting a token that no longer matches the slot clears the slot
// entirely, forcing a fresh login for every holder of that account's tokens.
func (s *AuthService) Refresh(ctx context.Context, token string) (domain.TokenPair, error) {
	claims, err := s.Codec.Decode(token)
	if err != nil {
		return domain.TokenPair{}, ErrUnauthenticated
	}
	if !claims.HasScope(jwtx.ScopeRefresh) {
		return domain.TokenPair{}, ErrInvalidScope
	}

	u, err := s.Store.Users().GetUserByEmail(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		return domain.TokenPair{}, ErrUnauthenticated
	}
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("lookup email: %w", err)
	}

	if u.RefreshToken != token {
		slogx.FromContext(ctx).Warn("stale refresh token presented, revoking session",
			"user_id", u.ID)
		if err := s.Store.Users().UpdateRefreshToken(ctx, u.ID, ""); err != nil {
			return domain.TokenPair{}, fmt.Errorf("clear refresh token: %w", err)
		}
		return domain.TokenPair{}, ErrStaleRefresh
	}

	return s.issuePair(ctx, u)
}

// CurrentUser resolves an access token into the account it belongs to,
// reading through the session cache. Snapshots may lag directory mutations
// by up to the cache TTL.
func (s *AuthService) CurrentUser(ctx context.Context, token string) (domain.User, error) {
	claims, err := s.Codec.Decode(token)
	if err != nil {
		return domain.User{}, ErrUnauthenticated
	}
	if !claims.HasScope(jwtx.ScopeAccess) || claims.Subject == "" {
		return domain.User{}, ErrUnauthenticated
	}

	if cached, err := s.Sessions.Get(ctx, claims.Subject); err != nil {
		slogx.FromContext(ctx).Warn("session cache read failed", "error", err)
	} else if cached != nil {
		return *cached, nil
	}

	u, err := s.Store.Users().GetUserByEmail(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUnauthenticated
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("lookup email: %w", err)
	}

	// Best effort; authentication succeeded regardless of the cache.
	if err := s.Sessions.Put(ctx, u); err != nil {
		slogx.FromContext(ctx).Warn("session cache write failed", "error", err)
	}

	return u, nil
}

// Logout clears the account's refresh slot. Logging out twice is fine.
func (s *AuthService) Logout(ctx context.Context, id idx.ID) error {
	err := s.Store.Users().UpdateRefreshToken(ctx, id, "")
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	return nil
}

// CreateEmailToken mints an unscoped confirmation token for the address.
func (s *AuthService) CreateEmailToken(email string) (string, error) {
	return s.Codec.Encode(email, "", s.emailTTL())
}

// EmailFromToken extracts the address from a confirmation token. Every
// decode failure collapses into ErrVerification so the caller cannot tell
// a forged token from an expired one.
func (s *AuthService) EmailFromToken(token string) (string, error) {
	claims, err := s.Codec.Decode(token)
	if err != nil || claims.Subject == "" {
		return "", ErrVerification
	}
	return claims.Subject, nil
}

// ConfirmEmail resolves a confirmation token and marks the account verified.
func (s *AuthService) ConfirmEmail(ctx context.Context, token string) error {
	email, err := s.EmailFromToken(token)
	if err != nil {
		return err
	}

	u, err := s.Store.Users().GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return ErrVerification
	}
	if err != nil {
		return fmt.Errorf("lookup email: %w", err)
	}

	if u.Confirmed {
		return nil
	}
	if err := s.Store.Users().ConfirmEmail(ctx, u.ID); err != nil {
		return fmt.Errorf("confirm email: %w", err)
	}

	slogx.FromContext(ctx).Info("email confirmed", "user_id", u.ID)
	return nil
}
