package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token scopes. A token's scope says what it may be exchanged for; decode
// never enforces it, callers must check the field explicitly because an
// access token and a refresh token are structurally identical.
const (
	ScopeAccess  = "access_token"
	ScopeRefresh = "refresh_token"
)

// Default token TTLs. Each can be overridden per-call on Encode.
const (
	// DefaultAccessTokenTTL is the default lifetime for access tokens.
	// Short-lived for security - typical range is 15m to 1h.
	DefaultAccessTokenTTL = 15 * time.Minute

	// DefaultRefreshTokenTTL is the default lifetime for refresh tokens.
	// Longer-lived for user convenience - typical range is 7d to 30d.
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour

	// DefaultEmailTokenTTL is the default lifetime for email-confirmation
	// tokens. These are unscoped and carry only the subject.
	DefaultEmailTokenTTL = 24 * time.Hour
)

// Claims is the single claim shape shared by access, refresh and
// email-confirmation tokens. Subject is the account email.
type Claims struct {
	jwt.RegisteredClaims

	// Scope distinguishes access from refresh tokens. Empty for
	// email-confirmation tokens.
	Scope string `json:"scope,omitempty"`
}

// HasScope reports whether the claims carry the wanted scope.
func (c Claims) HasScope(scope string) bool {
	return c.Scope == scope
}
