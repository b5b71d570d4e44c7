package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed  = errors.New("jwtx: malformed token")
	ErrExpired    = errors.New("jwtx: token expired")
	ErrInvalidSig = errors.New("jwtx: invalid signature")
)

// Codec signs and verifies every token kind the service issues under a
// single secret/algorithm pair. Encode and Decode are pure over their
// inputs plus the clock; they never block.
type Codec struct {
	secret []byte
	method jwt.SigningMethod

	// Now is the injected clock. Defaults to time.Now; override in tests
	// to pin issuance and expiry.
	Now func() time.Time
}

// NewCodec builds a Codec for an HMAC algorithm (HS256, HS384 or HS512).
func NewCodec(secret, algorithm string) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("jwtx: empty signing secret")
	}

	method := jwt.GetSigningMethod(algorithm)
	if method == nil {
		return nil, fmt.Errorf("jwtx: unknown algorithm %q", algorithm)
	}
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("jwtx: algorithm %q is not an HMAC method", algorithm)
	}

	return &Codec{secret: []byte(secret), method: method}, nil
}

func (c *Codec) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Encode serializes subject and scope into a signed token expiring after
// ttl. Pass an empty scope for email-confirmation tokens.
func (c *Codec) Encode(subject, scope string, ttl time.Duration) (string, error) {
	now := c.now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Scope: scope,
	}

	return jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
}

// Decode verifies signature and expiry and returns the claims. Failures are
// ordinary control flow: ErrExpired when past exp, ErrInvalidSig when the
// signature check fails, ErrMalformed for anything structurally broken.
func (c *Codec) Decode(token string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(
		token,
		&claims,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)

	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return Claims{}, ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return Claims{}, ErrInvalidSig
	default:
		return Claims{}, ErrMalformed
	}
}
