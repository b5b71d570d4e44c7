package jwtx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T) (*Codec, *time.Time) {
	t.Helper()

	codec, err := NewCodec("test-secret", "HS256")
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := &now
	codec.Now = func() time.Time { return *clock }

	return codec, clock
}

func TestNewCodec(t *testing.T) {
	tests := []struct {
		name      string
		secret    string
		algorithm string
		wantErr   bool
	}{
		{"hs256", "secret", "HS256", false},
		{"hs384", "secret", "HS384", false},
		{"hs512", "secret", "HS512", false},
		{"empty secret", "", "HS256", true},
		{"unknown algorithm", "secret", "HS999", true},
		{"asymmetric algorithm", "secret", "RS256", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCodec(tt.secret, tt.algorithm)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	codec, _ := newTestCodec(t)

	token, err := codec.Encode("alice@example.com", ScopeAccess, DefaultAccessTokenTTL)
	require.NoError(t, err)

	claims, err := codec.Decode(token)
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", claims.Subject)
	require.True(t, claims.HasScope(ScopeAccess))
	require.False(t, claims.HasScope(ScopeRefresh))
}

func TestCodec_UnscopedToken(t *testing.T) {
	codec, _ := newTestCodec(t)

	token, err := codec.Encode("alice@example.com", "", DefaultEmailTokenTTL)
	require.NoError(t, err)

	claims, err := codec.Decode(token)
	require.NoError(t, err)
	require.Empty(t, claims.Scope)
}

func TestCodec_Expiry(t *testing.T) {
	codec, clock := newTestCodec(t)

	token, err := codec.Encode("alice@example.com", ScopeAccess, 15*time.Minute)
	require.NoError(t, err)

	// still valid just before the boundary
	*clock = clock.Add(14 * time.Minute)
	_, err = codec.Decode(token)
	require.NoError(t, err)

	*clock = clock.Add(2 * time.Minute)
	_, err = codec.Decode(token)
	require.ErrorIs(t, err, ErrExpired)
}

func TestCodec_WrongSecret(t *testing.T) {
	codec, _ := newTestCodec(t)

	other, err := NewCodec("other-secret", "HS256")
	require.NoError(t, err)

	token, err := other.Encode("alice@example.com", ScopeAccess, time.Minute)
	require.NoError(t, err)

	_, err = codec.Decode(token)
	require.ErrorIs(t, err, ErrInvalidSig)
}

func TestCodec_Malformed(t *testing.T) {
	codec, _ := newTestCodec(t)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"not a jwt", "hello world"},
		{"truncated", "eyJhbGciOiJIUzI1NiJ9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Decode(tt.token)
			require.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestCodec_RejectsForeignAlgorithm(t *testing.T) {
	codec, _ := newTestCodec(t)

	other, err := NewCodec("test-secret", "HS512")
	require.NoError(t, err)

	token, err := other.Encode("alice@example.com", ScopeAccess, time.Minute)
	require.NoError(t, err)

	// same secret, different algorithm: still rejected
	_, err = codec.Decode(token)
	require.Error(t, err)
}
