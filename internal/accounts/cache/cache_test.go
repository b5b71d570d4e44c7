package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/pixelgrove/pixelgrove/internal/accounts/domain"
	"github.com/pixelgrove/pixelgrove/pkg/idx"
)

func newTestCache(t *testing.T, ttl time.Duration) (*SessionCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	c, err := New(context.Background(), Config{
		URL: "redis://" + mr.Addr(),
		TTL: ttl,
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	return c, mr
}

func testUser() domain.User {
	now := time.Now().UTC().Truncate(time.Second)
	return domain.User{
		ID:        idx.New(),
		Nickname:  "alice",
		Email:     "alice@example.com",
		Role:      domain.RoleUser,
		IsActive:  true,
		Confirmed: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestSessionCache_PutGet(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	u := testUser()
	require.NoError(t, c.Put(ctx, u))

	got, err := c.Get(ctx, u.Email)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, u, *got)
}

func TestSessionCache_MissReturnsNil(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)

	got, err := c.Get(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSessionCache_EntryExpires(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	u := testUser()
	require.NoError(t, c.Put(ctx, u))

	mr.FastForward(time.Minute + time.Second)

	got, err := c.Get(ctx, u.Email)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSessionCache_CorruptEntryIsDropped(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, mr.Set(key("alice@example.com"), "{not json"))

	got, err := c.Get(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Nil(t, got)

	// the bad entry should be gone
	require.False(t, mr.Exists(key("alice@example.com")))
}
