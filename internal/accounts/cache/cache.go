// Package cache holds short-lived session snapshots in redis so that
// request authentication does not hit the user directory on every call.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/pixelgrove/pixelgrove/internal/accounts/domain"
	"github.com/pixelgrove/pixelgrove/pkg/slogx"
)

// DefaultSessionTTL bounds how stale a cached session snapshot may be.
// Every entry gets the same absolute TTL; reads never extend it.
const DefaultSessionTTL = 5 * time.Minute

// Config holds the redis connection settings.
type Config struct {
	// URL is a redis connection string, e.g. redis://localhost:6379/0.
	URL      string
	Password string

	// TTL overrides DefaultSessionTTL when positive.
	TTL time.Duration
}

// SessionCache is a cache-aside store of user snapshots keyed by email.
// Mutations elsewhere in the system do not evict entries; staleness is
// bounded by the TTL alone.
type SessionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*SessionCache, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	return &SessionCache{client: client, ttl: ttl}, nil
}

func key(email string) string {
	return "session:user:" + email
}

// Get returns the cached snapshot for email, or (nil, nil) on a miss.
// A corrupt entry is deleted and reported as a miss so the caller falls
// back to the directory.
func (c *SessionCache) Get(ctx context.Context, email string) (*domain.User, error) {
	data, err := c.client.Get(ctx, key(email)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}

	var u domain.User
	if err := json.Unmarshal(data, &u); err != nil {
		slogx.FromContext(ctx).Warn("dropping corrupt session cache entry", "email", email)
		c.client.Del(ctx, key(email))
		return nil, nil
	}
	return &u, nil
}

// Put stores a snapshot under the fixed session TTL.
func (c *SessionCache) Put(ctx context.Context, u domain.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	if err := c.client.Set(ctx, key(u.Email), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func (c *SessionCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *SessionCache) Close() error {
	return c.client.Close()
}
