// Package session keeps logged-in customer state on the server, keyed by the
// id carried in the session cookie.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/redisclient"

	"github.com/google/uuid"
)

// UserContext is what a session remembers about the logged-in customer
type UserContext struct {
	CustomerID int64  `json:"customer_id"`
	Email      string `json:"email"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
}

// Store persists sessions. Get returns (nil, nil) for unknown or expired ids.
type Store interface {
	Get(ctx context.Context, id string) (*UserContext, error)
	Set(ctx context.Context, id string, user *UserContext) error
	Destroy(ctx context.Context, id string) error
}

// KV is the subset of the redis client used by RedisStore
type KV interface {
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
}

// RedisStore keeps sessions as JSON values that expire after ttl
type RedisStore struct {
	kv  KV
	ttl time.Duration
}

// NewRedisStore creates a session store on top of redis
func NewRedisStore(kv KV, ttl time.Duration) *RedisStore {
	return &RedisStore{kv: kv, ttl: ttl}
}

// NewID returns a fresh random session id
func NewID() string {
	return uuid.NewString()
}

func key(id string) string {
	return fmt.Sprintf("session:%s", id)
}

func (s *RedisStore) Get(ctx context.Context, id string) (*UserContext, error) {
	if id == "" {
		return nil, nil
	}

	var user UserContext
	err := s.kv.GetJSON(ctx, key(id), &user)
	if errors.Is(err, redisclient.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return &user, nil
}

// Set stores the session and resets its expiry
func (s *RedisStore) Set(ctx context.Context, id string, user *UserContext) error {
	if err := s.kv.SetJSON(ctx, key(id), user, s.ttl); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := s.kv.Delete(ctx, key(id)); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}
