package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront-auth/internal/auth"

	"github.com/redis/go-redis/v9"
)

type RedisPendingStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisPendingStore creates a Redis-backed pending flow store.
func NewRedisPendingStore(client redis.UniversalClient, prefix string) *RedisPendingStore {
	return &RedisPendingStore{
		client: client,
		prefix: prefix + "oauth:pending:",
	}
}

func (s *RedisPendingStore) Put(ctx context.Context, state string, p Pending) error {
	if state == "" || p.Provider == "" || p.Verifier == "" {
		return errors.New("flow: missing state, provider or verifier")
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("flow: failed to marshal: %w", err)
	}

	return s.client.Set(ctx, s.prefix+state, data, PendingTTL).Err()
}

func (s *RedisPendingStore) Take(ctx context.Context, state string) (*Pending, error) {
	if state == "" {
		return nil, nil
	}

	val, err := s.client.GetDel(ctx, s.prefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil // consumed or never started
	}
	if err != nil {
		return nil, err
	}

	var p Pending
	if err := json.Unmarshal([]byte(val), &p); err != nil {
		return nil, fmt.Errorf("flow: failed to unmarshal: %w", err)
	}

	return &p, nil
}

type grantRecord struct {
	Identity  auth.Identity `json:"identity"`
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
}

type RedisGrantStore struct {
	client redis.UniversalClient
	key    string
}

// NewRedisGrantStore creates a Redis-backed provider grant store.
func NewRedisGrantStore(client redis.UniversalClient, prefix string) *RedisGrantStore {
	return &RedisGrantStore{
		client: client,
		key:    prefix + "provider:grant",
	}
}

func (s *RedisGrantStore) Put(ctx context.Context, g auth.Grant) error {
	if g.Token == "" || g.Identity.ID == "" {
		return errors.New("flow: grant missing token or identity")
	}

	ttl := time.Until(g.ExpiresAt)
	if ttl <= 0 {
		return errors.New("flow: grant expires_at must be in the future")
	}

	data, err := json.Marshal(grantRecord(g))
	if err != nil {
		return fmt.Errorf("flow: failed to marshal grant: %w", err)
	}

	return s.client.Set(ctx, s.key, data, ttl).Err()
}

func (s *RedisGrantStore) Get(ctx context.Context) (*auth.Grant, error) {
	val, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec grantRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, fmt.Errorf("flow: failed to unmarshal grant: %w", err)
	}

	g := auth.Grant(rec)
	if g.Expired(time.Now()) {
		return nil, nil
	}

	return &g, nil
}

func (s *RedisGrantStore) Delete(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}
