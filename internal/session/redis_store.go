package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront-auth/internal/auth"
	"storefront-auth/internal/logger"
	"storefront-auth/internal/profile"

	"github.com/redis/go-redis/v9"
)

const (
	userRecordKey = "currentUserRecord"
	tokenKey      = "sessionToken"
)

type RedisStore struct {
	client  redis.UniversalClient
	userKey string
	tokKey  string
	now     func() time.Time
}

// NewRedisStore creates a Redis-backed session store. Both keys live under
// prefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{
		client:  client,
		userKey: prefix + userRecordKey,
		tokKey:  prefix + tokenKey,
		now:     time.Now,
	}
}

func (r *RedisStore) Save(ctx context.Context, s Session) error {
	if s.Token == "" || s.Profile.ID == "" {
		return fmt.Errorf("session: missing token or profile id")
	}

	var ttl time.Duration
	if !s.ExpiresAt.IsZero() {
		ttl = s.ExpiresAt.Sub(r.now())
		if ttl <= 0 {
			return fmt.Errorf("session: expires_at must be in the future")
		}
	}

	data, err := json.Marshal(s.Profile)
	if err != nil {
		return fmt.Errorf("session: failed to marshal: %w", err)
	}

	// MULTI/EXEC: both keys change together or not at all
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.userKey, data, ttl)
		pipe.Set(ctx, r.tokKey, s.Token, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("session: save: %w", err)
	}
	return nil
}

func (r *RedisStore) Load(ctx context.Context) (*Session, error) {
	var (
		values *redis.SliceCmd
		pttl   *redis.DurationCmd
	)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		values = pipe.MGet(ctx, r.userKey, r.tokKey)
		pttl = pipe.PTTL(ctx, r.tokKey)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("session: load: %w", err)
	}

	vals := values.Val()
	if len(vals) != 2 || (vals[0] == nil && vals[1] == nil) {
		return nil, nil // no session
	}

	s, err := decode(vals[0], vals[1])
	if err != nil {
		logger.Warn("discarding stored session", map[string]any{
			"error": err.Error(),
		})
		if clearErr := r.Clear(ctx); clearErr != nil {
			logger.Error("failed to clear corrupt session", map[string]any{
				"error": clearErr.Error(),
			})
		}
		return nil, nil
	}

	if d := pttl.Val(); d > 0 {
		s.ExpiresAt = r.now().Add(d)
	}

	return s, nil
}

func (r *RedisStore) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.userKey, r.tokKey).Err()
}

func decode(rawUser, rawToken any) (*Session, error) {
	user, ok := rawUser.(string)
	if !ok {
		return nil, fmt.Errorf("%w: token without user record", auth.ErrStoreCorrupt)
	}
	token, ok := rawToken.(string)
	if !ok || token == "" {
		return nil, fmt.Errorf("%w: user record without token", auth.ErrStoreCorrupt)
	}

	var p profile.Profile
	if err := json.Unmarshal([]byte(user), &p); err != nil {
		return nil, fmt.Errorf("%w: %w", auth.ErrStoreCorrupt, err)
	}
	if p.ID == "" || !p.Role.Valid() {
		return nil, errors.Join(auth.ErrStoreCorrupt, fmt.Errorf("incomplete user record %q", p.ID))
	}

	return &Session{Profile: p, Token: token}, nil
}
