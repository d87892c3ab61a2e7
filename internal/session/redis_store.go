package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrSessionExists = errors.New("session: id already in use")

const keyPrefix = "session:"

// RedisStore keeps sessions as JSON values whose key TTL tracks the idle
// expiry.
type RedisStore struct {
	client redis.Cmdable
}

func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func key(sessionID string) string {
	return keyPrefix + sessionID
}

func encode(s Session) ([]byte, time.Duration, error) {
	if s.SessionID == "" {
		return nil, 0, errors.New("session: missing session_id")
	}

	data, err := json.Marshal(s)
	if err != nil {
		return nil, 0, fmt.Errorf("session: failed to marshal: %w", err)
	}
	return data, time.Until(s.ExpiresAt), nil
}

// Create stores a new session. It never overwrites: an existing key yields
// ErrSessionExists.
func (r *RedisStore) Create(ctx context.Context, s Session) error {
	data, ttl, err := encode(s)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		return errors.New("session: expires_at must be in the future")
	}

	ok, err := r.client.SetNX(ctx, key(s.SessionID), data, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrSessionExists
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	val, err := r.client.Get(ctx, key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var s Session
	if err := json.Unmarshal(val, &s); err != nil {
		return nil, fmt.Errorf("session: failed to unmarshal: %w", err)
	}
	return &s, nil
}

// Update rewrites an existing session. A session that has already expired
// is deleted, and one that is gone (logged out elsewhere) is not recreated.
func (r *RedisStore) Update(ctx context.Context, s Session) error {
	data, ttl, err := encode(s)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		return r.Delete(ctx, s.SessionID)
	}

	return r.client.SetXX(ctx, key(s.SessionID), data, ttl).Err()
}

func (r *RedisStore) Delete(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, key(sessionID)).Err()
}
