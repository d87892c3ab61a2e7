package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, NewRedisStore(client)
}

func TestRedisStore_CreateGetDelete(t *testing.T) {
	mr, store := newTestRedis(t)
	ctx := context.Background()

	s := Session{
		SessionID:         "sid-1",
		UserID:            "u-1",
		CreatedAt:         time.Now(),
		ExpiresAt:         time.Now().Add(time.Hour),
		AbsoluteExpiresAt: time.Now().Add(2 * time.Hour),
	}
	require.NoError(t, store.Create(ctx, s))

	assert.True(t, mr.Exists("session:sid-1"))
	ttl := mr.TTL("session:sid-1")
	assert.True(t, ttl > 59*time.Minute && ttl <= time.Hour, "ttl %s", ttl)

	got, err := store.Get(ctx, "sid-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u-1", got.UserID)
	assert.WithinDuration(t, s.ExpiresAt, got.ExpiresAt, time.Millisecond)

	require.NoError(t, store.Delete(ctx, "sid-1"))
	got, err = store.Get(ctx, "sid-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStore_CreateRejectsCollision(t *testing.T) {
	_, store := newTestRedis(t)
	ctx := context.Background()

	s := Session{SessionID: "sid-1", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, store.Create(ctx, s))
	assert.ErrorIs(t, store.Create(ctx, s), ErrSessionExists)
}

func TestRedisStore_CreateValidation(t *testing.T) {
	_, store := newTestRedis(t)
	ctx := context.Background()

	assert.Error(t, store.Create(ctx, Session{ExpiresAt: time.Now().Add(time.Hour)}))
	assert.Error(t, store.Create(ctx, Session{SessionID: "x", ExpiresAt: time.Now().Add(-time.Second)}))
}

func TestRedisStore_AnonymousSessionWithOAuthFlow(t *testing.T) {
	_, store := newTestRedis(t)
	ctx := context.Background()

	s := Session{
		SessionID: "sid-2",
		OAuth: &OAuthFlow{
			Provider:     "google",
			State:        "st",
			CodeVerifier: "cv",
			ExpiresAt:    time.Now().Add(10 * time.Minute),
		},
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, store.Create(ctx, s))

	got, err := store.Get(ctx, "sid-2")
	require.NoError(t, err)
	require.NotNil(t, got.OAuth)
	assert.False(t, got.Authenticated())
	assert.Equal(t, "google", got.OAuth.Provider)
	assert.Equal(t, "st", got.OAuth.State)
	assert.Equal(t, "cv", got.OAuth.CodeVerifier)
}

func TestRedisStore_ExpiresWithTTL(t *testing.T) {
	mr, store := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, Session{SessionID: "sid-3", ExpiresAt: time.Now().Add(time.Minute)}))
	mr.FastForward(2 * time.Minute)

	got, err := store.Get(ctx, "sid-3")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStore_UpdateExpiredDeletes(t *testing.T) {
	mr, store := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, Session{SessionID: "sid-4", ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, store.Update(ctx, Session{SessionID: "sid-4", ExpiresAt: time.Now().Add(-time.Second)}))

	assert.False(t, mr.Exists("session:sid-4"))
}

func TestRedisStore_Unavailable(t *testing.T) {
	mr, store := newTestRedis(t)
	mr.Close()

	_, err := store.Get(context.Background(), "sid")
	assert.Error(t, err)
}

func TestRedisStore_UpdateDoesNotResurrect(t *testing.T) {
	mr, store := newTestRedis(t)
	ctx := context.Background()

	s := Session{SessionID: "sid-5", UserID: "u-1", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, store.Create(ctx, s))
	require.NoError(t, store.Delete(ctx, "sid-5"))

	require.NoError(t, store.Update(ctx, s))
	assert.False(t, mr.Exists("session:sid-5"))
}
