package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStore(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisStore(client)
}

func TestRedisStore_SessionLifecycle(t *testing.T) {
	mr, store := setupRedisStore(t)
	ctx := context.Background()

	rec := SessionRecord{
		ID:        "sess-1",
		UserID:    "user-1",
		Role:      RolePatient,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, store.Save(ctx, rec))
	assert.True(t, mr.Exists(sessionPrefix+"sess-1"))

	got, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, RolePatient, got.Role)

	require.NoError(t, store.Delete(ctx, "sess-1"))
	got, err = store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	// deleting twice is fine
	require.NoError(t, store.Delete(ctx, "sess-1"))
}

func TestRedisStore_SessionExpires(t *testing.T) {
	mr, store := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, SessionRecord{ID: "s", UserID: "u", ExpiresAt: time.Now().Add(time.Minute)}))
	mr.FastForward(2 * time.Minute)

	got, err := store.Get(ctx, "s")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStore_RejectsExpiredRecord(t *testing.T) {
	_, store := setupRedisStore(t)
	err := store.Save(context.Background(), SessionRecord{ID: "s", ExpiresAt: time.Now().Add(-time.Second)})
	assert.Error(t, err)
}

func TestRedisStore_ResetTokenSingleUse(t *testing.T) {
	_, store := setupRedisStore(t)
	ctx := context.Background()

	token, err := store.IssueResetToken(ctx, "user-7", time.Hour)
	require.NoError(t, err)
	assert.Len(t, token, 64)

	uid, err := store.ConsumeResetToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "user-7", uid)

	_, err = store.ConsumeResetToken(ctx, token)
	assert.ErrorIs(t, err, ErrResetTokenInvalid)
}

func TestRedisStore_ResetTokenExpires(t *testing.T) {
	mr, store := setupRedisStore(t)
	ctx := context.Background()

	token, err := store.IssueResetToken(ctx, "user-7", time.Minute)
	require.NoError(t, err)
	mr.FastForward(time.Hour)

	_, err = store.ConsumeResetToken(ctx, token)
	assert.ErrorIs(t, err, ErrResetTokenInvalid)

	_, err = store.ConsumeResetToken(ctx, "")
	assert.ErrorIs(t, err, ErrResetTokenInvalid)
}
