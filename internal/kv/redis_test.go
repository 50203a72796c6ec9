package kv

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/robodata/internal/config"
	"github.com/JonMunkholm/robodata/internal/core"
)

func TestNewRedisStore_RequiresAddr(t *testing.T) {
	_, err := NewRedisStore(config.RedisConfig{Addr: "  "})
	assert.ErrorIs(t, err, ErrNoAddress)
}

func TestRedisStore_UnreachableReturnsErrors(t *testing.T) {
	store, err := NewRedisStore(config.RedisConfig{Addr: "127.0.0.1:1", ProgressTTL: time.Minute})
	require.NoError(t, err)
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	assert.Error(t, store.Ping(ctx))

	err = store.Put(ctx, core.ProgressKey("a"), []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "progress store")

	data, err := store.Get(ctx, core.ProgressKey("a"))
	assert.Error(t, err)
	assert.Nil(t, data)
}

// newLiveStore connects to ROBODATA_TEST_REDIS_ADDR, or skips.
func newLiveStore(t *testing.T) *RedisStore {
	t.Helper()
	addr := os.Getenv("ROBODATA_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("Skipping integration test: ROBODATA_TEST_REDIS_ADDR not set")
	}
	store, err := NewRedisStore(config.RedisConfig{Addr: addr, ProgressTTL: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Ping(context.Background()))
	return store
}

func TestRedisStore_MissingKeyIsNil(t *testing.T) {
	store := newLiveStore(t)

	data, err := store.Get(context.Background(), core.ProgressKey("missing-"+uuid.NewString()))
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestRedisStore_PutGet(t *testing.T) {
	store := newLiveStore(t)
	ctx := context.Background()
	key := core.ProgressKey(uuid.NewString())
	t.Cleanup(func() { store.client.Del(context.Background(), key) })

	require.NoError(t, store.Put(ctx, key, []byte(`{"percent":10}`)))
	require.NoError(t, store.Put(ctx, key, []byte(`{"percent":50}`)))

	data, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"percent":50}`, string(data))

	ttl, err := store.client.TTL(ctx, key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}
