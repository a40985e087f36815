package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/TIANLI0/MaskKit/config"
	"github.com/TIANLI0/MaskKit/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRedis 需要设置 MASKKIT_TEST_REDIS_ADDR，例如 localhost:6379
func testRedis(t *testing.T, ttl time.Duration) *RedisStore {
	t.Helper()
	addr := os.Getenv("MASKKIT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("Skipping: MASKKIT_TEST_REDIS_ADDR not set")
	}

	s := NewRedisStore(&config.RedisConfig{Addr: addr}, ttl)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Ping(ctx); err != nil {
		s.Close()
		t.Skipf("Skipping: redis at %s unreachable: %v", addr, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRedisStore_RoundTrip(t *testing.T) {
	s := testRedis(t, time.Minute)
	ctx := context.Background()

	id := utils.GenerateID()
	t.Cleanup(func() { s.client.Del(context.Background(), resultKeyPrefix+id) })

	rec := testRecord(t, id, time.Now().UTC().Truncate(time.Millisecond))
	require.NoError(t, s.Save(ctx, rec))

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.Prompts, got.Prompts)
	assert.Equal(t, rec.Response.Labels, got.Response.Labels)
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
	require.NotNil(t, got.Response.Masks[0])
	assert.Equal(t, rec.Response.Masks[0].Text, got.Response.Masks[0].Text)
	assert.Nil(t, got.Response.Masks[1])

	_, err = s.Get(ctx, utils.GenerateID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_TTL(t *testing.T) {
	ctx := context.Background()

	s := testRedis(t, 30*time.Second)
	id := utils.GenerateID()
	t.Cleanup(func() { s.client.Del(context.Background(), resultKeyPrefix+id) })
	require.NoError(t, s.Save(ctx, testRecord(t, id, time.Now())))

	ttl, err := s.client.TTL(ctx, resultKeyPrefix+id).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, 30*time.Second)

	forever := testRedis(t, 0)
	id2 := utils.GenerateID()
	t.Cleanup(func() { forever.client.Del(context.Background(), resultKeyPrefix+id2) })
	require.NoError(t, forever.Save(ctx, testRecord(t, id2, time.Now())))

	ttl, err = forever.client.TTL(ctx, resultKeyPrefix+id2).Result()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-1), ttl)
}

func TestNewResultStore_Redis(t *testing.T) {
	s := testRedis(t, time.Minute)

	store, err := NewResultStore(context.Background(), &config.Config{
		Store: config.StoreConfig{Backend: "redis", TTL: time.Minute},
		Redis: config.RedisConfig{Addr: s.client.Options().Addr},
	})
	require.NoError(t, err)
	defer store.Close()
	assert.IsType(t, &RedisStore{}, store)
}

func TestNewResultStore_RedisUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewResultStore(ctx, &config.Config{
		Store: config.StoreConfig{Backend: "redis"},
		Redis: config.RedisConfig{Addr: "127.0.0.1:1"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis connection failed")
}
