package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type cachedToken struct {
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

func setupRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisCacheFromClient(client, time.Minute, zap.NewNop()), mr
}

func TestRedisCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c, mr := setupRedisCache(t)

	t.Run("miss on absent key", func(t *testing.T) {
		var got cachedToken
		err := c.Get(ctx, "token:solana-mainnet:missing", &got)
		assert.ErrorIs(t, err, ErrCacheMiss)
	})

	t.Run("round trips JSON values", func(t *testing.T) {
		key := TokenKey("base-mainnet", "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913")
		require.NoError(t, c.Set(ctx, key, cachedToken{Symbol: "USDC", Decimals: 6}))

		var got cachedToken
		require.NoError(t, c.Get(ctx, key, &got))
		assert.Equal(t, "USDC", got.Symbol)
		assert.Equal(t, 6, got.Decimals)
	})

	t.Run("expires after ttl", func(t *testing.T) {
		require.NoError(t, c.SetWithTTL(ctx, "short", cachedToken{Symbol: "X"}, time.Second))
		mr.FastForward(2 * time.Second)

		var got cachedToken
		assert.ErrorIs(t, c.Get(ctx, "short", &got), ErrCacheMiss)
	})
}

func TestRedisCache_DeletePattern(t *testing.T) {
	ctx := context.Background()
	c, mr := setupRedisCache(t)

	require.NoError(t, c.Set(ctx, StatsKey("0xabc", "ethereum-mainnet"), 1))
	require.NoError(t, c.Set(ctx, StatsKey("0xabc", "base-mainnet"), 1))

	require.NoError(t, c.DeletePattern(ctx, WalletPattern("0xabc", "ethereum-mainnet")))

	assert.False(t, mr.Exists(StatsKey("0xabc", "ethereum-mainnet")))
	assert.True(t, mr.Exists(StatsKey("0xabc", "base-mainnet")))
}

func TestRedisCache_Lock(t *testing.T) {
	ctx := context.Background()
	c, _ := setupRedisCache(t)
	key := IngestLockKey("0xabc", "ethereum-mainnet")

	ok, err := c.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second lock attempt must fail while held")

	require.NoError(t, c.Unlock(ctx, key))

	ok, err = c.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
