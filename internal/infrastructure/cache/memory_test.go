package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()

	t.Run("expires entries", func(t *testing.T) {
		c := NewMemoryCache(time.Minute)
		now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		c.now = func() time.Time { return now }

		require.NoError(t, c.Set(ctx, "k", cachedToken{Symbol: "SOL"}))

		var got cachedToken
		require.NoError(t, c.Get(ctx, "k", &got))
		assert.Equal(t, "SOL", got.Symbol)

		now = now.Add(2 * time.Minute)
		assert.ErrorIs(t, c.Get(ctx, "k", &got), ErrCacheMiss)
	})

	t.Run("lock is exclusive until unlocked", func(t *testing.T) {
		c := NewMemoryCache(time.Minute)
		ok, _ := c.TryLock(ctx, "lock", time.Minute)
		assert.True(t, ok)
		ok, _ = c.TryLock(ctx, "lock", time.Minute)
		assert.False(t, ok)
		require.NoError(t, c.Unlock(ctx, "lock"))
		ok, _ = c.TryLock(ctx, "lock", time.Minute)
		assert.True(t, ok)
	})

	t.Run("delete pattern", func(t *testing.T) {
		c := NewMemoryCache(time.Minute)
		require.NoError(t, c.Set(ctx, "stats:solana-mainnet:W1", 1))
		require.NoError(t, c.Set(ctx, "stats:solana-mainnet:W2", 1))
		require.NoError(t, c.DeletePattern(ctx, WalletPattern("W1", "solana-mainnet")))

		var v int
		assert.ErrorIs(t, c.Get(ctx, "stats:solana-mainnet:W1", &v), ErrCacheMiss)
		assert.NoError(t, c.Get(ctx, "stats:solana-mainnet:W2", &v))
	})
}

func TestBadgerCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewBadgerCache("", time.Hour, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	key := TokenKey("solana-mainnet", "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	require.NoError(t, c.Set(ctx, key, cachedToken{Symbol: "USDC", Decimals: 6}))

	var got cachedToken
	require.NoError(t, c.Get(ctx, key, &got))
	assert.Equal(t, cachedToken{Symbol: "USDC", Decimals: 6}, got)

	require.NoError(t, c.DeletePattern(ctx, "token:solana-mainnet:*"))
	assert.ErrorIs(t, c.Get(ctx, key, &got), ErrCacheMiss)
	assert.NoError(t, c.HealthCheck(ctx))
}

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		pattern, key string
		want         bool
	}{
		{"portfolio:*", "portfolio:0xabc", true},
		{"*:base-mainnet:0xabc", "stats:base-mainnet:0xabc", true},
		{"*:base-mainnet:0xabc", "stats:base-mainnet:0xabd", false},
		{"exact", "exact", true},
		{"exact", "exactly", false},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, matchPattern(tt.pattern, tt.key))
		})
	}
}
