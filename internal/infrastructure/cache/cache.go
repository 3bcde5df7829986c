package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss indicates the key was not found in cache
var ErrCacheMiss = errors.New("cache miss")

// Cache is a JSON value cache with per-entry TTL
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}) error
	SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePattern(ctx context.Context, pattern string) error
	HealthCheck(ctx context.Context) error
}

var (
	_ Cache = (*RedisCache)(nil)
	_ Cache = (*BadgerCache)(nil)
	_ Cache = (*MemoryCache)(nil)
)

// Locker marks keys as in progress with an expiry
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

var (
	_ Locker = (*RedisCache)(nil)
	_ Locker = (*MemoryCache)(nil)
)
