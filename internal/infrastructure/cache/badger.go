package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// BadgerCache is an embedded on-disk Cache, used for token metadata when Redis is unavailable
type BadgerCache struct {
	db     *badger.DB
	logger *zap.Logger
	ttl    time.Duration
}

// NewBadgerCache opens (or creates) a badger store in dir
func NewBadgerCache(dir string, ttl time.Duration, logger *zap.Logger) (*BadgerCache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger cache: %w", err)
	}

	logger.Info("Opened badger cache", zap.String("dir", dir))

	return &BadgerCache{
		db:     db,
		logger: logger,
		ttl:    ttl,
	}, nil
}

// Close closes the underlying store
func (c *BadgerCache) Close() error {
	return c.db.Close()
}

// Get retrieves a value from cache
func (c *BadgerCache) Get(_ context.Context, key string, dest interface{}) error {
	var data []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrCacheMiss
		}
		return fmt.Errorf("failed to get from cache: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal cached value: %w", err)
	}
	return nil
}

// Set stores a value with the default TTL
func (c *BadgerCache) Set(ctx context.Context, key string, value interface{}) error {
	return c.SetWithTTL(ctx, key, value, c.ttl)
}

// SetWithTTL stores a value; ttl <= 0 never expires
func (c *BadgerCache) SetWithTTL(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), data)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// Delete removes a value from cache
func (c *BadgerCache) Delete(_ context.Context, key string) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("failed to delete from cache: %w", err)
	}
	return nil
}

// DeletePattern removes all keys matching a '*' glob, scanning from the literal prefix
func (c *BadgerCache) DeletePattern(_ context.Context, pattern string) error {
	prefix := pattern
	if idx := strings.Index(pattern, "*"); idx >= 0 {
		prefix = pattern[:idx]
	}

	var keys [][]byte
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			if matchPattern(pattern, string(key)) {
				keys = append(keys, key)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}

	for _, key := range keys {
		if err := c.db.Update(func(txn *badger.Txn) error { return txn.Delete(key) }); err != nil {
			c.logger.Warn("Failed to delete cache key",
				zap.ByteString("key", key),
				zap.Error(err),
			)
		}
	}
	return nil
}

// HealthCheck reports whether the store is open
func (c *BadgerCache) HealthCheck(context.Context) error {
	if c.db.IsClosed() {
		return errors.New("badger cache is closed")
	}
	return nil
}
