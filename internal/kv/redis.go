// Package kv stores validation progress snapshots in Redis.
package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JonMunkholm/robodata/internal/config"
	"github.com/JonMunkholm/robodata/internal/core"
)

// ErrNoAddress is returned when the progress store is not configured.
var ErrNoAddress = errors.New("redis address is empty")

// RedisStore implements core.KVStore. Every Put refreshes the key's TTL, so
// snapshots of finished datasets expire on their own.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ core.KVStore = (*RedisStore)(nil)

// NewRedisStore creates a client. It does not connect; call Ping to check.
func NewRedisStore(cfg config.RedisConfig) (*RedisStore, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, ErrNoAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	return &RedisStore{client: client, ttl: cfg.ProgressTTL}, nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping (addr=%s): %w", s.client.Options().Addr, err)
	}
	return nil
}

// Put overwrites key. A zero TTL keeps the key forever.
func (s *RedisStore) Put(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("progress store set %s: %w", key, err)
	}
	return nil
}

// Get returns nil, nil for a missing key.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("progress store get %s: %w", key, err)
	}
	return data, nil
}

// Close releases the connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
