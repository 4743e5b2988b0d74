// ABOUTME: Redis implementation of the KV interface using go-redis
// ABOUTME: Lets several assistant-admin instances share browser sessions

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements KV on top of a Redis server.
// Keys are laid out as <prefix>:<namespace>:<key>.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedisStore connects to the Redis server at url. A value that is not a
// redis:// URL is used as a plain host:port address.
func NewRedisStore(ctx context.Context, url, prefix string) (*RedisStore, error) {
	logger := slog.Default().With("component", "store", "driver", "redis")

	opt, err := redis.ParseURL(url)
	if err != nil {
		logger.Warn("failed to parse Redis URL, using direct address", "error", err)
		opt = &redis.Options{Addr: url}
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", opt.Addr, err)
	}

	logger.Info("Redis store initialized", "addr", opt.Addr, "db", opt.DB)
	return NewRedisStoreFromClient(rdb, prefix), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(rdb *redis.Client, prefix string) *RedisStore {
	return &RedisStore{
		rdb:    rdb,
		prefix: prefix,
		logger: slog.Default().With("component", "store", "driver", "redis"),
	}
}

func (s *RedisStore) redisKey(namespace, key string) string {
	if s.prefix == "" {
		return namespace + ":" + key
	}
	return s.prefix + ":" + namespace + ":" + key
}

// Get retrieves the value stored under (namespace, key).
func (s *RedisStore) Get(ctx context.Context, namespace, key string) (string, error) {
	value, err := s.rdb.Get(ctx, s.redisKey(namespace, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading %s/%s: %w", namespace, key, err)
	}
	return value, nil
}

// Set stores value without expiry. Session expiry is enforced by the reader.
func (s *RedisStore) Set(ctx context.Context, namespace, key, value string) error {
	if err := s.rdb.Set(ctx, s.redisKey(namespace, key), value, 0).Err(); err != nil {
		return fmt.Errorf("writing %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Delete removes (namespace, key). Missing keys are ignored.
func (s *RedisStore) Delete(ctx context.Context, namespace, key string) error {
	if err := s.rdb.Del(ctx, s.redisKey(namespace, key)).Err(); err != nil {
		return fmt.Errorf("deleting %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close closes the Redis client
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
