package snapshotstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the minimal surface RedisStore needs. A caller wires a
// *redis.Client (or any compatible driver) in; this package never
// constructs one itself.
type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
}

// RedisStore persists a snapshot under a single key in Redis.
type RedisStore struct {
	client RedisClient
	key    string
}

// NewRedisStore returns a Store backed by client, keyed under key.
func NewRedisStore(client RedisClient, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

// Save writes data to the configured key with no expiration: snapshots
// are overwritten on every save cycle, not left to expire.
func (s *RedisStore) Save(ctx context.Context, data []byte) error {
	if err := s.client.Set(ctx, s.key, data, 0*time.Second); err != nil {
		return fmt.Errorf("snapshotstore: redis set: %w", err)
	}
	return nil
}

// Load reads the snapshot back. A missing key is not an error: it
// returns (nil, nil) so the caller starts from an empty engine.
func (s *RedisStore) Load(ctx context.Context) ([]byte, error) {
	val, err := s.client.Get(ctx, s.key)
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshotstore: redis get: %w", err)
	}
	return []byte(val), nil
}

// redisClientAdapter adapts a *redis.Client to RedisClient, converting
// between go-redis's typed commands and this package's byte-oriented
// interface.
type redisClientAdapter struct {
	*redis.Client
}

// NewRedisClientAdapter wraps a real go-redis client so it satisfies
// RedisClient.
func NewRedisClientAdapter(client *redis.Client) RedisClient {
	return redisClientAdapter{client}
}

func (a redisClientAdapter) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return a.Client.Set(ctx, key, value, expiration).Err()
}

func (a redisClientAdapter) Get(ctx context.Context, key string) (string, error) {
	return a.Client.Get(ctx, key).Result()
}
