package statscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stwalsh4118/territory-mapper/internal/config"
	"github.com/stwalsh4118/territory-mapper/internal/models"
)

const keyPrefix = "territory:stats:"

// RedisStore keeps unit statistics in Redis as JSON under territory:stats:{kind}:{id}.
type RedisStore struct {
	client redis.UniversalClient
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// OpenRedis creates a client from the cache configuration.
func OpenRedis(cfg config.CacheConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// Key returns the Redis key for a unit.
func Key(ref models.UnitRef) string {
	return keyPrefix + string(ref.Kind) + ":" + ref.ID
}

// Get returns the stored statistics and whether they were present.
func (s *RedisStore) Get(ctx context.Context, ref models.UnitRef) (models.UnitStats, bool, error) {
	raw, err := s.client.Get(ctx, Key(ref)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.UnitStats{}, false, nil
	}
	if err != nil {
		return models.UnitStats{}, false, fmt.Errorf("redis get %s: %w", Key(ref), err)
	}

	var stats models.UnitStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return models.UnitStats{}, false, fmt.Errorf("decode %s: %w", Key(ref), err)
	}
	return stats, true, nil
}

// Set stores statistics; a zero ttl keeps them indefinitely.
func (s *RedisStore) Set(ctx context.Context, ref models.UnitRef, stats models.UnitStats, ttl time.Duration) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode %s: %w", Key(ref), err)
	}
	if err := s.client.Set(ctx, Key(ref), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", Key(ref), err)
	}
	return nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
