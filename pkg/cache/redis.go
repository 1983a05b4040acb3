package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis keys for generation storage.
const (
	// RedisKeyGenerations is a sorted set of generation names scored by
	// creation time.
	RedisKeyGenerations = "tripwire:cache:generations"

	// redisKeyGenerationPrefix prefixes the hash holding one generation.
	redisKeyGenerationPrefix = "tripwire:cache:gen:"
)

// RedisStore keeps generations in Redis: one hash per generation and a
// sorted set remembering creation order.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a generation store with Redis backend.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis: redisClient,
	}
}

func generationKey(generation string) string {
	return redisKeyGenerationPrefix + generation
}

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, generation string, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	stored := *entry
	stored.Generation = generation

	data, err := json.Marshal(&stored)
	if err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	// Register the generation and store the entry atomically
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAddNX(ctx, RedisKeyGenerations, redis.Z{
			Score:  float64(time.Now().UnixNano()),
			Member: generation,
		})
		pipe.HSet(ctx, generationKey(generation), key.String(), data)
		return nil
	})
	if err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("redis put: %w", err)
	}

	return nil
}

// Lookup implements Store.
func (s *RedisStore) Lookup(ctx context.Context, generation string, key CacheKey) (*CacheEntry, error) {
	data, err := s.redis.HGet(ctx, generationKey(generation), key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("lookup").Inc()
		return nil, fmt.Errorf("redis hget: %w", err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("lookup").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return &entry, nil
}

// Match implements Store.
func (s *RedisStore) Match(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	generations, err := s.Generations(ctx)
	if err != nil {
		return nil, err
	}

	for _, generation := range generations {
		entry, err := s.Lookup(ctx, generation, key)
		if errors.Is(err, ErrCacheMiss) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return entry, nil
	}
	return nil, ErrCacheMiss
}

// Generations implements Store.
func (s *RedisStore) Generations(ctx context.Context) ([]string, error) {
	names, err := s.redis.ZRange(ctx, RedisKeyGenerations, 0, -1).Result()
	if err != nil {
		CacheErrors.WithLabelValues("generations").Inc()
		return nil, fmt.Errorf("redis zrange: %w", err)
	}
	return names, nil
}

// DeleteGeneration implements Store.
func (s *RedisStore) DeleteGeneration(ctx context.Context, generation string) (bool, error) {
	var removed *redis.IntCmd
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.ZRem(ctx, RedisKeyGenerations, generation)
		pipe.Del(ctx, generationKey(generation))
		return nil
	})
	if err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return false, fmt.Errorf("redis delete generation: %w", err)
	}
	return removed.Val() > 0, nil
}
