package cache

import (
	"context"
	"errors"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store persists cache generations. A generation is created implicitly by
// the first Put into it and lives until DeleteGeneration removes it.
type Store interface {
	// Put writes entry under key in the given generation, replacing any
	// previous entry for the same key.
	Put(ctx context.Context, generation string, key CacheKey, entry *CacheEntry) error

	// Lookup reads key from a single generation.
	Lookup(ctx context.Context, generation string, key CacheKey) (*CacheEntry, error)

	// Match searches every generation in creation order and returns the
	// first entry found for key.
	Match(ctx context.Context, key CacheKey) (*CacheEntry, error)

	// Generations lists generation names in creation order.
	Generations(ctx context.Context) ([]string, error)

	// DeleteGeneration drops a generation and all of its entries. It
	// reports whether the generation existed.
	DeleteGeneration(ctx context.Context, generation string) (bool, error)
}
