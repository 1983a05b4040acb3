package cache

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// setupMiniRedis starts an in-memory Redis server for store tests.
func setupMiniRedis(t *testing.T) *redis.Client {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Skipf("miniredis unavailable: %v", err)
	}
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func storeImplementations(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"redis":  func(t *testing.T) Store { return NewRedisStore(setupMiniRedis(t)) },
	}
}

func testEntry(body string) *CacheEntry {
	return &CacheEntry{
		Data:       []byte(body),
		StatusCode: 200,
		Headers:    http.Header{"Content-Type": []string{"application/json"}},
		CachedAt:   time.Now(),
	}
}

func TestStore_PutAndLookup(t *testing.T) {
	for name, newStore := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()
			key := CacheKey{Method: "GET", URL: "http://localhost/api/metrics"}

			if err := store.Put(ctx, "v1", key, testEntry(`{"a":1}`)); err != nil {
				t.Fatalf("Put failed: %v", err)
			}

			got, err := store.Lookup(ctx, "v1", key)
			if err != nil {
				t.Fatalf("Lookup failed: %v", err)
			}
			if string(got.Data) != `{"a":1}` {
				t.Errorf("Data = %s", got.Data)
			}
			if got.Generation != "v1" {
				t.Errorf("Generation = %q, want v1", got.Generation)
			}
			if got.Headers.Get("Content-Type") != "application/json" {
				t.Errorf("Headers = %v", got.Headers)
			}

			if _, err := store.Lookup(ctx, "v2", key); !errors.Is(err, ErrCacheMiss) {
				t.Errorf("Lookup in other generation: expected ErrCacheMiss, got %v", err)
			}
		})
	}
}

func TestStore_PutOverwrites(t *testing.T) {
	for name, newStore := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()
			key := CacheKey{Method: "GET", URL: "http://localhost/api/metrics"}

			_ = store.Put(ctx, "v1", key, testEntry("old"))
			_ = store.Put(ctx, "v1", key, testEntry("new"))

			got, err := store.Lookup(ctx, "v1", key)
			if err != nil {
				t.Fatalf("Lookup failed: %v", err)
			}
			if string(got.Data) != "new" {
				t.Errorf("Data = %s, want new", got.Data)
			}
		})
	}
}

func TestStore_MatchAcrossGenerations(t *testing.T) {
	for name, newStore := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()
			onlyOld := CacheKey{Method: "GET", URL: "http://localhost/old"}
			both := CacheKey{Method: "GET", URL: "http://localhost/both"}

			_ = store.Put(ctx, "v1", onlyOld, testEntry("old"))
			_ = store.Put(ctx, "v1", both, testEntry("from-v1"))
			time.Sleep(time.Millisecond) // distinct creation scores
			_ = store.Put(ctx, "v2", both, testEntry("from-v2"))

			got, err := store.Match(ctx, onlyOld)
			if err != nil {
				t.Fatalf("Match failed: %v", err)
			}
			if got.Generation != "v1" {
				t.Errorf("Generation = %q, want v1", got.Generation)
			}

			// Creation order: the older generation answers first.
			got, err = store.Match(ctx, both)
			if err != nil {
				t.Fatalf("Match failed: %v", err)
			}
			if string(got.Data) != "from-v1" {
				t.Errorf("Data = %s, want from-v1", got.Data)
			}

			if _, err := store.Match(ctx, CacheKey{Method: "GET", URL: "http://localhost/none"}); !errors.Is(err, ErrCacheMiss) {
				t.Errorf("expected ErrCacheMiss, got %v", err)
			}
		})
	}
}

func TestStore_DeleteGeneration(t *testing.T) {
	for name, newStore := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()
			key := CacheKey{Method: "GET", URL: "http://localhost/"}

			_ = store.Put(ctx, "v1", key, testEntry("one"))
			time.Sleep(time.Millisecond)
			_ = store.Put(ctx, "v2", key, testEntry("two"))

			gens, err := store.Generations(ctx)
			if err != nil {
				t.Fatalf("Generations failed: %v", err)
			}
			if len(gens) != 2 || gens[0] != "v1" || gens[1] != "v2" {
				t.Fatalf("Generations = %v, want [v1 v2]", gens)
			}

			existed, err := store.DeleteGeneration(ctx, "v1")
			if err != nil || !existed {
				t.Fatalf("DeleteGeneration = %v, %v", existed, err)
			}
			existed, err = store.DeleteGeneration(ctx, "v1")
			if err != nil || existed {
				t.Errorf("second DeleteGeneration = %v, %v; want false, nil", existed, err)
			}

			if _, err := store.Lookup(ctx, "v1", key); !errors.Is(err, ErrCacheMiss) {
				t.Errorf("expected ErrCacheMiss after delete, got %v", err)
			}
			gens, _ = store.Generations(ctx)
			if len(gens) != 1 || gens[0] != "v2" {
				t.Errorf("Generations = %v, want [v2]", gens)
			}
		})
	}
}

func TestStore_PutNilEntry(t *testing.T) {
	for name, newStore := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			if err := store.Put(context.Background(), "v1", CacheKey{URL: "x"}, nil); err == nil {
				t.Error("Put with nil entry should return error")
			}
		})
	}
}

func TestRedisStore_InvalidEntry(t *testing.T) {
	client := setupMiniRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()
	key := CacheKey{Method: "GET", URL: "http://localhost/"}

	if err := client.HSet(ctx, generationKey("v1"), key.String(), "not-json").Err(); err != nil {
		t.Fatalf("HSet failed: %v", err)
	}
	if _, err := store.Lookup(ctx, "v1", key); !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("expected ErrInvalidEntry, got %v", err)
	}
}

func TestNewRedisStore_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewRedisStore should panic with nil redis client")
		}
	}()
	NewRedisStore(nil)
}
