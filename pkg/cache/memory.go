package cache

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps generations in process memory.
type MemoryStore struct {
	mu          sync.RWMutex
	order       []string
	generations map[string]map[string]*CacheEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{generations: make(map[string]map[string]*CacheEntry)}
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, generation string, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, ok := s.generations[generation]
	if !ok {
		entries = make(map[string]*CacheEntry)
		s.generations[generation] = entries
		s.order = append(s.order, generation)
	}
	stored := entry.Clone()
	stored.Generation = generation
	entries[key.String()] = stored
	return nil
}

// Lookup implements Store.
func (s *MemoryStore) Lookup(_ context.Context, generation string, key CacheKey) (*CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.generations[generation][key.String()]
	if !ok {
		return nil, ErrCacheMiss
	}
	return entry.Clone(), nil
}

// Match implements Store.
func (s *MemoryStore) Match(_ context.Context, key CacheKey) (*CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k := key.String()
	for _, generation := range s.order {
		if entry, ok := s.generations[generation][k]; ok {
			return entry.Clone(), nil
		}
	}
	return nil, ErrCacheMiss
}

// Generations implements Store.
func (s *MemoryStore) Generations(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...), nil
}

// DeleteGeneration implements Store.
func (s *MemoryStore) DeleteGeneration(_ context.Context, generation string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.generations[generation]; !ok {
		return false, nil
	}
	delete(s.generations, generation)
	for i, name := range s.order {
		if name == generation {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true, nil
}
