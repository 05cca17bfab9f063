package profile

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]map[string]string),
	}
}

func (s *MemoryStore) Get(ctx context.Context, profile, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if value, exists := s.values[profile][key]; exists {
		return value, nil
	}
	return "", ErrNotFound
}

func (s *MemoryStore) Set(ctx context.Context, profile, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.values[profile]; !exists {
		s.values[profile] = make(map[string]string)
	}
	s.values[profile][key] = value
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, profile, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values[profile], key)
	return nil
}

func (s *MemoryStore) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
