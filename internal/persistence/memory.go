package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore keeps collections in memory. Used by tests and ephemeral runs.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string][]byte)}
}

func (s *MemoryStore) LoadCollection(_ context.Context, name string, out any) error {
	s.mu.RLock()
	data, ok := s.collections[name]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode collection %s: %w", name, err)
	}
	return nil
}

func (s *MemoryStore) SaveCollection(_ context.Context, name string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode collection %s: %w", name, err)
	}
	s.mu.Lock()
	s.collections[name] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Ping(_ context.Context) error { return nil }

func (s *MemoryStore) Close() {}
