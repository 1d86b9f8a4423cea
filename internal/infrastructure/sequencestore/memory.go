package sequencestore

import (
	"context"
	"fmt"
	"sync"

	"github.com/libops/sapinvoices/internal/domain/shared"
)

// MemoryStore is an in-process sequence store for local runs and tests
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]int
}

// NewMemoryStore creates a store seeded with the given sequence values
func NewMemoryStore(seed map[string]int) *MemoryStore {
	values := make(map[string]int, len(seed))
	for key, value := range seed {
		values[key] = value
	}
	return &MemoryStore{values: values}
}

// Current returns the stored value for the key
func (s *MemoryStore) Current(_ context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	if !ok {
		return 0, fmt.Errorf("sequence %s: %w", key, shared.ErrNotFound)
	}
	return value, nil
}

// CompareAndSwap replaces the stored value if it still equals old
func (s *MemoryStore) CompareAndSwap(_ context.Context, key string, old, next int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.values[key]
	if !ok {
		return fmt.Errorf("sequence %s: %w", key, shared.ErrNotFound)
	}
	if current != old {
		return fmt.Errorf("sequence %s holds %d, expected %d: %w", key, current, old, shared.ErrSequenceConflict)
	}
	s.values[key] = next
	return nil
}
