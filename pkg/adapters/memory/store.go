package memory

import (
	"context"
	"sync"
)

// Store implements ports.TrialCache in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]float64
	mu   sync.RWMutex
}

// NewStore creates a new in-memory trial cache.
func NewStore() *Store {
	return &Store{
		data: make(map[string]float64),
	}
}

// Get returns the cached objective value for key.
func (s *Store) Get(ctx context.Context, key string) (float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	return v, ok, nil
}

// Put stores an objective value.
func (s *Store) Put(ctx context.Context, key string, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

// Len returns the number of cached trials.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
