package ports_test

import (
	"context"
	"sync"
	"testing"

	"github.com/aretw0/reactor/pkg/ports"
)

// mapCache is the smallest TrialCache that satisfies the contract.
type mapCache struct {
	mu   sync.Mutex
	data map[string]float64
}

func (m *mapCache) Get(_ context.Context, key string) (float64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mapCache) Put(_ context.Context, key string, value float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func TestTrialCache_Contract(t *testing.T) {
	ports.RunTrialCacheContract(t, &mapCache{data: make(map[string]float64)})
}
