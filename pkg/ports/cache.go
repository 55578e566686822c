package ports

import "context"

// TrialCache memoises optimizer objective values keyed by trial parameters.
// Implementations must be safe for concurrent use.
type TrialCache interface {
	// Get returns the cached value and whether it was present.
	Get(ctx context.Context, key string) (float64, bool, error)

	// Put stores a value.
	Put(ctx context.Context, key string, value float64) error
}
