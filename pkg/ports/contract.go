package ports

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunTrialCacheContract runs a suite of tests to verify that a TrialCache implementation
// adheres to the defined interface contract.
func RunTrialCacheContract(t *testing.T, cache TrialCache) {
	ctx := context.Background()
	prefix := "contract-" + time.Now().Format("20060102150405.000000")

	t.Run("Miss", func(t *testing.T) {
		_, ok, err := cache.Get(ctx, prefix+"-missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Put and Get", func(t *testing.T) {
		key := prefix + "-hit"
		require.NoError(t, cache.Put(ctx, key, 0.125))

		v, ok, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 0.125, v)
	})

	t.Run("Overwrite", func(t *testing.T) {
		key := prefix + "-overwrite"
		require.NoError(t, cache.Put(ctx, key, 1))
		require.NoError(t, cache.Put(ctx, key, 2))

		v, _, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, 2.0, v)
	})

	t.Run("Penalty values survive", func(t *testing.T) {
		key := prefix + "-penalty"
		require.NoError(t, cache.Put(ctx, key, 1e6))

		v, ok, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 1e6, v)
	})

	t.Run("Full precision", func(t *testing.T) {
		key := prefix + "-precision"
		want := math.Pi / 3
		require.NoError(t, cache.Put(ctx, key, want))

		v, _, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, want, v)
	})

	t.Run("Concurrent", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				key := fmt.Sprintf("%s-concurrent-%d", prefix, i)
				assert.NoError(t, cache.Put(ctx, key, float64(i)))
				v, ok, err := cache.Get(ctx, key)
				assert.NoError(t, err)
				assert.True(t, ok)
				assert.Equal(t, float64(i), v)
			}(i)
		}
		wg.Wait()
	})
}
