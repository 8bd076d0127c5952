package parallel

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParallelize(t *testing.T) {
	for _, workers := range []int{0, 1, 3, 64} {
		seen := make([]int32, 100)
		Parallelize(len(seen), workers, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&seen[i], 1)
			}
		})
		for i, v := range seen {
			require.Equal(t, int32(1), v, "index %d with %d workers", i, workers)
		}
	}

	called := false
	Parallelize(0, 4, func(start, end int) { called = true })
	assert.False(t, called)
}

func TestParallelizeWithThreshold(t *testing.T) {
	var calls int32
	ParallelizeWithThreshold(10, 100, 4, func(start, end int) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, 0, start)
		assert.Equal(t, 10, end)
	})
	assert.Equal(t, int32(1), calls)
}

func TestForEach(t *testing.T) {
	t.Run("visits every index", func(t *testing.T) {
		for _, workers := range []int{1, 4} {
			var mu sync.Mutex
			seen := map[int]bool{}
			err := ForEach(context.Background(), 20, workers, func(_ context.Context, i int) error {
				mu.Lock()
				seen[i] = true
				mu.Unlock()
				return nil
			})
			require.NoError(t, err)
			assert.Len(t, seen, 20)
		}
	})

	t.Run("first error stops the pool", func(t *testing.T) {
		boom := errors.New("boom")
		var ran int32
		err := ForEach(context.Background(), 50, 1, func(_ context.Context, i int) error {
			atomic.AddInt32(&ran, 1)
			if i == 3 {
				return boom
			}
			return nil
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, int32(4), ran)

		err = ForEach(context.Background(), 50, 4, func(_ context.Context, i int) error {
			if i == 0 {
				return boom
			}
			return nil
		})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		var ran int32
		err := ForEach(ctx, 10, 2, func(_ context.Context, i int) error {
			atomic.AddInt32(&ran, 1)
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, ran)
	})
}
