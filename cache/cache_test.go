package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrLoad(t *testing.T) {
	c := New[[]string](4, time.Minute)
	var calls int32
	load := func(ctx context.Context) ([]string, error) {
		atomic.AddInt32(&calls, 1)
		return []string{"a", "b"}, nil
	}

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetOrLoad(context.Background(), "k", load)
			assert.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, v)
		}()
	}
	wg.Wait()

	v, err := c.GetOrLoad(context.Background(), "k", load)
	require.NoError(t, err)
	assert.Len(t, v, 2)
	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(10))
	assert.Equal(t, 1, c.Len())
}

func TestGetOrLoadDoesNotCacheErrors(t *testing.T) {
	c := New[int](4, time.Minute)
	boom := errors.New("boom")

	_, err := c.GetOrLoad(context.Background(), "k", func(context.Context) (int, error) { return 0, boom })
	require.ErrorIs(t, err, boom)

	v, err := c.GetOrLoad(context.Background(), "k", func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestExpiry(t *testing.T) {
	c := New[string](4, 20*time.Millisecond)
	c.Set("k", "v")

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	assert.Eventually(t, func() bool {
		_, ok := c.Get("k")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestDeleteAndPurge(t *testing.T) {
	c := New[string](0, time.Minute)
	c.Set("a", "1")
	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Set("b", "2")
	c.Purge()
	assert.Equal(t, 0, c.Len())
}
