package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()

	release, ok, err := l.TryAcquire(ctx, "reward", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryAcquire(ctx, "reward", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must be refused")

	_, ok, err = l.TryAcquire(ctx, "wallet", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "locks are independent per key")

	require.NoError(t, release(ctx))
	assert.ErrorIs(t, release(ctx), ErrNotHeld)

	_, ok, err = l.TryAcquire(ctx, "reward", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLockerExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewMemoryLocker()
	l.clock = func() time.Time { return now }

	stale, ok, err := l.TryAcquire(ctx, "expiry", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, err = l.TryAcquire(ctx, "expiry", time.Minute)
	require.NoError(t, err)
	require.True(t, ok, "expired lease can be taken over")

	assert.ErrorIs(t, stale(ctx), ErrNotHeld, "stale holder must not release the new lease")
}
