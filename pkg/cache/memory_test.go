package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_Expiry(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	mc := NewMemoryCache(WithMemoryClock(func() time.Time { return now }))
	ctx := context.Background()

	require.NoError(t, mc.SetBytes(ctx, "a", []byte("1"), time.Minute))
	got, err := mc.GetBytes(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)

	now = now.Add(2 * time.Minute)
	_, err = mc.GetBytes(ctx, "a")
	assert.True(t, errors.Is(err, ErrCacheMiss))
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	mc := NewMemoryCache(WithMemoryMaxSize(2), WithMemoryClock(func() time.Time {
		now = now.Add(time.Second)
		return now
	}))
	ctx := context.Background()

	require.NoError(t, mc.SetBytes(ctx, "a", []byte("1"), 0))
	require.NoError(t, mc.SetBytes(ctx, "b", []byte("2"), 0))
	_, err := mc.GetBytes(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, mc.SetBytes(ctx, "c", []byte("3"), 0))

	_, err = mc.GetBytes(ctx, "b")
	assert.True(t, errors.Is(err, ErrCacheMiss))
	assert.Equal(t, 2, mc.Len())
}

func TestKey(t *testing.T) {
	assert.Equal(t, "plansentry:bars:XAUUSD", Key("plansentry", "bars", "XAUUSD"))
	assert.Equal(t, "bars:XAUUSD", Key("", "bars", "XAUUSD"))
}
