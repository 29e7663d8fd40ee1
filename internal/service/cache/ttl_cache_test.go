package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLCache(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	c := NewTTLCache[int](func() time.Time { return now })

	c.Set("a", 1, 15*time.Second)
	c.Set("b", 2, 0)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	now = now.Add(16 * time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok)
	v, ok = c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	c.Set("a", 3, time.Second)
	v, ok = c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 3, v, "reset after expiry")

	c.Delete("b")
	_, ok = c.Get("b")
	assert.False(t, ok)
}
