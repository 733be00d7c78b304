package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_Expiry(t *testing.T) {
	c := New[int](time.Minute, 0)
	defer c.Close()
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	c.Set("a", 1)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	clock = clock.Add(2 * time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	c.cleanup()
	assert.Equal(t, 0, c.Len())
}

func TestCache_Miss(t *testing.T) {
	c := New[string](time.Minute, time.Hour)
	defer c.Close()
	v, ok := c.Get("nope")
	assert.False(t, ok)
	assert.Empty(t, v)
	c.Close()
}
