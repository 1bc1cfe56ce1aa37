package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCooldownLimiter(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewCooldownLimiter(time.Second, func() time.Time { return now })

	_, ok := l.Allow("u1")
	assert.True(t, ok, "first action is always allowed")

	wait, ok := l.Allow("u1")
	assert.False(t, ok)
	assert.Equal(t, time.Second, wait)

	_, ok = l.Allow("u2")
	assert.True(t, ok, "limiter is per subject")

	now = now.Add(500 * time.Millisecond)
	wait, ok = l.Allow("u1")
	assert.False(t, ok)
	assert.Equal(t, 500*time.Millisecond, wait)

	now = now.Add(500 * time.Millisecond)
	_, ok = l.Allow("u1")
	assert.True(t, ok, "window elapsed")

	// A successful Allow restarts the window.
	wait, ok = l.Allow("u1")
	assert.False(t, ok)
	assert.Equal(t, time.Second, wait)
}

func TestCooldownLimiterReset(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewCooldownLimiter(time.Minute, func() time.Time { return now })

	_, ok := l.Allow("u1")
	assert.True(t, ok)
	_, ok = l.Allow("u1")
	assert.False(t, ok)

	l.Reset("u1")
	_, ok = l.Allow("u1")
	assert.True(t, ok)
}
