package server

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(perMinute, perDay int, data int64) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(perMinute, perDay, data)
	rl.now = clock.now
	return rl, clock
}

func TestRateLimiter_NoLimits(t *testing.T) {
	rl, _ := newTestLimiter(0, 0, 0)
	for range 100 {
		require.NoError(t, rl.Allow("line-1", 1024))
	}
	u := rl.Usage("line-1")
	assert.Equal(t, 100, u.RequestsToday)
	assert.Equal(t, int64(100*1024), u.DataToday)
}

func TestRateLimiter_PerMinute(t *testing.T) {
	rl, clock := newTestLimiter(2, 0, 0)
	require.NoError(t, rl.Allow("a", 0))
	clock.advance(20 * time.Second)
	require.NoError(t, rl.Allow("a", 0))

	clock.advance(10 * time.Second)
	err := rl.Allow("a", 0)
	var rle *RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, "minute", rle.Type)
	assert.Equal(t, 2, rle.Limit)
	assert.Equal(t, 30*time.Second, rle.RetryAfter)
	assert.Equal(t, 2, rl.Usage("a").RequestsMinute, "refused requests are not counted")

	clock.advance(30 * time.Second)
	assert.NoError(t, rl.Allow("a", 0), "window expired")
}

func TestRateLimiter_DailyRequests(t *testing.T) {
	rl, clock := newTestLimiter(0, 3, 0)
	for range 3 {
		require.NoError(t, rl.Allow("a", 0))
	}
	err := rl.Allow("a", 0)
	var qe *QuotaExceededError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, "requests", qe.Type)
	assert.Equal(t, int64(3), qe.Used)
	assert.Equal(t, time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC), qe.Resets)

	clock.advance(14 * time.Hour)
	assert.NoError(t, rl.Allow("a", 0), "new day")
	assert.Equal(t, 1, rl.Usage("a").RequestsToday)
}

func TestRateLimiter_DailyData(t *testing.T) {
	rl, _ := newTestLimiter(0, 0, 1000)
	require.NoError(t, rl.Allow("a", 600))
	err := rl.Allow("a", 500)
	var qe *QuotaExceededError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, "data", qe.Type)
	assert.Equal(t, int64(600), qe.Used)
	assert.NoError(t, rl.Allow("a", 400))
}

func TestRateLimiter_ClientsIndependent(t *testing.T) {
	rl, _ := newTestLimiter(1, 0, 0)
	require.NoError(t, rl.Allow("a", 0))
	assert.Error(t, rl.Allow("a", 0))
	assert.NoError(t, rl.Allow("b", 0))
	assert.Equal(t, Usage{}, rl.Usage("unknown"))
}

func TestRateLimitErrors_Messages(t *testing.T) {
	rle := &RateLimitError{Type: "minute", Limit: 5, RetryAfter: time.Second}
	assert.Contains(t, rle.Error(), "minute")
	qe := &QuotaExceededError{Type: "data", Limit: 10, Used: 10, Resets: time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)}
	assert.Contains(t, qe.Error(), "2026-10-18T00:00:00Z")
}
