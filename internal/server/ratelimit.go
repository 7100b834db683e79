package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter caps manual triggers per client. Counters use fixed windows:
// the minute window starts at a client's first request in it, the day
// window at local midnight.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	maxRequestsPerDay int
	maxDataPerDay     int64 // bytes

	now     func() time.Time
	clients map[string]*Usage
}

// Usage is a client's consumption in the current windows.
type Usage struct {
	MinuteStart    time.Time
	RequestsMinute int
	Day            time.Time
	RequestsToday  int
	DataToday      int64
}

// NewRateLimiter creates a limiter. Zero disables the respective limit.
func NewRateLimiter(requestsPerMinute, maxRequestsPerDay int, maxDataPerDay int64) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		maxRequestsPerDay: maxRequestsPerDay,
		maxDataPerDay:     maxDataPerDay,
		now:               time.Now,
		clients:           make(map[string]*Usage),
	}
}

// Allow records a request of dataSize bytes from client, or returns a
// *RateLimitError / *QuotaExceededError without recording it.
func (rl *RateLimiter) Allow(client string, dataSize int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	u := rl.usage(client, now)

	if rl.requestsPerMinute > 0 && u.RequestsMinute >= rl.requestsPerMinute {
		return &RateLimitError{
			Type:       "minute",
			Limit:      rl.requestsPerMinute,
			RetryAfter: u.MinuteStart.Add(time.Minute).Sub(now),
		}
	}
	resets := u.Day.AddDate(0, 0, 1)
	if rl.maxRequestsPerDay > 0 && u.RequestsToday >= rl.maxRequestsPerDay {
		return &QuotaExceededError{Type: "requests", Limit: int64(rl.maxRequestsPerDay), Used: int64(u.RequestsToday), Resets: resets}
	}
	if rl.maxDataPerDay > 0 && u.DataToday+dataSize > rl.maxDataPerDay {
		return &QuotaExceededError{Type: "data", Limit: rl.maxDataPerDay, Used: u.DataToday, Resets: resets}
	}

	u.RequestsMinute++
	u.RequestsToday++
	u.DataToday += dataSize
	return nil
}

// usage returns the client's record with expired windows reset.
func (rl *RateLimiter) usage(client string, now time.Time) *Usage {
	u, ok := rl.clients[client]
	if !ok {
		u = &Usage{}
		rl.clients[client] = u
	}
	if now.Sub(u.MinuteStart) >= time.Minute {
		u.MinuteStart = now
		u.RequestsMinute = 0
	}
	if day := startOfDay(now); !day.Equal(u.Day) {
		u.Day = day
		u.RequestsToday = 0
		u.DataToday = 0
	}
	return u
}

// Usage returns a copy of the client's record.
func (rl *RateLimiter) Usage(client string) Usage {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if u, ok := rl.clients[client]; ok {
		return *u
	}
	return Usage{}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Type       string
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter)
}

// QuotaExceededError represents a daily quota violation.
type QuotaExceededError struct {
	Type   string // "requests" or "data"
	Limit  int64
	Used   int64
	Resets time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Type, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
