package agent

import (
	"fmt"
	"sync"
	"time"
)

// RateLimitError reports an admission failure with the budget state.
type RateLimitError struct {
	Remaining  int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry in %s", e.RetryAfter.Round(time.Second))
}

// RateLimiter admits up to limit requests per agent in a sliding
// window. A rejected request is never charged, so the limiter is
// approximate but monotone: backing off always helps.
type RateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string][]time.Time
}

// NewRateLimiter creates a limiter. Non-positive arguments fall back to
// 100 requests per 60 seconds.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 100
	}
	if window <= 0 {
		window = 60 * time.Second
	}
	return &RateLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		windows: make(map[string][]time.Time),
	}
}

// Allow charges one request against the agent's window and returns the
// remaining budget. On rejection it returns a *RateLimitError and
// leaves the window untouched.
func (l *RateLimiter) Allow(agentID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	w := l.windows[agentID]
	kept := w[:0]
	for _, t := range w {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.limit {
		l.windows[agentID] = kept
		return 0, &RateLimitError{
			Remaining:  0,
			RetryAfter: kept[0].Sub(cutoff),
		}
	}

	kept = append(kept, now)
	l.windows[agentID] = kept
	return l.limit - len(kept), nil
}
