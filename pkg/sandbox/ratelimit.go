package sandbox

import (
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

const (
	DefaultRateWindow = time.Minute
	DefaultRateQuota  = 30
)

// RateLimiter enforces a sliding-window request quota per user. The map is
// lock-free; each user's timestamp list has its own mutex so users never
// contend with each other.
type RateLimiter struct {
	quota  int
	window time.Duration
	users  *xsync.Map[string, *userWindow]
}

type userWindow struct {
	mu     sync.Mutex
	stamps []time.Time
}

// NewRateLimiter returns a limiter allowing quota requests per window.
// Non-positive arguments fall back to the defaults.
func NewRateLimiter(quota int, window time.Duration) *RateLimiter {
	if quota <= 0 {
		quota = DefaultRateQuota
	}
	if window <= 0 {
		window = DefaultRateWindow
	}
	return &RateLimiter{
		quota:  quota,
		window: window,
		users:  xsync.NewMap[string, *userWindow](),
	}
}

// Allow records one request for userID and reports whether it fits the
// quota. Requests older than the window roll off as a side effect.
func (rl *RateLimiter) Allow(userID string) bool {
	w, ok := rl.users.Load(userID)
	if !ok {
		w, _ = rl.users.Compute(userID, func(old *userWindow, loaded bool) (*userWindow, xsync.ComputeOp) {
			if loaded {
				return old, xsync.CancelOp
			}
			return &userWindow{}, xsync.UpdateOp
		})
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := time.Now().Add(-rl.window)
	live := w.stamps[:0]
	for _, s := range w.stamps {
		if s.After(cutoff) {
			live = append(live, s)
		}
	}
	w.stamps = live

	if len(w.stamps) >= rl.quota {
		return false
	}
	w.stamps = append(w.stamps, time.Now())
	return true
}

// Remaining returns how many requests userID has left in the current window.
func (rl *RateLimiter) Remaining(userID string) int {
	w, ok := rl.users.Load(userID)
	if !ok {
		return rl.quota
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := time.Now().Add(-rl.window)
	used := 0
	for _, s := range w.stamps {
		if s.After(cutoff) {
			used++
		}
	}
	if used >= rl.quota {
		return 0
	}
	return rl.quota - used
}
