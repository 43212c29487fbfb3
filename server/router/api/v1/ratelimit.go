package v1

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultRequestsPerMinute = 30
	limiterIdleTTL           = 10 * time.Minute
)

// RateLimiter is a per-key token bucket. Keys idle for longer than
// limiterIdleTTL are forgotten on the next sweep.
type RateLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	entries   map[string]*limiterEntry
	lastSweep time.Time
	now       func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows perMinute requests per key, with bursts of the same
// size. Zero selects the default; a negative value disables limiting.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute == 0 {
		perMinute = defaultRequestsPerMinute
	}
	rl := &RateLimiter{
		entries: make(map[string]*limiterEntry),
		now:     time.Now,
	}
	if perMinute < 0 {
		rl.limit = rate.Inf
		return rl
	}
	rl.limit = rate.Limit(float64(perMinute) / 60)
	rl.burst = perMinute
	return rl
}

// Allow reports whether one more request for key fits the budget.
func (rl *RateLimiter) Allow(key string) bool {
	if rl.limit == rate.Inf {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) > limiterIdleTTL {
		for k, e := range rl.entries {
			if now.Sub(e.lastSeen) > limiterIdleTTL {
				delete(rl.entries, k)
			}
		}
		rl.lastSweep = now
	}

	e, ok := rl.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}
