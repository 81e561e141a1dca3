// Package ratelimit throttles command executions per shell. Each shell
// carries its own token bucket sized by its resolved policy, so a burst
// through one shell never starves the others, and a tightly limited
// shell (say wsl) can coexist with an unlimited one. No background
// goroutines; tokens are refilled lazily on each Allow call.
package ratelimit

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a shell's token bucket is empty.
var ErrRateLimited = errors.New("execution rate limit exceeded")

// Limiter tracks one token bucket per shell.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	tokens   float64
	lastFill time.Time
}

// NewLimiter creates an empty limiter. Buckets are created on first use.
func NewLimiter() *Limiter {
	return &Limiter{buckets: make(map[string]*bucket)}
}

// Allow consumes one token from the shell's bucket. perMinute is the
// shell's resolved execution budget; zero or negative means unlimited.
// Bucket capacity equals the budget, so a full minute of quota may be
// spent as one burst.
func (l *Limiter) Allow(shell string, perMinute int) error {
	if perMinute <= 0 {
		return nil
	}
	rate := float64(perMinute) / 60.0
	burst := float64(perMinute)

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[shell]
	if !ok {
		// First request: start with a full bucket.
		b = &bucket{tokens: burst, lastFill: now}
		l.buckets[shell] = b
	}

	// Refill from elapsed time, capped at the current budget. A budget
	// lowered by a config reload takes effect on the next call.
	b.tokens += now.Sub(b.lastFill).Seconds() * rate
	if b.tokens > burst {
		b.tokens = burst
	}
	b.lastFill = now

	if b.tokens < 1 {
		return ErrRateLimited
	}
	b.tokens--
	return nil
}
