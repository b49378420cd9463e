package auth

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter checks whether a request should be allowed based on
// the identity's service tier.
type RateLimiter interface {
	Allow(ctx context.Context, identity *Identity) error
}

// InProcessLimiter is a token bucket rate limiter keyed by subject and
// tier, held in memory.
type InProcessLimiter struct {
	tiers      map[string]int
	defaultRPM int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewInProcessLimiter creates a rate limiter. tiers maps a service tier to
// its requests per minute; other tiers use defaultRPM. A limit of zero or
// less disables limiting.
func NewInProcessLimiter(tiers map[string]int, defaultRPM int) *InProcessLimiter {
	return &InProcessLimiter{
		tiers:      tiers,
		defaultRPM: defaultRPM,
		limiters:   make(map[string]*rate.Limiter),
	}
}

// Allow reports ErrTooManyRequests when the caller's bucket is empty.
func (l *InProcessLimiter) Allow(_ context.Context, identity *Identity) error {
	tier := identity.ServiceTier
	if tier == "" {
		tier = "default"
	}

	rpm := l.defaultRPM
	if n, ok := l.tiers[tier]; ok {
		rpm = n
	}
	if rpm <= 0 {
		return nil
	}

	if !l.limiter(identity.Subject+":"+tier, rpm).Allow() {
		return ErrTooManyRequests
	}
	return nil
}

func (l *InProcessLimiter) limiter(key string, rpm int) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[key]
	if !ok {
		// A full minute's budget is available as burst, refilled evenly.
		lim = rate.NewLimiter(rate.Limit(float64(rpm)/60), rpm)
		l.limiters[key] = lim
	}
	return lim
}
