package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	apierrors "github.com/hrygo/secondbrain/server/internal/errors"
)

const (
	defaultRate  = rate.Limit(10)
	defaultBurst = 20
	// idleLimiterTTL is how long an owner's limiter survives without requests.
	idleLimiterTTL = 10 * time.Minute
)

type ownerLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter provides per-owner rate limiting.
type RateLimiter struct {
	mu     sync.Mutex
	limits map[string]*ownerLimiter
	rate   rate.Limit
	burst  int
	now    func() time.Time
}

// NewRateLimiter creates a limiter allowing 10 requests per second with a burst of 20 per key.
func NewRateLimiter() *RateLimiter {
	return NewRateLimiterWithLimit(defaultRate, defaultBurst)
}

// NewRateLimiterWithLimit creates a limiter with a custom rate and burst.
func NewRateLimiterWithLimit(r rate.Limit, burst int) *RateLimiter {
	return &RateLimiter{
		limits: make(map[string]*ownerLimiter),
		rate:   r,
		burst:  burst,
		now:    time.Now,
	}
}

// getLimiter gets or creates a limiter for the given key.
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if l, ok := rl.limits[key]; ok {
		l.lastSeen = now
		return l.limiter
	}

	l := &ownerLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst), lastSeen: now}
	rl.limits[key] = l
	return l.limiter
}

// Allow checks if a request is allowed for the given key.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).Allow()
}

// Wait waits for a request to be allowed.
// Returns error if the context is cancelled or rate limit exceeded.
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	return rl.getLimiter(key).Wait(ctx)
}

// Prune drops limiters idle for longer than the TTL and returns how many were removed.
func (rl *RateLimiter) Prune() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-idleLimiterTTL)
	removed := 0
	for key, l := range rl.limits {
		if l.lastSeen.Before(cutoff) {
			delete(rl.limits, key)
			removed++
		}
	}
	return removed
}

// Middleware rejects requests over the owner's budget with RATE_LIMIT_EXCEEDED.
// It must run after OwnerMiddleware.
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rl.Allow(OwnerFromContext(c)) {
				return apierrors.RateLimitExceeded("too many requests")
			}
			return next(c)
		}
	}
}
