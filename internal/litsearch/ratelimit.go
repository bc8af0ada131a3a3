package litsearch

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter wraps a token bucket limiter for controlling request rates to
// the literature APIs. Safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter with the given sustained requests per
// second and burst size.
func NewRateLimiter(ratePerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

// Wait blocks until a request is allowed or the context is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Allow reports whether a request may proceed without waiting, consuming a
// token when it may.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}
