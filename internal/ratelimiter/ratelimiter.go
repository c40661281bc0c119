// Package ratelimiter throttles directory scans with a token bucket.
package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter bounds the number of entries a scan loads per second.
//
// Every loaded entry consumes one token. Tokens refill at the sustained rate
// and up to burst of them can be spent at once, so short directories load
// without delay while large trees are spread out over time.
//
// A nil *RateLimiter never waits.
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a limiter allowing entriesPerSecond sustained and burst at
// once. A zero entriesPerSecond returns nil (unlimited). A zero burst is
// raised to 1 so that Wait can make progress.
func New(entriesPerSecond, burst uint) *RateLimiter {
	if entriesPerSecond == 0 {
		return nil
	}
	if burst == 0 {
		burst = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(entriesPerSecond), int(burst)),
	}
}

// Allow consumes a token if one is available, without waiting.
func (r *RateLimiter) Allow() bool {
	if r == nil {
		return true
	}
	return r.limiter.Allow()
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil {
		return ctx.Err()
	}
	return r.limiter.Wait(ctx)
}

// SetLimit changes the sustained rate. Zero removes the limit.
func (r *RateLimiter) SetLimit(entriesPerSecond uint) {
	if r == nil {
		return
	}
	if entriesPerSecond == 0 {
		r.limiter.SetLimit(rate.Inf)
		return
	}
	r.limiter.SetLimit(rate.Limit(entriesPerSecond))
}

// Tokens returns the tokens currently available.
func (r *RateLimiter) Tokens() float64 {
	if r == nil {
		return 0
	}
	return r.limiter.Tokens()
}
