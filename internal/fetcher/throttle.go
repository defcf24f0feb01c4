package fetcher

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Throttle enforces a minimum spacing between consecutive navigations shared
// by every fetcher and worker. Politeness, not correctness: the site gets at
// most one request per delay interval from this process.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle creates a throttle with the given minimum inter-request delay.
// A zero or negative delay disables throttling.
func NewThrottle(minDelay time.Duration) *Throttle {
	if minDelay <= 0 {
		return &Throttle{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Throttle{limiter: rate.NewLimiter(rate.Every(minDelay), 1)}
}

// Wait blocks until the next navigation is allowed or the context is done.
func (t *Throttle) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}

// Allow reports whether a navigation may proceed right now without waiting.
func (t *Throttle) Allow() bool {
	return t.limiter.Allow()
}
