package antibot

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter paces requests with a delay sampled uniformly from
// [min, max], independent of error-driven backoff. An optional token bucket
// additionally caps sustained navigation volume across the whole session.
type RateLimiter struct {
	min    time.Duration
	max    time.Duration
	bucket *rate.Limiter
	rng    *rand.Rand
}

// NewRateLimiter builds a limiter for the given jitter window. A max below
// min collapses the window to min.
func NewRateLimiter(min, max time.Duration) *RateLimiter {
	if max < min {
		max = min
	}
	return &RateLimiter{
		min: min,
		max: max,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithNavCap sets a token-bucket ceiling of requests per interval on top of
// the random jitter.
func (l *RateLimiter) WithNavCap(requests int, interval time.Duration) *RateLimiter {
	if requests <= 0 || interval <= 0 {
		return l
	}
	perRequest := interval / time.Duration(requests)
	if perRequest <= 0 {
		perRequest = time.Second
	}
	l.bucket = rate.NewLimiter(rate.Every(perRequest), requests)
	return l
}

// Delay samples one jitter duration from [min, max].
func (l *RateLimiter) Delay() time.Duration {
	if l.max == l.min {
		return l.min
	}
	return l.min + time.Duration(l.rng.Int63n(int64(l.max-l.min)+1))
}

// Wait suspends the caller for one sampled delay, first acquiring a token
// when a navigation cap is configured. It returns early with the context's
// error on cancellation.
func (l *RateLimiter) Wait(ctx context.Context) error {
	if l.bucket != nil {
		if err := l.bucket.Wait(ctx); err != nil {
			return err
		}
	}
	return Sleep(ctx, l.Delay())
}

// Sleep blocks for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
