// Package ratelimit paces outbound completion calls.
package ratelimit

import (
	"context"
	"time"
)

// RateLimiter controls request throughput per upstream resource.
type RateLimiter interface {
	Allow(ctx context.Context, resource string) (bool, error)
	Wait(ctx context.Context, resource string) error
}

const defaultFixedDelay = 4 * time.Second

// FixedDelayLimiter spaces requests by sleeping a fixed interval. It is
// the default pacing when no shared limiter backend is configured.
type FixedDelayLimiter struct {
	delay time.Duration
	sleep func(ctx context.Context, d time.Duration) error
}

var _ RateLimiter = (*FixedDelayLimiter)(nil)

func NewFixedDelayLimiter(delay time.Duration) *FixedDelayLimiter {
	if delay <= 0 {
		delay = defaultFixedDelay
	}
	return &FixedDelayLimiter{
		delay: delay,
		sleep: sleepWithContext,
	}
}

func (l *FixedDelayLimiter) Allow(ctx context.Context, resource string) (bool, error) {
	return true, nil
}

func (l *FixedDelayLimiter) Wait(ctx context.Context, resource string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return l.sleep(ctx, l.delay)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
