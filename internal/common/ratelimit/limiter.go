// Package ratelimit implements a fixed-window submission limiter keyed by
// client address.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

const keyPrefix = "contact:submit:"

// Counter increments a windowed counter and reports the time left in the window.
type Counter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Result is the outcome of one Allow call.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

type Limiter struct {
	counter Counter
	limit   int
	window  time.Duration
}

func NewLimiter(counter Counter, limit int, window time.Duration) (*Limiter, error) {
	if counter == nil {
		return nil, fmt.Errorf("rate limiter requires a counter")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("rate limit must be positive")
	}
	if window <= 0 {
		return nil, fmt.Errorf("rate limit window must be positive")
	}
	return &Limiter{counter: counter, limit: limit, window: window}, nil
}

// Allow counts one submission for key. On a counter error the caller
// decides whether to let the request through.
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	if key == "" {
		key = "unknown"
	}

	count, ttl, err := l.counter.IncrWindow(ctx, keyPrefix+key, l.window)
	if err != nil {
		return Result{}, err
	}

	if count > int64(l.limit) {
		retryAfter := ttl
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return Result{Allowed: false, RetryAfter: retryAfter.Round(time.Second)}, nil
	}

	return Result{Allowed: true, Remaining: l.limit - int(count)}, nil
}
