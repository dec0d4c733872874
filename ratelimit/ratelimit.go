// Package ratelimit provides fixed-window request limiting keyed by an
// arbitrary string, usually the client IP plus the route.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

var ErrInvalidConfig = errors.New("invalid rate limit configuration")

type Config struct {
	Requests int
	Window   time.Duration
}

func (c Config) validate() error {
	if c.Requests <= 0 || c.Window <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Result describes the window the request landed in.
type Result struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
	allowed   bool
}

func (r *Result) Allowed() bool {
	return r.allowed
}

// RetryAfter is how long the caller should wait before the window resets.
func (r *Result) RetryAfter() time.Duration {
	if r.allowed {
		return 0
	}
	return max(time.Until(r.ResetAt), 0)
}

type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
}

func windowStart(now time.Time, window time.Duration) time.Time {
	return now.Truncate(window)
}

func newResult(cfg Config, count int64, start time.Time) *Result {
	return &Result{
		Limit:     cfg.Requests,
		Remaining: max(cfg.Requests-int(count), 0),
		ResetAt:   start.Add(cfg.Window),
		allowed:   count <= int64(cfg.Requests),
	}
}
