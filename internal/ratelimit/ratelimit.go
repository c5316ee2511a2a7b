// Package ratelimit bounds how often one client may hit the search
// endpoints. Buckets live in Redis so every instance shares them; a local
// bucket takes over while Redis is unreachable.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrLimited marks a request rejected by the limiter.
var ErrLimited = errors.New("rate limit exceeded")

// Backend runs one token bucket check.
type Backend interface {
	CheckRateLimit(ctx context.Context, key string, maxTokens int, refillRate float64, requested int) (allowed bool, remaining int, err error)
}

// Config sizes the per-client bucket.
type Config struct {
	RequestsPerSecond float64
	Burst             int
}

// Enabled reports whether cfg describes a usable bucket.
func (c Config) Enabled() bool {
	return c.RequestsPerSecond > 0 && c.Burst > 0
}

// Limiter applies one Config to many client keys.
type Limiter struct {
	backend Backend
	cfg     Config
}

// New creates a limiter over backend.
func New(backend Backend, cfg Config) *Limiter {
	return &Limiter{backend: backend, cfg: cfg}
}

// Result is the outcome of a check.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration // zero when allowed
}

// Allow takes one token from key's bucket.
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	allowed, remaining, err := l.backend.CheckRateLimit(ctx, key, l.cfg.Burst, l.cfg.RequestsPerSecond, 1)
	if err != nil {
		return Result{}, fmt.Errorf("rate limit check: %w", err)
	}
	res := Result{Allowed: allowed, Remaining: remaining}
	if !allowed {
		res.RetryAfter = time.Duration(math.Ceil(1/l.cfg.RequestsPerSecond)) * time.Second
	}
	return res, nil
}

// KeyForClient returns the bucket key for a client address.
func KeyForClient(ip string) string {
	return "ip:" + ip
}
