package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Koalla18/TakeSmart/internal/circuitbreaker"
	"github.com/Koalla18/TakeSmart/internal/logging"
	"github.com/Koalla18/TakeSmart/internal/metrics"
)

// ErrUnavailable is returned without touching the backend while the breaker
// is open.
var ErrUnavailable = fmt.Errorf("cache unavailable: %w", circuitbreaker.ErrOpen)

// BreakerCache stops calling a failing backend for a while. Callers already
// treat cache errors as misses, so an open breaker turns every lookup into
// an immediate miss instead of a timeout.
type BreakerCache struct {
	next    Cache
	breaker *circuitbreaker.Breaker
}

// NewBreakerCache wraps next. A disabled cfg returns next unchanged.
func NewBreakerCache(next Cache, name string, cfg circuitbreaker.Config) Cache {
	if !cfg.Enabled() {
		return next
	}
	b := circuitbreaker.New(cfg)
	metrics.SetBreakerState(name, int(circuitbreaker.StateClosed))
	b.SetOnStateChange(func(from, to circuitbreaker.State) {
		metrics.SetBreakerState(name, int(to))
		logging.Op().Warn("cache breaker state changed",
			"cache", name, "from", from.String(), "to", to.String())
	})
	return &BreakerCache{next: next, breaker: b}
}

// State returns the breaker state.
func (c *BreakerCache) State() circuitbreaker.State { return c.breaker.State() }

// do runs fn through the breaker. ErrNotFound is a healthy answer.
func (c *BreakerCache) do(fn func() error) error {
	if !c.breaker.Allow() {
		return ErrUnavailable
	}
	err := fn()
	if err == nil || errors.Is(err, ErrNotFound) {
		c.breaker.RecordSuccess()
	} else {
		c.breaker.RecordFailure()
	}
	return err
}

func (c *BreakerCache) Get(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := c.do(func() error {
		var err error
		out, err = c.next.Get(ctx, key)
		return err
	})
	return out, err
}

func (c *BreakerCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.do(func() error { return c.next.Set(ctx, key, value, ttl) })
}

func (c *BreakerCache) Delete(ctx context.Context, key string) error {
	return c.do(func() error { return c.next.Delete(ctx, key) })
}

// DeletePrefix always reaches the backend: a purge skipped by an open
// breaker would leave stale entries once the backend recovers.
func (c *BreakerCache) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	n, err := c.next.DeletePrefix(ctx, prefix)
	if err != nil {
		c.breaker.RecordFailure()
	}
	return n, err
}

func (c *BreakerCache) Exists(ctx context.Context, key string) (bool, error) {
	var ok bool
	err := c.do(func() error {
		var err error
		ok, err = c.next.Exists(ctx, key)
		return err
	})
	return ok, err
}

// Ping bypasses the breaker so readiness reports the backend itself.
func (c *BreakerCache) Ping(ctx context.Context) error { return c.next.Ping(ctx) }

func (c *BreakerCache) Close() error { return c.next.Close() }
