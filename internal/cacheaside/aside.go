// Package cacheaside implements the read-through and invalidation policy of
// the catalog cache. Readers call GetOrFetch with a canonical key and a
// loader; writers call Coordinator.Invalidate with the prefixes of the entity
// they changed. Cache failures never escape this package: an unreachable
// cache degrades every read to a store read.
package cacheaside

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Koalla18/TakeSmart/internal/cache"
	"github.com/Koalla18/TakeSmart/internal/cachekey"
	"github.com/Koalla18/TakeSmart/internal/logging"
	"github.com/Koalla18/TakeSmart/internal/metrics"
	"github.com/Koalla18/TakeSmart/internal/observability"
)

const (
	DefaultTTL       = 60 * time.Second
	DefaultOpTimeout = 250 * time.Millisecond
)

// Outcome classifies a cache lookup.
type Outcome int

const (
	Miss Outcome = iota
	Hit
	Error
)

func (o Outcome) String() string {
	switch o {
	case Hit:
		return metrics.OutcomeHit
	case Error:
		return metrics.OutcomeError
	default:
		return metrics.OutcomeMiss
	}
}

// Lookup is the result of asking the cache for a key.
type Lookup struct {
	Outcome Outcome
	Payload []byte
	Err     error
}

// Options configures an Aside.
type Options struct {
	TTL       time.Duration // default entry lifetime
	OpTimeout time.Duration // bound on each cache call
}

// Aside binds a cache backend to the read-through policy.
type Aside struct {
	cache     cache.Cache
	ttl       time.Duration
	opTimeout time.Duration
}

// New returns an Aside over c. A nil c disables caching: every read goes
// straight to the loader.
func New(c cache.Cache, opts Options) *Aside {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = DefaultOpTimeout
	}
	return &Aside{cache: c, ttl: opts.TTL, opTimeout: opts.OpTimeout}
}

// TTL returns the default entry lifetime.
func (a *Aside) TTL() time.Duration { return a.ttl }

func (a *Aside) lookup(ctx context.Context, key cachekey.Key) Lookup {
	ctx, cancel := context.WithTimeout(ctx, a.opTimeout)
	defer cancel()

	payload, err := a.cache.Get(ctx, key.String())
	switch {
	case err == nil:
		return Lookup{Outcome: Hit, Payload: payload}
	case errors.Is(err, cache.ErrNotFound):
		return Lookup{Outcome: Miss}
	default:
		return Lookup{Outcome: Error, Err: err}
	}
}

func (a *Aside) store(ctx context.Context, key cachekey.Key, value any, ttl time.Duration) {
	payload, err := json.Marshal(value)
	if err != nil {
		logging.FromContext(ctx).Warn("cache encode failed", "key", key, "error", err)
		metrics.RecordCacheError("encode")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, a.opTimeout)
	defer cancel()
	if err := a.cache.Set(ctx, key.String(), payload, ttl); err != nil {
		logging.FromContext(ctx).Warn("cache set failed", "key", key, "error", err)
		metrics.RecordCacheError("set")
	}
}

// GetOrFetch returns the cached value for key, or runs loader, caches its
// result for ttl (the Aside default when ttl <= 0) and returns it.
//
// A cache error is treated as a miss. Loader errors are returned unchanged
// and never cached. Concurrent misses on the same key may each run loader.
func GetOrFetch[T any](ctx context.Context, a *Aside, key cachekey.Key, ttl time.Duration, loader func(context.Context) (T, error)) (T, error) {
	if a == nil || a.cache == nil {
		return loader(ctx)
	}
	if ttl <= 0 {
		ttl = a.ttl
	}

	family := cachekey.FamilyOf(key)
	ctx, span := observability.StartSpan(ctx, "cache.get_or_fetch",
		observability.AttrCacheKey.String(key.String()),
		observability.AttrCacheFamily.String(family.Name()),
	)
	defer span.End()

	res := a.lookup(ctx, key)
	span.SetAttributes(observability.AttrCacheOutcome.String(res.Outcome.String()))
	metrics.Global().RecordLookup(family.Name(), res.Outcome.String())

	switch res.Outcome {
	case Hit:
		var v T
		err := json.Unmarshal(res.Payload, &v)
		if err == nil {
			return v, nil
		}
		logging.FromContext(ctx).Warn("cache decode failed, refetching", "key", key, "error", err)
		metrics.RecordCacheError("decode")
	case Error:
		logging.FromContext(ctx).Warn("cache get failed, using store", "key", key, "error", res.Err)
		metrics.RecordCacheError("get")
	}

	v, err := loader(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	a.store(ctx, key, v, ttl)
	return v, nil
}
