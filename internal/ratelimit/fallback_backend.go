package ratelimit

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Koalla18/TakeSmart/internal/logging"
)

// probeInterval is the minimum time between probes of a failed primary.
const probeInterval = 5 * time.Second

// FallbackBackend checks buckets on primary and switches to process-local
// buckets when primary errors. While degraded it probes primary in the
// background and switches back once a probe succeeds.
type FallbackBackend struct {
	primary   Backend
	local     *LocalBackend
	degraded  atomic.Bool
	probeMu   sync.Mutex
	lastProbe atomic.Int64 // unix nanos
}

// NewFallbackBackend wraps primary.
func NewFallbackBackend(primary Backend) *FallbackBackend {
	return &FallbackBackend{primary: primary, local: NewLocalBackend()}
}

func (f *FallbackBackend) CheckRateLimit(ctx context.Context, key string, maxTokens int, refillRate float64, requested int) (bool, int, error) {
	if f.degraded.Load() {
		if time.Since(time.Unix(0, f.lastProbe.Load())) > probeInterval {
			go f.probe()
		}
		return f.local.CheckRateLimit(ctx, key, maxTokens, refillRate, requested)
	}

	allowed, remaining, err := f.primary.CheckRateLimit(ctx, key, maxTokens, refillRate, requested)
	if err != nil {
		logging.Op().Warn("rate limit backend failed, using local buckets", "error", err)
		f.lastProbe.Store(time.Now().UnixNano())
		f.degraded.Store(true)
		return f.local.CheckRateLimit(ctx, key, maxTokens, refillRate, requested)
	}
	return allowed, remaining, nil
}

func (f *FallbackBackend) probe() {
	if !f.probeMu.TryLock() {
		return
	}
	defer f.probeMu.Unlock()
	f.lastProbe.Store(time.Now().UnixNano())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	// requested=0 reads without consuming.
	if _, _, err := f.primary.CheckRateLimit(ctx, "probe", 1, 1, 0); err == nil {
		logging.Op().Info("rate limit backend recovered")
		f.degraded.Store(false)
	}
}

// Degraded reports whether local buckets are in use.
func (f *FallbackBackend) Degraded() bool {
	return f.degraded.Load()
}

// LocalBackend keeps token buckets in process memory.
type LocalBackend struct {
	mu      sync.Mutex
	buckets map[string]*localBucket
	now     func() time.Time
}

type localBucket struct {
	tokens     float64
	lastRefill time.Time
}

// NewLocalBackend creates an empty local backend.
func NewLocalBackend() *LocalBackend {
	return &LocalBackend{buckets: make(map[string]*localBucket), now: time.Now}
}

func (l *LocalBackend) CheckRateLimit(_ context.Context, key string, maxTokens int, refillRate float64, requested int) (bool, int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &localBucket{tokens: float64(maxTokens), lastRefill: now}
		l.buckets[key] = b
	}
	if elapsed := now.Sub(b.lastRefill).Seconds(); elapsed > 0 {
		b.tokens = math.Min(float64(maxTokens), b.tokens+elapsed*refillRate)
		b.lastRefill = now
	}

	if b.tokens >= float64(requested) {
		b.tokens -= float64(requested)
		return true, int(b.tokens), nil
	}
	return false, int(b.tokens), nil
}
