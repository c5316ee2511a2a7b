package cacheaside

import (
	"context"
	"time"

	"github.com/Koalla18/TakeSmart/internal/cache"
	"github.com/Koalla18/TakeSmart/internal/cachekey"
	"github.com/Koalla18/TakeSmart/internal/logging"
	"github.com/Koalla18/TakeSmart/internal/metrics"
	"github.com/Koalla18/TakeSmart/internal/observability"
)

// DefaultPurgeTimeout bounds a single prefix purge. A purge walks every key
// in a family, so it gets more room than a point lookup.
const DefaultPurgeTimeout = 2 * time.Second

// Publisher announces a purged prefix to peer processes.
type Publisher interface {
	Publish(ctx context.Context, prefix string) error
}

// Coordinator purges cache prefixes after catalog writes.
type Coordinator struct {
	cache   cache.Cache
	pub     Publisher
	timeout time.Duration
}

// NewCoordinator returns a Coordinator purging c. A nil c makes every
// invalidation a no-op.
func NewCoordinator(c cache.Cache, timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultPurgeTimeout
	}
	return &Coordinator{cache: c, timeout: timeout}
}

// SetPublisher makes the coordinator announce every purged prefix, so peers
// holding a local tier drop it too.
func (c *Coordinator) SetPublisher(p Publisher) {
	c.pub = p
}

// Invalidate removes every key under each distinct prefix. Failures are
// logged and counted, never returned: the write that triggered the purge has
// already committed. The purge outlives cancellation of ctx so a client
// hanging up after commit cannot leave stale entries behind.
func (c *Coordinator) Invalidate(ctx context.Context, prefixes ...string) {
	if c == nil || c.cache == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	log := logging.FromContext(ctx)

	seen := make(map[string]struct{}, len(prefixes))
	for _, prefix := range prefixes {
		if prefix == "" {
			continue
		}
		if _, dup := seen[prefix]; dup {
			continue
		}
		seen[prefix] = struct{}{}

		n, err := c.purge(ctx, prefix)
		metrics.Global().RecordInvalidation(prefix, n, err)
		if err != nil {
			log.Warn("cache invalidation failed", "prefix", prefix, "error", err)
			continue
		}
		log.Debug("cache invalidated", "prefix", prefix, "keys", n)

		if c.pub != nil {
			pctx, cancel := context.WithTimeout(ctx, c.timeout)
			if err := c.pub.Publish(pctx, prefix); err != nil {
				log.Warn("cache invalidation publish failed", "prefix", prefix, "error", err)
			}
			cancel()
		}
	}
}

// InvalidateEntity purges every family derived from e.
func (c *Coordinator) InvalidateEntity(ctx context.Context, e cachekey.Entity) {
	c.Invalidate(ctx, cachekey.PrefixesFor(e)...)
}

func (c *Coordinator) purge(ctx context.Context, prefix string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := observability.StartSpan(ctx, "cache.delete_prefix",
		observability.AttrCachePrefix.String(prefix))
	defer span.End()

	n, err := c.cache.DeletePrefix(ctx, prefix)
	if err != nil {
		observability.SetSpanError(span, err)
	}
	return n, err
}
