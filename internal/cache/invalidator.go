package cache

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// InvalidationChannel is the Redis Pub/Sub channel carrying purged prefixes.
// A process that purges a prefix publishes it here so every peer drops the
// same prefix from its L1 tier without waiting for the L1 TTL.
const InvalidationChannel = "takesmart:cache:invalidate"

// CacheInvalidator relays prefix purges between processes over Redis
// Pub/Sub and applies incoming ones to a local cache.
type CacheInvalidator struct {
	local  Cache
	client *redis.Client
	mu     sync.Mutex
	cancel context.CancelFunc
	closed bool
	ready  chan struct{}
	once   sync.Once
}

// NewCacheInvalidator creates an invalidator that purges local on every
// prefix received from client. A nil local gives a publish-only invalidator
// that must not be started.
func NewCacheInvalidator(local Cache, client *redis.Client) *CacheInvalidator {
	return &CacheInvalidator{
		local:  local,
		client: client,
		ready:  make(chan struct{}),
	}
}

// Ready is closed once the subscription is confirmed.
func (ci *CacheInvalidator) Ready() <-chan struct{} { return ci.ready }

// Start listens for invalidation signals. It blocks until ctx is cancelled,
// Close is called, or the subscription fails.
func (ci *CacheInvalidator) Start(ctx context.Context) error {
	subCtx, cancel := context.WithCancel(ctx)
	ci.mu.Lock()
	if ci.closed {
		ci.mu.Unlock()
		cancel()
		return nil
	}
	ci.cancel = cancel
	ci.mu.Unlock()
	defer cancel()

	pubsub := ci.client.Subscribe(subCtx, InvalidationChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(subCtx); err != nil {
		if subCtx.Err() != nil {
			return nil
		}
		return err
	}
	ci.once.Do(func() { close(ci.ready) })

	ch := pubsub.Channel()
	for {
		select {
		case <-subCtx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			_, _ = ci.local.DeletePrefix(subCtx, msg.Payload)
		}
	}
}

// Publish announces that prefix was purged.
func (ci *CacheInvalidator) Publish(ctx context.Context, prefix string) error {
	return ci.client.Publish(ctx, InvalidationChannel, prefix).Err()
}

// Close stops the listener.
func (ci *CacheInvalidator) Close() error {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	if ci.closed {
		return nil
	}
	ci.closed = true
	if ci.cancel != nil {
		ci.cancel()
	}
	return nil
}
