package redis

import (
	"context"
	"sync"

	"github.com/learnora/learnora-progress/internal/infrastructure/messaging"
)

// ══════════════════════════════════════════════════════════════════════════════
// PUB/SUB BRIDGE
// ══════════════════════════════════════════════════════════════════════════════

// PubSubBridge adapts the Cache client to the event bus transport
// interface. Each Subscribe call owns one Redis subscription; Close
// tears all of them down.
type PubSubBridge struct {
	cache *Cache

	mu     sync.Mutex
	cancel []context.CancelFunc
	closed bool
}

// NewPubSubBridge creates a pub/sub bridge on top of an existing cache client.
func NewPubSubBridge(cache *Cache) *PubSubBridge {
	return &PubSubBridge{cache: cache}
}

// Publish implements messaging.RedisClient.
func (b *PubSubBridge) Publish(ctx context.Context, channel string, message interface{}) error {
	return b.cache.Publish(ctx, channel, message)
}

// Subscribe implements messaging.RedisClient. The returned channel is
// closed when the given context is canceled or the bridge is closed.
func (b *PubSubBridge) Subscribe(ctx context.Context, channels ...string) (<-chan messaging.RedisMessage, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrCacheConnection
	}
	ctx, cancel := context.WithCancel(ctx)
	b.cancel = append(b.cancel, cancel)
	b.mu.Unlock()

	sub := b.cache.Subscribe(ctx, channels...)

	// Force the subscription to be established before returning, so a
	// publish immediately after Subscribe is not lost.
	if _, err := sub.Receive(ctx); err != nil {
		cancel()
		_ = sub.Close()
		return nil, err
	}

	out := make(chan messaging.RedisMessage, 64)
	go func() {
		defer close(out)
		defer sub.Close()

		in := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- messaging.RedisMessage{Channel: msg.Channel, Payload: msg.Payload}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close implements messaging.RedisClient. It cancels all active
// subscriptions but leaves the underlying cache client open; the cache
// is shared and closed by its owner.
func (b *PubSubBridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, cancel := range b.cancel {
		cancel()
	}
	b.cancel = nil
	return nil
}
