package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"backoffice/internal/domain/rbac"
	"backoffice/pkg/logger"
)

// RedisBus broadcasts catalog changes over Redis pub/sub. Each instance tags
// its messages with its own id and ignores them on receipt, since the local
// cache was already purged by the writer.
type RedisBus struct {
	client      *redis.Client
	channel     string
	instanceID  string
	invalidator rbac.Invalidator

	mu     sync.Mutex
	pubsub *redis.PubSub
	wg     sync.WaitGroup
}

// NewRedisBus creates a bus on channel.
func NewRedisBus(client *redis.Client, channel string, invalidator rbac.Invalidator) *RedisBus {
	return &RedisBus{
		client:      client,
		channel:     channel,
		instanceID:  uuid.NewString(),
		invalidator: invalidator,
	}
}

// Publish announces a catalog change to other instances.
func (b *RedisBus) Publish(ctx context.Context) error {
	if err := b.client.Publish(ctx, b.channel, b.instanceID).Err(); err != nil {
		return fmt.Errorf("publish catalog change: %w", err)
	}
	return nil
}

// Start subscribes and confirms the subscription before returning.
func (b *RedisBus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pubsub != nil {
		return nil
	}

	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.pubsub = pubsub

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for msg := range pubsub.Channel() {
			if msg.Payload == b.instanceID {
				continue
			}
			logger.Debug(ctx, "catalog change received", "from", msg.Payload)
			b.invalidator.InvalidateAll(ctx)
		}
	}()

	logger.Info(ctx, "redis catalog bus started", "channel", b.channel)
	return nil
}

// Stop unsubscribes and waits for the receive loop to finish.
func (b *RedisBus) Stop() {
	b.mu.Lock()
	pubsub := b.pubsub
	b.pubsub = nil
	b.mu.Unlock()

	if pubsub == nil {
		return
	}
	_ = pubsub.Close()
	b.wg.Wait()
}

var _ rbac.Broadcaster = (*RedisBus)(nil)
