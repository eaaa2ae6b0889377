package messaging

import (
	"context"

	rediscache "github.com/urok-hub/urok-marketplace/internal/infrastructure/persistence/redis"
)

// cacheRedisClient adapts the persistence-layer Redis cache to the
// RedisClient port of the event bus.
type cacheRedisClient struct {
	cache *rediscache.Cache
}

// NewCacheRedisClient wraps a Redis cache for use by RedisEventBus.
// Closing the returned client does not close the underlying cache;
// the cache's owner is responsible for that.
func NewCacheRedisClient(cache *rediscache.Cache) RedisClient {
	return &cacheRedisClient{cache: cache}
}

func (c *cacheRedisClient) Publish(ctx context.Context, channel string, message interface{}) error {
	return c.cache.Publish(ctx, channel, message)
}

func (c *cacheRedisClient) Subscribe(ctx context.Context, channels ...string) (<-chan RedisMessage, error) {
	pubsub := c.cache.Subscribe(ctx, channels...)

	out := make(chan RedisMessage)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- RedisMessage{Channel: msg.Channel, Payload: msg.Payload}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (c *cacheRedisClient) Close() error {
	return nil
}
