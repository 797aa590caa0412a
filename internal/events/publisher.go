package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher hands notification requests to downstream consumers over a
// Redis pub/sub channel. Delivery to end recipients is owned by the
// notification subsystem listening on that channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{
		client:  client,
		channel: channel,
	}
}

func (p *RedisPublisher) Deliver(ctx context.Context, n NotificationRequest) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification request: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish notification request: %w", err)
	}

	return nil
}
