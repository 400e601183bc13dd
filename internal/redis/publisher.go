package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Publisher is the write half of the invalidation fanout: the event bus
// hands it envelopes, the subscriber side feeds the websocket bridge and the
// snapshot feeds.
type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.client.Publish(ctx, channel, payload).Err()
}
