package websocket

import (
	"context"

	"tomodachi/internal/events"
)

// RedisBridge forwards Redis pub/sub traffic into the hub so every event a
// service publishes reaches the websocket clients subscribed to its channel.
type RedisBridge struct {
	subscriber events.Subscriber
	hub        *Hub
}

func NewRedisBridge(subscriber events.Subscriber, hub *Hub) *RedisBridge {
	return &RedisBridge{subscriber: subscriber, hub: hub}
}

// Run blocks pumping messages until the context is cancelled.
func (b *RedisBridge) Run(ctx context.Context, channels []string) error {
	return b.subscriber.Subscribe(ctx, channels, func(channel string, payload []byte) {
		b.hub.Broadcast(channel, payload)
	})
}
