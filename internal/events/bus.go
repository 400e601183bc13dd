package events

import (
	"context"
	"encoding/json"
)

// Publisher is the write half of the event bus. The Redis publisher
// satisfies it.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Subscriber is the read half. The Redis pattern subscriber satisfies it.
type Subscriber interface {
	Subscribe(ctx context.Context, channels []string, handler func(channel string, payload []byte)) error
}

// Bus fans envelopes out to Redis channels. Services publish through it;
// websocket bridges and view-model feeds subscribe on the other side.
type Bus struct {
	pub Publisher
}

func NewBus(pub Publisher) *Bus {
	return &Bus{pub: pub}
}

// Publish sends the envelope to every listed channel. The first publish
// error aborts the remaining channels.
func (b *Bus) Publish(ctx context.Context, env Envelope, channels ...string) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	for _, ch := range channels {
		if err := b.pub.Publish(ctx, ch, data); err != nil {
			return err
		}
	}
	return nil
}
