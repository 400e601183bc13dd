package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, time.Second, 5*time.Millisecond)
}

func TestHubRegisterAndUnregister(t *testing.T) {
	hub := startHub(t)
	client := NewClient(nil, "user-1")

	hub.Register(client)
	waitFor(t, func() bool { return hub.GetClientCount() == 1 })

	hub.Unregister(client)
	waitFor(t, func() bool { return hub.GetClientCount() == 0 })

	// The send channel is closed on removal.
	_, open := <-client.Send
	assert.False(t, open)
}

func TestHubUnregisterUnknownClientIsHarmless(t *testing.T) {
	hub := startHub(t)
	client := NewClient(nil, "user-1")

	hub.Unregister(client)
	waitFor(t, func() bool { return hub.GetClientCount() == 0 })

	// Registering afterwards still works; the earlier unregister was a no-op.
	hub.Register(client)
	waitFor(t, func() bool { return hub.GetClientCount() == 1 })
}

func TestHubBroadcastReachesSubscribersOnly(t *testing.T) {
	hub := startHub(t)
	subscribed := NewClient(nil, "user-1")
	bystander := NewClient(nil, "user-2")

	hub.Register(subscribed)
	hub.Register(bystander)
	hub.Subscribe(subscribed, "channel:chat:42")
	waitFor(t, func() bool { return hub.GetChannelSubscriberCount("channel:chat:42") == 1 })

	hub.Broadcast("channel:chat:42", []byte("payload"))

	select {
	case msg := <-subscribed.Send:
		assert.Equal(t, "payload", string(msg))
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the broadcast")
	}

	select {
	case <-bystander.Send:
		t.Fatal("bystander must not receive the broadcast")
	default:
	}
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	hub := startHub(t)
	client := NewClient(nil, "user-1")

	hub.Register(client)
	hub.Subscribe(client, "channel:user:7")
	waitFor(t, func() bool { return hub.GetChannelSubscriberCount("channel:user:7") == 1 })

	hub.Unsubscribe(client, "channel:user:7")
	waitFor(t, func() bool { return hub.GetChannelSubscriberCount("channel:user:7") == 0 })

	hub.Broadcast("channel:user:7", []byte("late"))
	select {
	case <-client.Send:
		t.Fatal("unsubscribed client must not receive broadcasts")
	default:
	}
}

func TestHubBroadcastToUserHitsEveryConnection(t *testing.T) {
	hub := startHub(t)
	first := NewClient(nil, "user-1")
	second := NewClient(nil, "user-1")
	other := NewClient(nil, "user-2")

	hub.Register(first)
	hub.Register(second)
	hub.Register(other)
	waitFor(t, func() bool { return hub.GetClientCount() == 3 })

	hub.BroadcastToUser("user-1", []byte("hi"))

	for _, c := range []*Client{first, second} {
		select {
		case msg := <-c.Send:
			assert.Equal(t, "hi", string(msg))
		case <-time.After(time.Second):
			t.Fatal("connection for user-1 missed the fanout")
		}
	}
	select {
	case <-other.Send:
		t.Fatal("other user must not receive the fanout")
	default:
	}
}

func TestHubUnregisterCleansUpSubscriptions(t *testing.T) {
	hub := startHub(t)
	client := NewClient(nil, "user-1")

	hub.Register(client)
	hub.Subscribe(client, "channel:chat:9")
	hub.Subscribe(client, "channel:presence:9")
	waitFor(t, func() bool {
		return hub.GetChannelSubscriberCount("channel:chat:9") == 1 &&
			hub.GetChannelSubscriberCount("channel:presence:9") == 1
	})

	hub.Unregister(client)
	waitFor(t, func() bool {
		return hub.GetChannelSubscriberCount("channel:chat:9") == 0 &&
			hub.GetChannelSubscriberCount("channel:presence:9") == 0
	})
}
