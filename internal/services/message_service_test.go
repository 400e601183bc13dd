package services

import (
	"context"
	"strings"
	"testing"

	"tomodachi/internal/domain/chat"
	"tomodachi/internal/events"
	tomodachi_errors "tomodachi/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type messageFixture struct {
	svc      *MessageService
	chatRepo *memChatRepo
	msgRepo  *memMessageRepo
	pub      *memPublisher
	chat     chat.Chat
	a, b     uuid.UUID
}

func newMessageFixture(t *testing.T) *messageFixture {
	t.Helper()
	userRepo := newMemUserRepo()
	chatRepo := newMemChatRepo()
	msgRepo := &memMessageRepo{chats: chatRepo}
	pub := newMemPublisher()

	a := seedUser(t, userRepo, "anna")
	b := seedUser(t, userRepo, "zane")

	chats := NewChatService(chatRepo, userRepo, nil, testLogger())
	c, err := chats.EnsureDirectChat(context.Background(), a, b)
	require.NoError(t, err)

	return &messageFixture{
		svc:      NewMessageService(msgRepo, chatRepo, testBus(pub), testLogger()),
		chatRepo: chatRepo,
		msgRepo:  msgRepo,
		pub:      pub,
		chat:     c,
		a:        a,
		b:        b,
	}
}

func TestSendStoresAndAnnounces(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	m, err := f.svc.Send(ctx, f.a, f.chat.ID, "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", m.Text, "text is trimmed")
	assert.False(t, m.SentAt.IsZero(), "sent_at is server-assigned")

	stored, err := f.msgRepo.ListByChat(ctx, f.chat.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)

	// Snapshot on the chat row follows the send.
	c, err := f.chatRepo.GetByID(ctx, f.chat.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", c.LastMessageText.String)
	assert.Equal(t, f.a, c.LastMessageSenderID.UUID)
	assert.False(t, c.LastMessageRead.Bool)

	// Announced on the chat channel and both user channels.
	assert.Equal(t, 1, f.pub.countFor(events.ChannelChat(f.chat.ID.String())))
	assert.Equal(t, 1, f.pub.countFor(events.ChannelUser(f.a.String())))
	assert.Equal(t, 1, f.pub.countFor(events.ChannelUser(f.b.String())))
}

func TestSendFailureLeavesSnapshotUntouched(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	f.msgRepo.failCreate = assert.AnError
	_, err := f.svc.Send(ctx, f.a, f.chat.ID, "hello")
	require.ErrorIs(t, err, assert.AnError)

	// The insert and the snapshot refresh share a transaction: a failed
	// store must not leave the chat row pointing at a phantom message.
	c, err := f.chatRepo.GetByID(ctx, f.chat.ID)
	require.NoError(t, err)
	assert.False(t, c.LastMessageText.Valid)
	assert.Equal(t, 0, f.pub.countFor(events.ChannelChat(f.chat.ID.String())))
}

func TestSendValidation(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	_, err := f.svc.Send(ctx, f.a, f.chat.ID, "   ")
	assert.ErrorIs(t, err, tomodachi_errors.ErrInvalidInput)

	_, err = f.svc.Send(ctx, f.a, f.chat.ID, strings.Repeat("x", maxMessageLength+1))
	assert.ErrorIs(t, err, tomodachi_errors.ErrInvalidInput)

	_, err = f.svc.Send(ctx, uuid.New(), f.chat.ID, "hi")
	assert.ErrorIs(t, err, tomodachi_errors.ErrForbidden, "non-participants cannot send")

	_, err = f.svc.Send(ctx, f.a, uuid.New(), "hi")
	assert.ErrorIs(t, err, tomodachi_errors.ErrNotFound)
}

func TestListByChatEnforcesMembership(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	_, err := f.svc.Send(ctx, f.a, f.chat.ID, "one")
	require.NoError(t, err)
	_, err = f.svc.Send(ctx, f.b, f.chat.ID, "two")
	require.NoError(t, err)

	list, err := f.svc.ListByChat(ctx, f.b, f.chat.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = f.svc.ListByChat(ctx, uuid.New(), f.chat.ID)
	assert.ErrorIs(t, err, tomodachi_errors.ErrForbidden)
}

func TestMarkReadRules(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	m, err := f.svc.Send(ctx, f.a, f.chat.ID, "hello")
	require.NoError(t, err)

	// The sender cannot mark their own message.
	assert.ErrorIs(t, f.svc.MarkRead(ctx, f.a, f.chat.ID, m.ID), tomodachi_errors.ErrForbidden)

	// Outsiders cannot mark anything.
	assert.ErrorIs(t, f.svc.MarkRead(ctx, uuid.New(), f.chat.ID, m.ID), tomodachi_errors.ErrForbidden)

	// The recipient can; the chat snapshot's read flag follows.
	require.NoError(t, f.svc.MarkRead(ctx, f.b, f.chat.ID, m.ID))
	stored, err := f.msgRepo.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, stored.Read)

	c, err := f.chatRepo.GetByID(ctx, f.chat.ID)
	require.NoError(t, err)
	assert.True(t, c.LastMessageRead.Bool)

	// Marking again is a no-op, not an error.
	assert.NoError(t, f.svc.MarkRead(ctx, f.b, f.chat.ID, m.ID))
}

func TestMarkReadRejectsCrossChatMessage(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	m, err := f.svc.Send(ctx, f.a, f.chat.ID, "hello")
	require.NoError(t, err)

	// A message id addressed through the wrong chat id is not found there.
	otherChat := &chat.Chat{
		ID:           uuid.New(),
		PairKey:      chat.PairKey(f.a, uuid.New()),
		ParticipantA: f.a,
		ParticipantB: f.b,
	}
	stored, created, err := f.chatRepo.CreateIfAbsent(ctx, otherChat)
	require.NoError(t, err)
	require.True(t, created)

	assert.ErrorIs(t, f.svc.MarkRead(ctx, f.b, stored.ID, m.ID), tomodachi_errors.ErrNotFound)
}
