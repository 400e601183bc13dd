package viewmodel

import (
	"context"
	"errors"
	"sync"

	"tomodachi/internal/domain"
	"tomodachi/internal/domain/chat"
	"tomodachi/internal/domain/user"
	"tomodachi/internal/events"
	"tomodachi/internal/services"
	"tomodachi/pkg/logger"

	"github.com/google/uuid"
)

// Feeds implements the live snapshot feeds over the service layer and the
// Redis event stream. Each subscription pushes an initial snapshot, then
// re-queries and pushes again whenever an invalidation event arrives on the
// watched channel. Pushes always carry the full current state.
type Feeds struct {
	chats    *services.ChatService
	users    *services.UserService
	messages *services.MessageService
	sub      events.Subscriber
	log      *logger.Logger
}

func NewFeeds(chats *services.ChatService, users *services.UserService, messages *services.MessageService, sub events.Subscriber, log *logger.Logger) *Feeds {
	return &Feeds{chats: chats, users: users, messages: messages, sub: sub, log: log}
}

// SubscribeChats watches the user's channel and pushes the full chat list on
// every chat or message event.
func (f *Feeds) SubscribeChats(ctx context.Context, userID uuid.UUID, fn func([]ChatSnapshot)) (Subscription, error) {
	query := func(ctx context.Context) error {
		list, err := f.chats.ListForUser(ctx, userID)
		if err != nil {
			return err
		}
		snapshot := make([]ChatSnapshot, 0, len(list))
		for _, c := range list {
			snapshot = append(snapshot, chatToSnapshot(c, userID))
		}
		fn(snapshot)
		return nil
	}
	return f.watch(ctx, []string{events.ChannelUser(userID.String())}, query)
}

// SubscribeProfile watches one user's channel and pushes their profile on
// every profile or presence event.
func (f *Feeds) SubscribeProfile(ctx context.Context, userID uuid.UUID, fn func(user.Profile)) (Subscription, error) {
	query := func(ctx context.Context) error {
		p, err := f.users.GetProfile(ctx, userID)
		if err != nil {
			return err
		}
		fn(p)
		return nil
	}
	return f.watch(ctx, []string{events.ChannelUser(userID.String())}, query)
}

// SubscribeMessages watches one chat's channel and pushes its full ordered
// message list on every message event.
func (f *Feeds) SubscribeMessages(ctx context.Context, actorID, chatID uuid.UUID, fn func([]MessageSnapshot)) (Subscription, error) {
	query := func(ctx context.Context) error {
		list, err := f.messages.ListByChat(ctx, actorID, chatID)
		if err != nil {
			return err
		}
		snapshot := make([]MessageSnapshot, 0, len(list))
		for _, m := range list {
			snapshot = append(snapshot, MessageSnapshot{
				ID:        m.ID,
				SenderID:  m.SenderID,
				Text:      m.Text,
				Timestamp: domain.FromTime(m.SentAt),
				Read:      m.Read,
			})
		}
		fn(snapshot)
		return nil
	}
	return f.watch(ctx, []string{events.ChannelChat(chatID.String())}, query)
}

// watch pushes one initial snapshot, then re-queries on every event until
// the subscription is closed. Re-query failures are logged and the
// subscription stays up; the next event retries.
func (f *Feeds) watch(ctx context.Context, channels []string, query func(context.Context) error) (Subscription, error) {
	if err := query(ctx); err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	var once sync.Once

	go func() {
		err := f.sub.Subscribe(subCtx, channels, func(channel string, payload []byte) {
			if err := query(subCtx); err != nil && subCtx.Err() == nil {
				f.log.Warnf("feed re-query failed on %s: %v", channel, err)
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) && subCtx.Err() == nil {
			f.log.Warnf("feed subscription on %v ended: %v", channels, err)
		}
	}()

	return subscriptionFunc(func() {
		once.Do(cancel)
	}), nil
}

func chatToSnapshot(c chat.Chat, me uuid.UUID) ChatSnapshot {
	s := ChatSnapshot{
		ID:          c.ID,
		RecipientID: c.Other(me),
		UpdatedAt:   domain.FromTime(c.UpdatedAt),
	}
	if c.LastMessageText.Valid && c.LastMessageSenderID.Valid && c.LastMessageAt.Valid {
		s.LastMessage = &LastMessageSnapshot{
			Text:      c.LastMessageText.String,
			SenderID:  c.LastMessageSenderID.UUID,
			Timestamp: domain.FromTime(c.LastMessageAt.Time),
			Read:      c.LastMessageRead.Valid && c.LastMessageRead.Bool,
		}
	}
	return s
}
