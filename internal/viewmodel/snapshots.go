package viewmodel

import (
	"context"

	"tomodachi/internal/domain"
	"tomodachi/internal/domain/user"

	"github.com/google/uuid"
)

// LastMessageSnapshot is the denormalized tail of a chat.
type LastMessageSnapshot struct {
	Text      string           `json:"text"`
	SenderID  uuid.UUID        `json:"sender_id"`
	Timestamp domain.Timestamp `json:"timestamp"`
	Read      bool             `json:"read"`
}

// ChatSnapshot is one chat as seen from the subscribing user's side:
// RecipientID is always the other participant.
type ChatSnapshot struct {
	ID          uuid.UUID            `json:"id"`
	RecipientID uuid.UUID            `json:"recipient_id"`
	UpdatedAt   domain.Timestamp     `json:"updated_at"`
	LastMessage *LastMessageSnapshot `json:"last_message,omitempty"`
}

// MessageSnapshot is one confirmed message within a chat.
type MessageSnapshot struct {
	ID        uuid.UUID        `json:"id"`
	SenderID  uuid.UUID        `json:"sender_id"`
	Text      string           `json:"text"`
	Timestamp domain.Timestamp `json:"timestamp"`
	Read      bool             `json:"read"`
}

// ChatFeed pushes full chat-list snapshots for one user. The callback
// receives the complete current list on every change.
type ChatFeed interface {
	SubscribeChats(ctx context.Context, userID uuid.UUID, fn func([]ChatSnapshot)) (Subscription, error)
}

// ProfileFeed pushes profile snapshots for one user.
type ProfileFeed interface {
	SubscribeProfile(ctx context.Context, userID uuid.UUID, fn func(user.Profile)) (Subscription, error)
}

// MessageFeed pushes full message-list snapshots for one chat, ordered by
// timestamp ascending.
type MessageFeed interface {
	SubscribeMessages(ctx context.Context, actorID, chatID uuid.UUID, fn func([]MessageSnapshot)) (Subscription, error)
}

// Directory serves the search passes. The user repository satisfies it.
type Directory interface {
	UsernameRange(ctx context.Context, from string, limit int) ([]user.Profile, error)
	BrowseProfiles(ctx context.Context, limit int) ([]user.Profile, error)
}

// ChatWriter is the write side the chat window needs: chat creation, message
// sends and read receipts.
type ChatWriter interface {
	EnsureChat(ctx context.Context, actorID, recipientID uuid.UUID) (uuid.UUID, error)
	SendMessage(ctx context.Context, actorID, chatID uuid.UUID, text string) error
	MarkRead(ctx context.Context, actorID, chatID, messageID uuid.UUID) error
}
