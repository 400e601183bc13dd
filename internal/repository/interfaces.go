package repository

import (
	"context"
	"time"

	"tomodachi/internal/domain/chat"
	"tomodachi/internal/domain/user"

	"github.com/google/uuid"
)

// UserRepository owns the users and user_sessions tables.
type UserRepository interface {
	Create(ctx context.Context, u *user.User) error
	GetByID(ctx context.Context, id uuid.UUID) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByUsername(ctx context.Context, username string) (user.User, error)
	// UpdateProfile writes the mutable profile fields. Username is immutable
	// and deliberately absent.
	UpdateProfile(ctx context.Context, id uuid.UUID, displayName, bio, photoURL string) error
	SetOnline(ctx context.Context, id uuid.UUID) error
	SetOffline(ctx context.Context, id uuid.UUID, lastSeen time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error

	// UsernameRange returns profiles whose username is >= from, ordered by
	// username ascending, capped at limit. This is the primary search pass.
	UsernameRange(ctx context.Context, from string, limit int) ([]user.Profile, error)
	// BrowseProfiles returns an unfiltered page for the fallback search pass.
	BrowseProfiles(ctx context.Context, limit int) ([]user.Profile, error)

	CreateSession(ctx context.Context, s *user.UserSession) error
	GetSessionByID(ctx context.Context, id uuid.UUID) (user.UserSession, error)
	UpdateSession(ctx context.Context, s user.UserSession) error
	RevokeSession(ctx context.Context, id uuid.UUID) error
	RevokeAllUserSessions(ctx context.Context, userID uuid.UUID) error
}

// ChatRepository owns the chats table.
type ChatRepository interface {
	// CreateIfAbsent inserts the chat keyed by its pair key and returns the
	// stored row. When a chat for the pair already exists the existing row is
	// returned and created is false.
	CreateIfAbsent(ctx context.Context, c *chat.Chat) (chat.Chat, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (chat.Chat, error)
	GetByPairKey(ctx context.Context, pairKey string) (chat.Chat, error)
	// ListForUser returns every chat the user participates in, ordered by
	// updated_at descending.
	ListForUser(ctx context.Context, userID uuid.UUID) ([]chat.Chat, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// MessageRepository owns the messages table. Writes that change a chat's
// denormalized last-message snapshot carry the snapshot update in the same
// transaction, so the snapshot cannot drift from the message rows.
type MessageRepository interface {
	// Create appends the message, assigns the server timestamp and refreshes
	// the parent chat's snapshot atomically.
	Create(ctx context.Context, m *chat.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (chat.Message, error)
	// ListByChat returns the full ordered history, sent_at ascending.
	ListByChat(ctx context.Context, chatID uuid.UUID) ([]chat.Message, error)
	// MarkRead flips read from false to true, mirroring the flip into the
	// chat snapshot when the message is still the latest one. Flipping an
	// already-read message is a no-op, not an error.
	MarkRead(ctx context.Context, chatID, messageID uuid.UUID) error
}
