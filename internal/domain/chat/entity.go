package chat

import (
	"database/sql"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Chat represents the chats table: a two-participant conversation.
// Participant order carries no meaning. PairKey is derived from the sorted
// participant ids, so creating a chat for the same pair is a keyed idempotent
// write instead of a racy lookup-then-insert.
type Chat struct {
	ID           uuid.UUID
	PairKey      string
	ParticipantA uuid.UUID
	ParticipantB uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// Denormalized snapshot of the latest message, kept in sync on send
	// and on read-receipt of the latest message.
	LastMessageText     sql.NullString
	LastMessageSenderID uuid.NullUUID
	LastMessageAt       sql.NullTime
	LastMessageRead     sql.NullBool
}

// Message represents the messages table, scoped under a chat. Append-only;
// the only post-creation mutation is flipping Read from false to true.
type Message struct {
	ID       uuid.UUID
	ChatID   uuid.UUID
	SenderID uuid.UUID
	Text     string
	SentAt   time.Time
	Read     bool
}

// PairKey returns the deterministic key for an unordered participant pair.
func PairKey(a, b uuid.UUID) string {
	ids := []string{a.String(), b.String()}
	sort.Strings(ids)
	return strings.Join(ids, ":")
}

// Other returns the participant that is not the given user.
func (c Chat) Other(userID uuid.UUID) uuid.UUID {
	if c.ParticipantA == userID {
		return c.ParticipantB
	}
	return c.ParticipantA
}

// Has reports whether the user participates in the chat.
func (c Chat) Has(userID uuid.UUID) bool {
	return c.ParticipantA == userID || c.ParticipantB == userID
}

func (Chat) TableName() string {
	return "chats"
}

func (Message) TableName() string {
	return "messages"
}
