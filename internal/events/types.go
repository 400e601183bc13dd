package events

// Event type constants, format: domain.action

// Message events
const (
	EventTypeMessageNew  = "message.new"
	EventTypeMessageRead = "message.read"
)

// Chat events. Row updates from sends and read receipts ride the more
// specific message.* events, so there is no generic chat.updated.
const (
	EventTypeChatCreated = "chat.created"
	EventTypeChatDeleted = "chat.deleted"
)

// Presence events
const (
	EventTypePresenceOnline  = "presence.online"
	EventTypePresenceOffline = "presence.offline"
)

// User events
const (
	EventTypeUserRegistered = "user.registered"
	EventTypeUserUpdated    = "user.updated"
	EventTypeUserDeleted    = "user.deleted"
)

// Aggregate type constants
const (
	AggregateTypeMessage  = "message"
	AggregateTypeChat     = "chat"
	AggregateTypePresence = "presence"
	AggregateTypeUser     = "user"
)

// Redis channel prefixes
const (
	ChannelPrefixChat     = "channel:chat:"
	ChannelPrefixUser     = "channel:user:"
	ChannelPrefixPresence = "channel:presence:"
)

// MessagePayload accompanies message.new and message.read
type MessagePayload struct {
	MessageID string `json:"message_id"`
	ChatID    string `json:"chat_id"`
	SenderID  string `json:"sender_id"`
}

// ChatPayload accompanies chat.* events
type ChatPayload struct {
	ChatID       string `json:"chat_id"`
	ParticipantA string `json:"participant_a"`
	ParticipantB string `json:"participant_b"`
}

// PresencePayload accompanies presence.* events
type PresencePayload struct {
	UserID   string `json:"user_id"`
	IsOnline bool   `json:"is_online"`
	LastSeen string `json:"last_seen,omitempty"`
}

// UserPayload accompanies user.* events
type UserPayload struct {
	UserID string `json:"user_id"`
}
