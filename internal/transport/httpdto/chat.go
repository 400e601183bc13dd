package httpdto

// CreateChatRequest is used for POST /chats. Creation is idempotent per
// participant pair: repeating the call returns the existing chat.
type CreateChatRequest struct {
	RecipientID string `json:"recipient_id" binding:"required"`
}

// ChatDTO is one chat in API responses, seen from the requesting user's
// side.
type ChatDTO struct {
	ID          string          `json:"id"`
	RecipientID string          `json:"recipient_id"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
	LastMessage *LastMessageDTO `json:"last_message,omitempty"`
}

// LastMessageDTO is the denormalized last-message snapshot on a chat.
type LastMessageDTO struct {
	Text      string `json:"text"`
	SenderID  string `json:"sender_id"`
	Timestamp string `json:"timestamp"`
	Read      bool   `json:"read"`
}
