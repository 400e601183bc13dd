package httpdto

// SendMessageRequest is used for POST /chats/:id/messages
type SendMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

// MessageDTO is one message in API responses.
type MessageDTO struct {
	ID       string `json:"id"`
	ChatID   string `json:"chat_id"`
	SenderID string `json:"sender_id"`
	Text     string `json:"text"`
	SentAt   string `json:"sent_at"`
	Read     bool   `json:"read"`
}
