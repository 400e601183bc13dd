package viewmodel

import (
	"context"

	"tomodachi/internal/services"

	"github.com/google/uuid"
)

// ServiceWriter adapts the service layer to the ChatWriter interface the
// chat window drives.
type ServiceWriter struct {
	chats    *services.ChatService
	messages *services.MessageService
}

func NewServiceWriter(chats *services.ChatService, messages *services.MessageService) *ServiceWriter {
	return &ServiceWriter{chats: chats, messages: messages}
}

func (w *ServiceWriter) EnsureChat(ctx context.Context, actorID, recipientID uuid.UUID) (uuid.UUID, error) {
	c, err := w.chats.EnsureDirectChat(ctx, actorID, recipientID)
	if err != nil {
		return uuid.Nil, err
	}
	return c.ID, nil
}

func (w *ServiceWriter) SendMessage(ctx context.Context, actorID, chatID uuid.UUID, text string) error {
	_, err := w.messages.Send(ctx, actorID, chatID, text)
	return err
}

func (w *ServiceWriter) MarkRead(ctx context.Context, actorID, chatID, messageID uuid.UUID) error {
	return w.messages.MarkRead(ctx, actorID, chatID, messageID)
}
