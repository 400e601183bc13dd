package services

import (
	"context"
	"strings"

	"tomodachi/internal/domain/chat"
	"tomodachi/internal/events"
	"tomodachi/internal/repository"
	tomodachi_errors "tomodachi/pkg/errors"
	"tomodachi/pkg/logger"

	"github.com/google/uuid"
)

const maxMessageLength = 4096

type MessageService struct {
	messageRepo repository.MessageRepository
	chatRepo    repository.ChatRepository
	bus         *events.Bus
	log         *logger.Logger
}

func NewMessageService(messageRepo repository.MessageRepository, chatRepo repository.ChatRepository, bus *events.Bus, log *logger.Logger) *MessageService {
	return &MessageService{messageRepo: messageRepo, chatRepo: chatRepo, bus: bus, log: log}
}

// Send stores the message and announces it on the chat channel plus both
// participants' user channels. The repository refreshes the chat's
// last-message snapshot in the same transaction as the insert; the stored
// message carries the server-assigned timestamp.
func (s *MessageService) Send(ctx context.Context, senderID, chatID uuid.UUID, text string) (chat.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" || len(text) > maxMessageLength {
		return chat.Message{}, tomodachi_errors.ErrInvalidInput
	}

	c, err := s.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return chat.Message{}, err
	}
	if !c.Has(senderID) {
		return chat.Message{}, tomodachi_errors.ErrForbidden
	}

	m := &chat.Message{
		ID:       uuid.New(),
		ChatID:   chatID,
		SenderID: senderID,
		Text:     text,
	}
	if err := s.messageRepo.Create(ctx, m); err != nil {
		return chat.Message{}, err
	}

	s.announce(ctx, events.EventTypeMessageNew, c, *m)
	return *m, nil
}

// ListByChat returns the chat's messages oldest first.
func (s *MessageService) ListByChat(ctx context.Context, actorID, chatID uuid.UUID) ([]chat.Message, error) {
	c, err := s.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !c.Has(actorID) {
		return nil, tomodachi_errors.ErrForbidden
	}
	return s.messageRepo.ListByChat(ctx, chatID)
}

// MarkRead flips the read flag on a message the actor received. Senders
// cannot mark their own messages; already-read messages are a no-op.
func (s *MessageService) MarkRead(ctx context.Context, actorID, chatID, messageID uuid.UUID) error {
	c, err := s.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return err
	}
	if !c.Has(actorID) {
		return tomodachi_errors.ErrForbidden
	}

	m, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if m.ChatID != chatID {
		return tomodachi_errors.ErrNotFound
	}
	if m.SenderID == actorID {
		return tomodachi_errors.ErrForbidden
	}
	if m.Read {
		return nil
	}

	if err := s.messageRepo.MarkRead(ctx, chatID, messageID); err != nil {
		return err
	}

	m.Read = true
	s.announce(ctx, events.EventTypeMessageRead, c, m)
	return nil
}

func (s *MessageService) announce(ctx context.Context, eventType string, c chat.Chat, m chat.Message) {
	if s.bus == nil {
		return
	}
	env, err := events.NewEnvelope(eventType, events.AggregateTypeMessage, m.ID.String(),
		events.MessagePayload{
			MessageID: m.ID.String(),
			ChatID:    m.ChatID.String(),
			SenderID:  m.SenderID.String(),
		})
	if err != nil {
		s.log.Warnf("%s envelope failed for %s: %v", eventType, m.ID, err)
		return
	}
	channels := []string{
		events.ChannelChat(c.ID.String()),
		events.ChannelUser(c.ParticipantA.String()),
		events.ChannelUser(c.ParticipantB.String()),
	}
	if err := s.bus.Publish(ctx, env, channels...); err != nil {
		s.log.Warnf("%s publish failed for %s: %v", eventType, m.ID, err)
	}
}
