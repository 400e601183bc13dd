package services

import (
	"context"
	"time"

	"tomodachi/internal/domain/chat"
	"tomodachi/internal/events"
	"tomodachi/internal/repository"
	tomodachi_errors "tomodachi/pkg/errors"
	"tomodachi/pkg/logger"

	"github.com/google/uuid"
)

type ChatService struct {
	chatRepo repository.ChatRepository
	userRepo repository.UserRepository
	bus      *events.Bus
	log      *logger.Logger
}

func NewChatService(chatRepo repository.ChatRepository, userRepo repository.UserRepository, bus *events.Bus, log *logger.Logger) *ChatService {
	return &ChatService{chatRepo: chatRepo, userRepo: userRepo, bus: bus, log: log}
}

// EnsureDirectChat returns the single chat for the given pair, creating it
// when absent. The pair key makes this idempotent: two clients racing to
// start the same conversation converge on one row.
func (s *ChatService) EnsureDirectChat(ctx context.Context, actorID, otherID uuid.UUID) (chat.Chat, error) {
	if actorID == uuid.Nil || otherID == uuid.Nil {
		return chat.Chat{}, tomodachi_errors.ErrInvalidInput
	}
	if actorID == otherID {
		return chat.Chat{}, tomodachi_errors.ErrInvalidInput
	}

	if _, err := s.userRepo.GetByID(ctx, otherID); err != nil {
		return chat.Chat{}, err
	}

	now := time.Now()
	candidate := &chat.Chat{
		ID:           uuid.New(),
		PairKey:      chat.PairKey(actorID, otherID),
		ParticipantA: actorID,
		ParticipantB: otherID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	stored, created, err := s.chatRepo.CreateIfAbsent(ctx, candidate)
	if err != nil {
		return chat.Chat{}, err
	}

	if created && s.bus != nil {
		env, err := events.NewEnvelope(events.EventTypeChatCreated, events.AggregateTypeChat, stored.ID.String(),
			events.ChatPayload{
				ChatID:       stored.ID.String(),
				ParticipantA: stored.ParticipantA.String(),
				ParticipantB: stored.ParticipantB.String(),
			})
		if err == nil {
			channels := []string{
				events.ChannelUser(stored.ParticipantA.String()),
				events.ChannelUser(stored.ParticipantB.String()),
			}
			if err := s.bus.Publish(ctx, env, channels...); err != nil {
				s.log.Warnf("chat.created publish failed for %s: %v", stored.ID, err)
			}
		}
	}

	return stored, nil
}

func (s *ChatService) GetForUser(ctx context.Context, actorID, chatID uuid.UUID) (chat.Chat, error) {
	c, err := s.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return chat.Chat{}, err
	}
	if !c.Has(actorID) {
		return chat.Chat{}, tomodachi_errors.ErrForbidden
	}
	return c, nil
}

// ListForUser returns the user's chats newest-activity first.
func (s *ChatService) ListForUser(ctx context.Context, userID uuid.UUID) ([]chat.Chat, error) {
	return s.chatRepo.ListForUser(ctx, userID)
}

func (s *ChatService) Delete(ctx context.Context, actorID, chatID uuid.UUID) error {
	c, err := s.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return err
	}
	if !c.Has(actorID) {
		return tomodachi_errors.ErrForbidden
	}

	if err := s.chatRepo.Delete(ctx, chatID); err != nil {
		return err
	}

	if s.bus != nil {
		env, err := events.NewEnvelope(events.EventTypeChatDeleted, events.AggregateTypeChat, chatID.String(),
			events.ChatPayload{
				ChatID:       chatID.String(),
				ParticipantA: c.ParticipantA.String(),
				ParticipantB: c.ParticipantB.String(),
			})
		if err == nil {
			channels := []string{
				events.ChannelUser(c.ParticipantA.String()),
				events.ChannelUser(c.ParticipantB.String()),
			}
			if err := s.bus.Publish(ctx, env, channels...); err != nil {
				s.log.Warnf("chat.deleted publish failed for %s: %v", chatID, err)
			}
		}
	}
	return nil
}
