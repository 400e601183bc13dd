package websocket

import (
	"context"
	"errors"
	"strings"

	"tomodachi/internal/domain/chat"
	"tomodachi/internal/events"
	"tomodachi/internal/repository"
	tomodachi_errors "tomodachi/pkg/errors"

	"github.com/google/uuid"
)

// ChannelAuthorizer handles authorization for WebSocket channel subscriptions
type ChannelAuthorizer struct {
	chatRepo repository.ChatRepository
}

// NewChannelAuthorizer creates a new channel authorizer
func NewChannelAuthorizer(chatRepo repository.ChatRepository) *ChannelAuthorizer {
	return &ChannelAuthorizer{chatRepo: chatRepo}
}

// CanSubscribe checks if a user is authorized to subscribe to a channel
func (a *ChannelAuthorizer) CanSubscribe(ctx context.Context, userID string, channel string) (bool, error) {
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return false, nil
	}

	// User's own channels - always allowed
	if channel == events.ChannelUser(userID) || channel == events.ChannelPresence(userID) {
		return true, nil
	}

	// Chat channels - only participants
	if strings.HasPrefix(channel, events.ChannelPrefixChat) {
		chatID, err := uuid.Parse(strings.TrimPrefix(channel, events.ChannelPrefixChat))
		if err != nil {
			return false, nil
		}
		c, err := a.chatRepo.GetByID(ctx, chatID)
		if err != nil {
			if errors.Is(err, tomodachi_errors.ErrNotFound) {
				return false, nil
			}
			return false, err
		}
		return c.Has(userUUID), nil
	}

	// Presence channels for other users - only when a chat links them
	if strings.HasPrefix(channel, events.ChannelPrefixPresence) {
		targetID, err := uuid.Parse(strings.TrimPrefix(channel, events.ChannelPrefixPresence))
		if err != nil {
			return false, nil
		}
		return a.sharesChat(ctx, userUUID, targetID)
	}

	// Default deny
	return false, nil
}

func (a *ChannelAuthorizer) sharesChat(ctx context.Context, userID, targetID uuid.UUID) (bool, error) {
	_, err := a.chatRepo.GetByPairKey(ctx, chat.PairKey(userID, targetID))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, tomodachi_errors.ErrNotFound) {
		return false, nil
	}
	return false, err
}
