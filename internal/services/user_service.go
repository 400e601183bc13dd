package services

import (
	"context"
	"strings"

	"tomodachi/internal/domain/user"
	"tomodachi/internal/events"
	"tomodachi/internal/redis"
	"tomodachi/internal/repository"
	tomodachi_errors "tomodachi/pkg/errors"
	"tomodachi/pkg/logger"

	"github.com/google/uuid"
)

type UserService struct {
	repo  repository.UserRepository
	cache *redis.CacheStore
	bus   *events.Bus
	log   *logger.Logger
}

func NewUserService(repo repository.UserRepository, cache *redis.CacheStore, bus *events.Bus, log *logger.Logger) *UserService {
	return &UserService{repo: repo, cache: cache, bus: bus, log: log}
}

// UpdateProfileInput carries the mutable profile fields. A nil field means
// "leave unchanged"; an empty string clears the field.
type UpdateProfileInput struct {
	DisplayName *string
	Bio         *string
	PhotoURL    *string
	Username    *string // rejected, kept so handlers can report the attempt
}

func (s *UserService) GetProfile(ctx context.Context, userID uuid.UUID) (user.Profile, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetProfile(ctx, userID); err == nil && cached != nil {
			return *cached, nil
		}
	}

	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return user.Profile{}, err
	}

	p := u.ToProfile()
	if s.cache != nil {
		if err := s.cache.SetProfile(ctx, p); err != nil {
			s.log.Warnf("profile cache write failed for %s: %v", userID, err)
		}
	}
	return p, nil
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (user.Profile, error) {
	u, err := s.repo.GetByUsername(ctx, strings.ToLower(username))
	if err != nil {
		return user.Profile{}, err
	}
	return u.ToProfile(), nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, in UpdateProfileInput) (user.Profile, error) {
	if in.Username != nil {
		return user.Profile{}, tomodachi_errors.ErrImmutableField
	}

	current, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return user.Profile{}, err
	}

	displayName := current.DisplayName
	bio := current.Bio
	photoURL := current.PhotoURL
	if in.DisplayName != nil {
		displayName = strings.TrimSpace(*in.DisplayName)
	}
	if in.Bio != nil {
		bio = *in.Bio
	}
	if in.PhotoURL != nil {
		photoURL = *in.PhotoURL
	}

	if displayName == "" {
		return user.Profile{}, tomodachi_errors.ErrInvalidInput
	}
	if len(displayName) > 64 || len(bio) > 512 {
		return user.Profile{}, tomodachi_errors.ErrInvalidInput
	}

	if err := s.repo.UpdateProfile(ctx, userID, displayName, bio, photoURL); err != nil {
		return user.Profile{}, err
	}

	s.invalidateAndAnnounce(ctx, userID)

	updated, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return user.Profile{}, err
	}
	return updated.ToProfile(), nil
}

// DeleteAccount removes the user row; chats, messages and sessions go with
// it through FK cascades. The caller must have verified the credential.
func (s *UserService) DeleteAccount(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.Delete(ctx, userID); err != nil {
		return err
	}

	if s.cache != nil {
		if err := s.cache.InvalidateProfile(ctx, userID); err != nil {
			s.log.Warnf("profile cache invalidation failed for %s: %v", userID, err)
		}
	}

	if s.bus != nil {
		env, err := events.NewEnvelope(events.EventTypeUserDeleted, events.AggregateTypeUser, userID.String(),
			events.UserPayload{UserID: userID.String()})
		if err == nil {
			if err := s.bus.Publish(ctx, env, events.ChannelUser(userID.String())); err != nil {
				s.log.Warnf("user.deleted publish failed for %s: %v", userID, err)
			}
		}
	}
	return nil
}

func (s *UserService) invalidateAndAnnounce(ctx context.Context, userID uuid.UUID) {
	if s.cache != nil {
		if err := s.cache.InvalidateProfile(ctx, userID); err != nil {
			s.log.Warnf("profile cache invalidation failed for %s: %v", userID, err)
		}
	}

	if s.bus == nil {
		return
	}
	env, err := events.NewEnvelope(events.EventTypeUserUpdated, events.AggregateTypeUser, userID.String(),
		events.UserPayload{UserID: userID.String()})
	if err != nil {
		s.log.Warnf("user.updated envelope failed for %s: %v", userID, err)
		return
	}
	if err := s.bus.Publish(ctx, env, events.ChannelUser(userID.String())); err != nil {
		s.log.Warnf("user.updated publish failed for %s: %v", userID, err)
	}
}
