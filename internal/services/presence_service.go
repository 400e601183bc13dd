package services

import (
	"context"
	"time"

	"tomodachi/internal/domain/user"
	"tomodachi/internal/events"
	"tomodachi/internal/redis"
	"tomodachi/internal/repository"
	"tomodachi/pkg/logger"

	"github.com/google/uuid"
)

// PresenceMirror is the Redis-side presence view. Its entries expire on
// their own, which is what catches clients that died without writing their
// offline marker.
type PresenceMirror interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string, lastSeen time.Time) error
	GetMultiplePresence(ctx context.Context, userIDs []string) (map[string]*redis.PresenceStatus, error)
}

// PresenceService keeps the durable profile flags and the Redis mirror in
// step. The Postgres row is the record other users read; Redis carries the
// TTL that catches clients which died without saying goodbye.
type PresenceService struct {
	userRepo repository.UserRepository
	store    PresenceMirror
	cache    *redis.CacheStore
	bus      *events.Bus
	log      *logger.Logger
}

func NewPresenceService(userRepo repository.UserRepository, store PresenceMirror, cache *redis.CacheStore, bus *events.Bus, log *logger.Logger) *PresenceService {
	return &PresenceService{userRepo: userRepo, store: store, cache: cache, bus: bus, log: log}
}

func (s *PresenceService) SetOnline(ctx context.Context, userID uuid.UUID) error {
	if err := s.userRepo.SetOnline(ctx, userID); err != nil {
		return err
	}
	if err := s.store.SetOnline(ctx, userID.String()); err != nil {
		s.log.Warnf("presence mirror online failed for %s: %v", userID, err)
	}
	s.invalidate(ctx, userID)
	s.publish(ctx, userID, true, time.Time{})
	return nil
}

// Heartbeat rewrites the online marker, refreshing the Redis TTL. The
// Postgres flag is rewritten too so a missed offline write self-heals.
func (s *PresenceService) Heartbeat(ctx context.Context, userID uuid.UUID) error {
	if err := s.userRepo.SetOnline(ctx, userID); err != nil {
		return err
	}
	return s.store.SetOnline(ctx, userID.String())
}

func (s *PresenceService) SetOffline(ctx context.Context, userID uuid.UUID, lastSeen time.Time) error {
	if err := s.userRepo.SetOffline(ctx, userID, lastSeen); err != nil {
		return err
	}
	if err := s.store.SetOffline(ctx, userID.String(), lastSeen); err != nil {
		s.log.Warnf("presence mirror offline failed for %s: %v", userID, err)
	}
	s.invalidate(ctx, userID)
	s.publish(ctx, userID, false, lastSeen)
	return nil
}

// OverlayPresence rewrites each profile's presence fields from the mirror.
// A client that died silently still says online in its profile row until the
// heartbeat self-heal; its mirror entry has already expired and reads as
// offline here. Mirror failures leave the rows' values in place.
func (s *PresenceService) OverlayPresence(ctx context.Context, profiles []user.Profile) []user.Profile {
	if len(profiles) == 0 {
		return profiles
	}

	ids := make([]string, len(profiles))
	for i, p := range profiles {
		ids[i] = p.ID.String()
	}

	statuses, err := s.store.GetMultiplePresence(ctx, ids)
	if err != nil {
		s.log.Warnf("presence mirror read failed: %v", err)
		return profiles
	}

	for i := range profiles {
		status, ok := statuses[profiles[i].ID.String()]
		if !ok {
			continue
		}
		profiles[i].IsOnline = status.IsOnline
		if !status.IsOnline && !status.LastSeen.IsZero() {
			profiles[i].LastSeenAt = status.LastSeen
		}
	}
	return profiles
}

func (s *PresenceService) invalidate(ctx context.Context, userID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateProfile(ctx, userID); err != nil {
		s.log.Warnf("profile cache invalidation failed for %s: %v", userID, err)
	}
}

func (s *PresenceService) publish(ctx context.Context, userID uuid.UUID, online bool, lastSeen time.Time) {
	if s.bus == nil {
		return
	}
	eventType := events.EventTypePresenceOnline
	payload := events.PresencePayload{UserID: userID.String(), IsOnline: online}
	if !online {
		eventType = events.EventTypePresenceOffline
		payload.LastSeen = lastSeen.UTC().Format(time.RFC3339)
	}
	env, err := events.NewEnvelope(eventType, events.AggregateTypePresence, userID.String(), payload)
	if err != nil {
		s.log.Warnf("%s envelope failed for %s: %v", eventType, userID, err)
		return
	}
	channels := []string{
		events.ChannelPresence(userID.String()),
		events.ChannelUser(userID.String()),
	}
	if err := s.bus.Publish(ctx, env, channels...); err != nil {
		s.log.Warnf("%s publish failed for %s: %v", eventType, userID, err)
	}
}
