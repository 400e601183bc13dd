package redis

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// PresenceStatus represents a user's online status as mirrored in Redis.
// The profile row in Postgres stays the durable record; this mirror exists so
// the TTL can flag clients that died without writing their offline marker.
type PresenceStatus struct {
	UserID   string    `json:"user_id"`
	IsOnline bool      `json:"is_online"`
	LastSeen time.Time `json:"last_seen"`
}

// PresenceStore handles presence tracking in Redis
type PresenceStore struct {
	client *goredis.Client
	ttl    time.Duration
}

const presenceKeyPrefix = "presence:" // JSON presence value per user

// NewPresenceStore creates a new presence store
func NewPresenceStore(client *goredis.Client, ttl time.Duration) *PresenceStore {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &PresenceStore{client: client, ttl: ttl}
}

// SetOnline marks a user as online. Also used as the heartbeat write: every
// call refreshes the TTL, so an entry that outlives its client expires and
// reads as offline.
func (p *PresenceStore) SetOnline(ctx context.Context, userID string) error {
	status := PresenceStatus{
		UserID:   userID,
		IsOnline: true,
		LastSeen: time.Now(),
	}
	data, _ := json.Marshal(status)
	return p.client.Set(ctx, presenceKeyPrefix+userID, data, p.ttl).Err()
}

// SetOffline marks a user as offline with the given last-seen instant.
func (p *PresenceStore) SetOffline(ctx context.Context, userID string, lastSeen time.Time) error {
	status := PresenceStatus{
		UserID:   userID,
		IsOnline: false,
		LastSeen: lastSeen,
	}
	data, _ := json.Marshal(status)
	// Keep offline status longer for last_seen queries
	return p.client.Set(ctx, presenceKeyPrefix+userID, data, 24*time.Hour).Err()
}

// GetPresence gets the presence status of a user. A missing or expired key
// reads as offline with no last-seen.
func (p *PresenceStore) GetPresence(ctx context.Context, userID string) (*PresenceStatus, error) {
	data, err := p.client.Get(ctx, presenceKeyPrefix+userID).Result()
	if err == goredis.Nil {
		return &PresenceStatus{UserID: userID, IsOnline: false}, nil
	}
	if err != nil {
		return nil, err
	}

	var status PresenceStatus
	if err := json.Unmarshal([]byte(data), &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetMultiplePresence gets presence status for multiple users. Every
// requested id gets an entry; missing or unreadable keys read as offline.
func (p *PresenceStore) GetMultiplePresence(ctx context.Context, userIDs []string) (map[string]*PresenceStatus, error) {
	result := make(map[string]*PresenceStatus)
	if len(userIDs) == 0 {
		return result, nil
	}
	if len(userIDs) == 1 {
		status, err := p.GetPresence(ctx, userIDs[0])
		if err != nil {
			return nil, err
		}
		result[userIDs[0]] = status
		return result, nil
	}

	pipe := p.client.Pipeline()
	cmds := make(map[string]*goredis.StringCmd)
	for _, userID := range userIDs {
		cmds[userID] = pipe.Get(ctx, presenceKeyPrefix+userID)
	}

	// Exec reports goredis.Nil when any key is absent; absence is a valid
	// answer here, not a failure.
	if _, err := pipe.Exec(ctx); err != nil && err != goredis.Nil {
		return nil, err
	}

	for userID, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil {
			result[userID] = &PresenceStatus{UserID: userID, IsOnline: false}
			continue
		}
		var status PresenceStatus
		if err := json.Unmarshal([]byte(data), &status); err != nil {
			result[userID] = &PresenceStatus{UserID: userID, IsOnline: false}
			continue
		}
		result[userID] = &status
	}

	return result, nil
}
