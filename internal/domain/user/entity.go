package user

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// User represents the users table.
// Username is lowercased at registration and immutable afterwards; it is the
// search key. DisplayName keeps the original casing for UI labels.
type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	PasswordHash string
	DisplayName  string
	Bio          string
	PhotoURL     string
	IsOnline     bool
	LastSeenAt   sql.NullTime
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is the public projection of a user, safe to hand to other clients.
type Profile struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Bio         string    `json:"bio,omitempty"`
	PhotoURL    string    `json:"photo_url,omitempty"`
	IsOnline    bool      `json:"is_online"`
	LastSeenAt  time.Time `json:"last_seen_at,omitempty"`
}

// ToProfile strips credential fields.
func (u User) ToProfile() Profile {
	p := Profile{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Bio:         u.Bio,
		PhotoURL:    u.PhotoURL,
		IsOnline:    u.IsOnline,
	}
	if u.LastSeenAt.Valid {
		p.LastSeenAt = u.LastSeenAt.Time
	}
	return p
}

// UserSession represents the user_sessions table.
type UserSession struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	RefreshTokenHash string
	ExpiresAt        time.Time
	IsRevoked        bool
	CreatedAt        time.Time
}

func (User) TableName() string {
	return "users"
}

func (UserSession) TableName() string {
	return "user_sessions"
}
