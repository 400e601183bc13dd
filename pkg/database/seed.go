package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tomodachi/internal/domain/chat"
	"tomodachi/internal/domain/user"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// SeedResult summarizes what SeedDevelopment created.
type SeedResult struct {
	Users    int
	Chats    int
	Messages int
}

var devUsers = []struct {
	Username    string
	DisplayName string
}{
	{"anna", "Anna K"},
	{"anne", "Anne Bell"},
	{"banner", "Bruce Banner"},
	{"zane", "Zane T"},
}

// SeedDevelopment fills the database with a handful of test accounts, one
// chat and a short conversation. Every account's password is "password123".
// Intended for local development only; it refuses nothing and is not
// idempotent beyond the username unique constraint.
func SeedDevelopment(db *sql.DB) (*SeedResult, error) {
	ctx := context.Background()
	result := &SeedResult{}

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(devUsers))
	for _, d := range devUsers {
		u := user.User{
			ID:           uuid.New(),
			Username:     d.Username,
			Email:        fmt.Sprintf("%s@example.com", d.Username),
			PasswordHash: string(hash),
			DisplayName:  d.DisplayName,
		}
		_, err := db.ExecContext(ctx, `
			INSERT INTO users (id, username, email, password_hash, display_name, bio, photo_url, is_online, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, '', '', FALSE, NOW(), NOW())
			ON CONFLICT (username) DO NOTHING`,
			u.ID, u.Username, u.Email, u.PasswordHash, u.DisplayName)
		if err != nil {
			return nil, err
		}
		ids = append(ids, u.ID)
		result.Users++
	}

	chatID := uuid.New()
	pairKey := chat.PairKey(ids[0], ids[1])
	if _, err := db.ExecContext(ctx, `
		INSERT INTO chats (id, pair_key, participant_a, participant_b, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (pair_key) DO NOTHING`,
		chatID, pairKey, ids[0], ids[1]); err != nil {
		return nil, err
	}
	result.Chats++

	texts := []string{"hey!", "hi, how are you?", "good, you?"}
	for i, text := range texts {
		sender := ids[i%2]
		if _, err := db.ExecContext(ctx, `
			INSERT INTO messages (id, chat_id, sender_id, text, sent_at, read)
			VALUES ($1, $2, $3, $4, $5, FALSE)`,
			uuid.New(), chatID, sender, text, time.Now().Add(time.Duration(i)*time.Minute)); err != nil {
			return nil, err
		}
		result.Messages++
	}

	return result, nil
}
