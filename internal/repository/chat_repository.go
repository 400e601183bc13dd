package repository

import (
	"context"
	"database/sql"
	"errors"

	"tomodachi/internal/domain/chat"
	tomodachi_errors "tomodachi/pkg/errors"

	"github.com/google/uuid"
)

type PostgresChatRepository struct {
	db DBTX
}

func NewChatRepository(db DBTX) ChatRepository {
	return &PostgresChatRepository{db: db}
}

const chatColumns = `id, pair_key, participant_a, participant_b, created_at, updated_at,
	last_message_text, last_message_sender_id, last_message_at, last_message_read`

func (r *PostgresChatRepository) CreateIfAbsent(ctx context.Context, c *chat.Chat) (chat.Chat, bool, error) {
	// ON CONFLICT on the pair key makes concurrent creation from both
	// participants converge on a single row.
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO chats (id, pair_key, participant_a, participant_b, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (pair_key) DO NOTHING`,
		c.ID, c.PairKey, c.ParticipantA, c.ParticipantB, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return chat.Chat{}, false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return chat.Chat{}, false, err
	}

	stored, err := r.GetByPairKey(ctx, c.PairKey)
	if err != nil {
		return chat.Chat{}, false, err
	}
	return stored, affected > 0, nil
}

func (r *PostgresChatRepository) GetByID(ctx context.Context, id uuid.UUID) (chat.Chat, error) {
	return r.getOne(ctx, `SELECT `+chatColumns+` FROM chats WHERE id = $1`, id)
}

func (r *PostgresChatRepository) GetByPairKey(ctx context.Context, pairKey string) (chat.Chat, error) {
	return r.getOne(ctx, `SELECT `+chatColumns+` FROM chats WHERE pair_key = $1`, pairKey)
}

func (r *PostgresChatRepository) getOne(ctx context.Context, query string, arg interface{}) (chat.Chat, error) {
	var c chat.Chat
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&c.ID, &c.PairKey, &c.ParticipantA, &c.ParticipantB, &c.CreatedAt, &c.UpdatedAt,
		&c.LastMessageText, &c.LastMessageSenderID, &c.LastMessageAt, &c.LastMessageRead)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return chat.Chat{}, tomodachi_errors.ErrNotFound
		}
		return chat.Chat{}, err
	}
	return c, nil
}

func (r *PostgresChatRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]chat.Chat, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+chatColumns+` FROM chats
		WHERE participant_a = $1 OR participant_b = $1
		ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []chat.Chat
	for rows.Next() {
		var c chat.Chat
		if err := rows.Scan(
			&c.ID, &c.PairKey, &c.ParticipantA, &c.ParticipantB, &c.CreatedAt, &c.UpdatedAt,
			&c.LastMessageText, &c.LastMessageSenderID, &c.LastMessageAt, &c.LastMessageRead); err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

func (r *PostgresChatRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM chats WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRows(res)
}
