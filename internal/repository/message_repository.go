package repository

import (
	"context"
	"database/sql"
	"errors"

	"tomodachi/internal/domain/chat"
	tomodachi_errors "tomodachi/pkg/errors"

	"github.com/google/uuid"
)

type PostgresMessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

// Create appends the message and refreshes the parent chat's denormalized
// snapshot in one transaction, so the chat row can never point at a message
// that was not stored. sent_at is assigned by the store, not the client.
func (r *PostgresMessageRepository) Create(ctx context.Context, m *chat.Message) error {
	err := WithTx(ctx, r.db, func(tx DBTX) error {
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO messages (id, chat_id, sender_id, text, sent_at, read)
			VALUES ($1, $2, $3, $4, NOW(), $5)
			RETURNING sent_at`,
			m.ID, m.ChatID, m.SenderID, m.Text, m.Read).Scan(&m.SentAt); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE chats SET
				last_message_text = $2,
				last_message_sender_id = $3,
				last_message_at = $4,
				last_message_read = $5,
				updated_at = $4
			WHERE id = $1`,
			m.ChatID, m.Text, m.SenderID, m.SentAt, m.Read)
		if err != nil {
			return err
		}
		return requireRows(res)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return tomodachi_errors.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *PostgresMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (chat.Message, error) {
	var m chat.Message
	err := r.db.QueryRowContext(ctx, `
		SELECT id, chat_id, sender_id, text, sent_at, read
		FROM messages WHERE id = $1`, id).Scan(
		&m.ID, &m.ChatID, &m.SenderID, &m.Text, &m.SentAt, &m.Read)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return chat.Message{}, tomodachi_errors.ErrNotFound
		}
		return chat.Message{}, err
	}
	return m, nil
}

func (r *PostgresMessageRepository) ListByChat(ctx context.Context, chatID uuid.UUID) ([]chat.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, chat_id, sender_id, text, sent_at, read
		FROM messages
		WHERE chat_id = $1
		ORDER BY sent_at ASC`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []chat.Message
	for rows.Next() {
		var m chat.Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Text, &m.SentAt, &m.Read); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// MarkRead flips the message's read flag and, when the message is still the
// chat's latest, the snapshot's flag too. Both writes share one transaction.
func (r *PostgresMessageRepository) MarkRead(ctx context.Context, chatID, messageID uuid.UUID) error {
	return WithTx(ctx, r.db, func(tx DBTX) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE messages SET read = TRUE
			WHERE id = $1 AND chat_id = $2 AND read = FALSE`, messageID, chatID); err != nil {
			return err
		}
		// Read receipts for older messages must not touch the badge state.
		_, err := tx.ExecContext(ctx, `
			UPDATE chats SET last_message_read = TRUE
			WHERE id = $1
			  AND EXISTS (
				SELECT 1 FROM messages m
				WHERE m.id = $2 AND m.chat_id = $1
				  AND m.sent_at = (SELECT MAX(sent_at) FROM messages WHERE chat_id = $1)
			  )`, chatID, messageID)
		return err
	})
}
