package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tomodachi/internal/domain/user"
	tomodachi_errors "tomodachi/pkg/errors"

	"github.com/google/uuid"
)

type PostgresUserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) UserRepository {
	return &PostgresUserRepository{db: db}
}

const userColumns = `id, username, email, password_hash, display_name, bio, photo_url, is_online, last_seen_at, created_at, updated_at`

func (r *PostgresUserRepository) Create(ctx context.Context, u *user.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.DisplayName, u.Bio, u.PhotoURL,
		u.IsOnline, u.LastSeenAt, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return tomodachi_errors.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *PostgresUserRepository) GetByUsername(ctx context.Context, username string) (user.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (r *PostgresUserRepository) getOne(ctx context.Context, query string, arg interface{}) (user.User, error) {
	var u user.User
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.DisplayName, &u.Bio, &u.PhotoURL,
		&u.IsOnline, &u.LastSeenAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, tomodachi_errors.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *PostgresUserRepository) UpdateProfile(ctx context.Context, id uuid.UUID, displayName, bio, photoURL string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET display_name = $2, bio = $3, photo_url = $4, updated_at = NOW()
		WHERE id = $1`,
		id, displayName, bio, photoURL)
	if err != nil {
		return err
	}
	return requireRows(res)
}

func (r *PostgresUserRepository) SetOnline(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET is_online = TRUE, updated_at = NOW()
		WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRows(res)
}

func (r *PostgresUserRepository) SetOffline(ctx context.Context, id uuid.UUID, lastSeen time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET is_online = FALSE, last_seen_at = $2, updated_at = NOW()
		WHERE id = $1`, id, lastSeen)
	if err != nil {
		return err
	}
	return requireRows(res)
}

func (r *PostgresUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRows(res)
}

const profileColumns = `id, username, display_name, bio, photo_url, is_online, last_seen_at`

func (r *PostgresUserRepository) UsernameRange(ctx context.Context, from string, limit int) ([]user.Profile, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+profileColumns+` FROM users
		WHERE username >= $1
		ORDER BY username ASC
		LIMIT $2`, from, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProfiles(rows)
}

func (r *PostgresUserRepository) BrowseProfiles(ctx context.Context, limit int) ([]user.Profile, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+profileColumns+` FROM users
		ORDER BY username ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProfiles(rows)
}

func scanProfiles(rows *sql.Rows) ([]user.Profile, error) {
	var profiles []user.Profile
	for rows.Next() {
		var p user.Profile
		var lastSeen sql.NullTime
		if err := rows.Scan(&p.ID, &p.Username, &p.DisplayName, &p.Bio, &p.PhotoURL, &p.IsOnline, &lastSeen); err != nil {
			return nil, err
		}
		if lastSeen.Valid {
			p.LastSeenAt = lastSeen.Time
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (r *PostgresUserRepository) CreateSession(ctx context.Context, s *user.UserSession) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_sessions (id, user_id, refresh_token_hash, expires_at, is_revoked, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.UserID, s.RefreshTokenHash, s.ExpiresAt, s.IsRevoked, s.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return tomodachi_errors.ErrAlreadyExists
	}
	return err
}

func (r *PostgresUserRepository) GetSessionByID(ctx context.Context, id uuid.UUID) (user.UserSession, error) {
	var s user.UserSession
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, refresh_token_hash, expires_at, is_revoked, created_at
		FROM user_sessions WHERE id = $1`, id).Scan(
		&s.ID, &s.UserID, &s.RefreshTokenHash, &s.ExpiresAt, &s.IsRevoked, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.UserSession{}, tomodachi_errors.ErrNotFound
		}
		return user.UserSession{}, err
	}
	return s, nil
}

func (r *PostgresUserRepository) UpdateSession(ctx context.Context, s user.UserSession) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE user_sessions SET refresh_token_hash = $2, expires_at = $3, is_revoked = $4
		WHERE id = $1`,
		s.ID, s.RefreshTokenHash, s.ExpiresAt, s.IsRevoked)
	if err != nil {
		return err
	}
	return requireRows(res)
}

func (r *PostgresUserRepository) RevokeSession(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `UPDATE user_sessions SET is_revoked = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRows(res)
}

func (r *PostgresUserRepository) RevokeAllUserSessions(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `UPDATE user_sessions SET is_revoked = TRUE WHERE user_id = $1`, userID)
	return err
}

func requireRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return tomodachi_errors.ErrNotFound
	}
	return nil
}
