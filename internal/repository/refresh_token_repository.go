package repository

import (
	"context"
	"time"

	"github.com/spec-kit/tasklist-service/internal/domain"
)

// RefreshTokenRepository persists issued refresh tokens.
type RefreshTokenRepository interface {
	// Create inserts one row per issuance; a user may hold any number of rows.
	Create(ctx context.Context, session *domain.Session) error
	// GetActive returns the row for token when its stored expiry is after now,
	// and pgx.ErrNoRows otherwise.
	GetActive(ctx context.Context, token string, now time.Time) (*domain.Session, error)
	// DeleteByToken removes the row for token and reports whether a row existed.
	// Deleting a missing token is not an error.
	DeleteByToken(ctx context.Context, token string) (bool, error)
	// DeleteExpired purges rows whose expiry is at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type refreshTokenRepository struct {
	db DBTX
}

// NewRefreshTokenRepository constructs repository.
func NewRefreshTokenRepository(db DBTX) RefreshTokenRepository {
	return &refreshTokenRepository{db: db}
}

func (r *refreshTokenRepository) Create(ctx context.Context, session *domain.Session) error {
	const query = `
        INSERT INTO refresh_tokens (user_id, token, expires_at)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		session.UserID,
		session.Token,
		session.ExpiresAt,
	).Scan(&session.ID, &session.CreatedAt)
}

func (r *refreshTokenRepository) GetActive(ctx context.Context, token string, now time.Time) (*domain.Session, error) {
	const query = `
        SELECT id, user_id, token, expires_at, created_at
        FROM refresh_tokens WHERE token=$1 AND expires_at > $2`
	var session domain.Session
	if err := r.db.QueryRow(ctx, query, token, now).Scan(
		&session.ID,
		&session.UserID,
		&session.Token,
		&session.ExpiresAt,
		&session.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *refreshTokenRepository) DeleteByToken(ctx context.Context, token string) (bool, error) {
	const query = `DELETE FROM refresh_tokens WHERE token=$1`
	cmd, err := r.db.Exec(ctx, query, token)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *refreshTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM refresh_tokens WHERE expires_at <= $1`
	cmd, err := r.db.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
