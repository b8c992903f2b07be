package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/tasklist-service/internal/domain"
	"github.com/spec-kit/tasklist-service/internal/repository"
)

// ErrSessionInvalid means the refresh token is unknown, revoked, expired or
// fails verification.
var ErrSessionInvalid = errors.New("session invalid or expired")

// SessionStore tracks issued refresh tokens. A token is usable only while a
// row for it exists and its stored expiry lies in the future.
type SessionStore struct {
	tokens repository.RefreshTokenRepository
	now    func() time.Time
}

// NewSessionStore builds a store. now defaults to time.Now.
func NewSessionStore(tokens repository.RefreshTokenRepository, now func() time.Time) *SessionStore {
	if now == nil {
		now = time.Now
	}
	return &SessionStore{tokens: tokens, now: now}
}

// Persist records a freshly issued refresh token.
func (s *SessionStore) Persist(ctx context.Context, userID, token string, expiresAt time.Time) error {
	return persistSession(ctx, s.tokens, userID, token, expiresAt)
}

func persistSession(ctx context.Context, tokens repository.RefreshTokenRepository, userID, token string, expiresAt time.Time) error {
	session := &domain.Session{UserID: userID, Token: token, ExpiresAt: expiresAt}
	if err := tokens.Create(ctx, session); err != nil {
		return fmt.Errorf("persist refresh token: %w", err)
	}
	return nil
}

// Validate returns the stored session for token, or ErrSessionInvalid.
func (s *SessionStore) Validate(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, ErrSessionInvalid
	}
	session, err := s.tokens.GetActive(ctx, token, s.now())
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}
	return session, nil
}

// Revoke deletes the row for token. Revoking an unknown token succeeds.
func (s *SessionStore) Revoke(ctx context.Context, token string) error {
	if _, err := s.tokens.DeleteByToken(ctx, token); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// Sweep purges rows that can no longer validate.
func (s *SessionStore) Sweep(ctx context.Context) (int64, error) {
	n, err := s.tokens.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("sweep refresh tokens: %w", err)
	}
	return n, nil
}
