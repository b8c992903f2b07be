package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/tasklist-service/internal/auth"
	"github.com/spec-kit/tasklist-service/internal/config"
	"github.com/spec-kit/tasklist-service/internal/domain"
	"github.com/spec-kit/tasklist-service/internal/events"
	"github.com/spec-kit/tasklist-service/internal/repository"
)

// Session flow names used in events and metrics.
const (
	FlowRegister = "register"
	FlowLogin    = "login"
	FlowRefresh  = "refresh"
)

// Auth failures surfaced to handlers.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrMissingFields      = errors.New("name, email and password are required")
	ErrTooManyAttempts    = errors.New("too many failed login attempts")
)

// dummyPassword is hashed once so unknown-email logins cost the same as wrong passwords.
const dummyPassword = "tasklist-service/dummy-password"

// AuthResult is returned by register and login.
type AuthResult struct {
	User   *domain.User
	Tokens domain.TokenPair
}

// AuthService coordinates registration, login, refresh and logout flows.
type AuthService struct {
	users      repository.UserRepository
	uow        repository.UnitOfWork
	sessions   *SessionStore
	tokenMgr   *auth.TokenManager
	throttle   LoginThrottle
	dispatcher events.Dispatcher
	logger     *zap.Logger
	bcryptCost int
	rotate     bool
	dummyHash  string
	now        func() time.Time
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	Users      repository.UserRepository
	UnitOfWork repository.UnitOfWork
	Sessions   *SessionStore
	Tokens     *auth.TokenManager
	Throttle   LoginThrottle
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Now        func() time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) (*AuthService, error) {
	if deps.Users == nil || deps.UnitOfWork == nil || deps.Sessions == nil || deps.Tokens == nil {
		return nil, errors.New("auth service: users, unit of work, sessions and tokens are required")
	}
	dummyHash, err := auth.HashPassword(dummyPassword, cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}

	svc := &AuthService{
		users:      deps.Users,
		uow:        deps.UnitOfWork,
		sessions:   deps.Sessions,
		tokenMgr:   deps.Tokens,
		throttle:   deps.Throttle,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		bcryptCost: cfg.BcryptCost,
		rotate:     cfg.RotateRefresh,
		dummyHash:  dummyHash,
		now:        deps.Now,
	}
	if svc.throttle == nil {
		svc.throttle = NoopThrottle{}
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account and starts its first session. The user row and
// the refresh token row are written in one transaction.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return nil, ErrMissingFields
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{Name: name, Email: email, PasswordHash: hash}
	var pair domain.TokenPair
	err = s.uow.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Users.Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrEmailTaken) {
				return ErrEmailTaken
			}
			return fmt.Errorf("create user: %w", err)
		}
		issued, err := s.issuePair(user.ID)
		if err != nil {
			return err
		}
		pair = issued
		return persistSession(ctx, repos.RefreshTokens, user.ID, pair.RefreshToken, pair.RefreshExpiresAt)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventUserRegistered, user.ID, nil)
	s.publish(ctx, events.EventSessionStarted, user.ID, events.SessionStartedPayload{
		Flow:             FlowRegister,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	})
	return &AuthResult{User: user, Tokens: pair}, nil
}

// Login verifies credentials and starts a new session. Unknown emails and
// wrong passwords are indistinguishable to the caller. clientIP scopes the
// failed-attempt counter.
func (s *AuthService) Login(ctx context.Context, email, password, clientIP string) (*AuthResult, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	if !s.throttle.Allow(ctx, email, clientIP) {
		return nil, ErrTooManyAttempts
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, pgx.ErrNoRows) {
		_ = auth.ComparePassword(s.dummyHash, password)
		s.throttle.RecordFailure(ctx, email, clientIP)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		s.throttle.RecordFailure(ctx, email, clientIP)
		return nil, ErrInvalidCredentials
	}
	s.throttle.Reset(ctx, email, clientIP)

	pair, err := s.issuePair(user.ID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Persist(ctx, user.ID, pair.RefreshToken, pair.RefreshExpiresAt); err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventSessionStarted, user.ID, events.SessionStartedPayload{
		Flow:             FlowLogin,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	})
	return &AuthResult{User: user, Tokens: pair}, nil
}

// Refresh exchanges a live refresh token for a new access token. The store is
// consulted before the signature so revoked tokens fail fast. Unless rotation
// is enabled the same refresh token is handed back.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	session, err := s.sessions.Validate(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	claims, err := s.tokenMgr.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionInvalid, err)
	}
	if claims.UserID() != session.UserID {
		return nil, fmt.Errorf("%w: subject does not match stored session", ErrSessionInvalid)
	}

	access, accessExp, err := s.tokenMgr.IssueAccessToken(session.UserID)
	if err != nil {
		return nil, err
	}
	pair := &domain.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: session.ExpiresAt,
	}

	if s.rotate {
		next, nextExp, err := s.tokenMgr.IssueRefreshToken(session.UserID)
		if err != nil {
			return nil, err
		}
		// The old row is consumed first; of two concurrent refreshes only the
		// one that deletes it may rotate.
		err = s.uow.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
			deleted, err := repos.RefreshTokens.DeleteByToken(ctx, refreshToken)
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("%w: already rotated", ErrSessionInvalid)
			}
			return persistSession(ctx, repos.RefreshTokens, session.UserID, next, nextExp)
		})
		if err != nil {
			return nil, fmt.Errorf("rotate refresh token: %w", err)
		}
		pair.RefreshToken, pair.RefreshExpiresAt = next, nextExp
	}

	s.publish(ctx, events.EventSessionRefreshed, session.UserID, events.SessionRefreshedPayload{Rotated: s.rotate})
	return pair, nil
}

// Logout revokes refreshToken. It succeeds whether or not the token was known.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.sessions.Revoke(ctx, refreshToken); err != nil {
		return err
	}

	var userID string
	if claims, err := s.tokenMgr.VerifyRefreshToken(refreshToken); err == nil {
		userID = claims.UserID()
	}
	s.publish(ctx, events.EventSessionRevoked, userID, nil)
	return nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) issuePair(userID string) (domain.TokenPair, error) {
	access, accessExp, err := s.tokenMgr.IssueAccessToken(userID)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, refreshExp, err := s.tokenMgr.IssueRefreshToken(userID)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return domain.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *AuthService) publish(ctx context.Context, eventType events.EventType, userID string, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		Timestamp: s.now().UTC(),
		Payload:   payload,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(eventType)), zap.Error(err))
	}
}
