package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Fixed token lifetimes.
const (
	AccessTokenTTL  = 15 * time.Minute
	RefreshTokenTTL = 30 * 24 * time.Hour
)

// ErrInvalidToken covers bad signatures, wrong algorithms, expiry and malformed claims.
var ErrInvalidToken = errors.New("invalid or expired token")

// TokenType separates access tokens from refresh tokens inside the claims.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims describes JWT payload.
type Claims struct {
	Type TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// UserID returns the subject the token was issued to.
func (c *Claims) UserID() string {
	return c.Subject
}

// TokenManager handles issuing and validating access and refresh JWTs.
// Each token type is signed with its own secret.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	now           func() time.Time
}

// TokenOption customizes a TokenManager.
type TokenOption func(*TokenManager)

// WithClock replaces the wall clock used for issuing and verifying tokens.
func WithClock(now func() time.Time) TokenOption {
	return func(tm *TokenManager) {
		if now != nil {
			tm.now = now
		}
	}
}

// NewTokenManager builds a new manager.
func NewTokenManager(accessSecret, refreshSecret string, opts ...TokenOption) (*TokenManager, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("token secrets must not be empty")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	tm := &TokenManager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(tm)
	}
	return tm, nil
}

// IssueAccessToken signs a 15 minute access token for userID.
func (tm *TokenManager) IssueAccessToken(userID string) (string, time.Time, error) {
	return tm.issue(userID, TokenTypeAccess, AccessTokenTTL, tm.accessSecret)
}

// IssueRefreshToken signs a 30 day refresh token for userID.
func (tm *TokenManager) IssueRefreshToken(userID string) (string, time.Time, error) {
	return tm.issue(userID, TokenTypeRefresh, RefreshTokenTTL, tm.refreshSecret)
}

// VerifyAccessToken validates an access token and returns its claims.
func (tm *TokenManager) VerifyAccessToken(token string) (*Claims, error) {
	return tm.verify(token, TokenTypeAccess, tm.accessSecret)
}

// VerifyRefreshToken validates a refresh token signature and expiry.
// It does not consult the session store.
func (tm *TokenManager) VerifyRefreshToken(token string) (*Claims, error) {
	return tm.verify(token, TokenTypeRefresh, tm.refreshSecret)
}

func (tm *TokenManager) issue(userID string, typ TokenType, ttl time.Duration, secret []byte) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, errors.New("token subject required")
	}
	now := tm.now()
	claims := &Claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing %s token: %w", typ, err)
	}
	return tokenString, claims.ExpiresAt.Time, nil
}

func (tm *TokenManager) verify(tokenStr string, typ TokenType, secret []byte) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != typ {
		return nil, fmt.Errorf("%w: expected %s token, got %q", ErrInvalidToken, typ, claims.Type)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}
