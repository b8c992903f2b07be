package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/tasklist-service/pkg/util"
)

const identityKey = "auth_identity"

type identityCtxKey struct{}

// Identity represents the authenticated caller.
type Identity struct {
	UserID string
}

// AuthMiddleware validates bearer access tokens. It never touches the database.
type AuthMiddleware struct {
	tokens *TokenManager
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Handle enforces authentication for protected routes. A missing credential
// yields 401, a presented but unverifiable one yields 403.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	token := bearerToken(c.Get(fiber.HeaderAuthorization))
	if token == "" {
		return apperrors.NewUnauthorized("No token provided")
	}

	claims, err := m.tokens.VerifyAccessToken(token)
	if err != nil {
		return apperrors.NewInvalidToken("Invalid token")
	}

	identity := &Identity{UserID: claims.UserID()}
	c.Locals(identityKey, identity)
	c.SetUserContext(WithIdentity(c.UserContext(), identity))
	return c.Next()
}

// bearerToken returns the credential following the scheme. Credentials sent
// under another scheme are still returned so they fail verification with 403.
func bearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// IdentityFromContext retrieves the authenticated caller.
func IdentityFromContext(c *fiber.Ctx) (*Identity, bool) {
	val := c.Locals(identityKey)
	if val == nil {
		return nil, false
	}
	identity, ok := val.(*Identity)
	return identity, ok
}

// WithIdentity attaches identity to ctx for code below the HTTP layer.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, identity)
}

// IdentityFrom extracts the identity stored by WithIdentity.
func IdentityFrom(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityCtxKey{}).(*Identity)
	return identity, ok && identity != nil
}
