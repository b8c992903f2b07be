package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/tasklist-service/internal/api/dto"
	"github.com/spec-kit/tasklist-service/internal/auth"
	"github.com/spec-kit/tasklist-service/internal/config"
	"github.com/spec-kit/tasklist-service/internal/domain"
	"github.com/spec-kit/tasklist-service/internal/service"
	apperrors "github.com/spec-kit/tasklist-service/pkg/util"
)

// RefreshCookieName is the cookie carrying the refresh token in cookie mode.
const RefreshCookieName = "refreshToken"

// SessionHandler exposes register, login, refresh and logout.
type SessionHandler struct {
	auth         *service.AuthService
	delivery     config.DeliveryMode
	cookieSecure bool
}

// NewSessionHandler constructs handler.
func NewSessionHandler(authService *service.AuthService, cfg config.AuthConfig) *SessionHandler {
	delivery := cfg.Delivery
	if delivery == "" {
		delivery = config.DeliveryBody
	}
	return &SessionHandler{auth: authService, delivery: delivery, cookieSecure: cfg.CookieSecure}
}

// Register handles POST /api/auth/register.
func (h *SessionHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" || req.Name == "" {
		return apperrors.NewValidationError("name, email and password are required", nil)
	}

	res, err := h.auth.Register(c.UserContext(), req.Name, req.Email, req.Password)
	if err != nil {
		return mapAuthError(err)
	}
	return h.respondWithTokens(c, http.StatusCreated, res.Tokens, res.User)
}

// Login handles POST /api/auth/login.
func (h *SessionHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	res, err := h.auth.Login(c.UserContext(), req.Email, req.Password, c.IP())
	if err != nil {
		return mapAuthError(err)
	}
	return h.respondWithTokens(c, http.StatusOK, res.Tokens, res.User)
}

// Refresh handles POST /api/auth/refresh.
func (h *SessionHandler) Refresh(c *fiber.Ctx) error {
	token := h.presentedRefreshToken(c)
	if token == "" {
		return apperrors.NewUnauthorized("No token provided")
	}

	pair, err := h.auth.Refresh(c.UserContext(), token)
	if err != nil {
		return mapAuthError(err)
	}
	return h.respondWithTokens(c, http.StatusOK, *pair, nil)
}

// Logout handles POST /api/auth/logout. It always acknowledges unless storage fails.
func (h *SessionHandler) Logout(c *fiber.Ctx) error {
	token := h.presentedRefreshToken(c)
	if err := h.auth.Logout(c.UserContext(), token); err != nil {
		return apperrors.NewInternalError(err)
	}
	if h.delivery == config.DeliveryCookie {
		h.clearRefreshCookie(c)
	}
	return c.JSON(dto.MessageResponse{Message: "Logged out successfully"})
}

// presentedRefreshToken returns "" when no token accompanies the request. In body
// mode the payload is decoded as JSON whatever its Content-Type; an unreadable
// body counts as no token.
func (h *SessionHandler) presentedRefreshToken(c *fiber.Ctx) string {
	if h.delivery == config.DeliveryCookie {
		return c.Cookies(RefreshCookieName)
	}
	body := c.Body()
	if len(body) == 0 {
		return ""
	}
	var req dto.RefreshRequest
	if err := c.App().Config().JSONDecoder(body, &req); err != nil {
		return ""
	}
	return req.Token
}

func (h *SessionHandler) respondWithTokens(c *fiber.Ctx, status int, pair domain.TokenPair, user *domain.User) error {
	resp := dto.TokenResponse{
		AccessToken:     pair.AccessToken,
		AccessExpiresAt: pair.AccessExpiresAt,
	}
	if user != nil {
		resp.User = &dto.UserResponse{ID: user.ID, Name: user.Name, Email: user.Email}
	}

	switch h.delivery {
	case config.DeliveryCookie:
		c.Cookie(h.refreshCookie(pair.RefreshToken, pair.RefreshExpiresAt))
	default:
		resp.RefreshToken = pair.RefreshToken
	}
	return c.Status(status).JSON(resp)
}

func (h *SessionHandler) refreshCookie(value string, expires time.Time) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     RefreshCookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(auth.RefreshTokenTTL / time.Second),
		HTTPOnly: true,
		Secure:   h.cookieSecure,
		SameSite: fiber.CookieSameSiteStrictMode,
	}
}

func (h *SessionHandler) clearRefreshCookie(c *fiber.Ctx) {
	cookie := h.refreshCookie("", time.Unix(0, 0))
	cookie.MaxAge = -1
	c.Cookie(cookie)
}

func mapAuthError(err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return apperrors.NewInvalidCredentials()
	case errors.Is(err, service.ErrSessionInvalid):
		return apperrors.NewInvalidToken("Invalid token")
	case errors.Is(err, service.ErrEmailTaken):
		return apperrors.NewConflict("Email already registered", nil)
	case errors.Is(err, service.ErrMissingFields):
		return apperrors.NewValidationError(err.Error(), nil)
	case errors.Is(err, service.ErrTooManyAttempts):
		return apperrors.NewTooManyRequests("Too many failed login attempts")
	default:
		return apperrors.NewInternalError(err)
	}
}
