package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/tasklist-service/internal/api/dto"
	"github.com/spec-kit/tasklist-service/internal/auth"
	"github.com/spec-kit/tasklist-service/internal/domain"
	apperrors "github.com/spec-kit/tasklist-service/pkg/util"
)

// AccessHandler reports what the caller may do with a resource.
type AccessHandler struct {
	access *auth.AccessMiddleware
}

// NewAccessHandler constructs handler.
func NewAccessHandler(access *auth.AccessMiddleware) *AccessHandler {
	return &AccessHandler{access: access}
}

// Describe GET /api/access/:kind/:id. Callers without a membership get 403
// like any other guarded route.
func (h *AccessHandler) Describe(c *fiber.Ctx) error {
	kind, err := domain.ParseResourceKind(c.Params("kind"))
	if err != nil {
		return apperrors.NewValidationError(err.Error(), map[string]any{"field": "kind"})
	}
	return h.access.Require(auth.ActionRead, kind, auth.FromParam("id"))(c)
}

// Render writes the decision stored by the access middleware.
func (h *AccessHandler) Render(c *fiber.Ctx) error {
	access, ok := auth.AccessFromContext(c)
	if !ok {
		return apperrors.NewForbidden("Insufficient permissions")
	}

	allowed := h.access.Policy().AllowedActions(access.Role)
	actions := make([]string, 0, len(allowed))
	for _, action := range allowed {
		actions = append(actions, string(action))
	}
	return c.JSON(dto.AccessResponse{
		Kind:    string(access.Resource.Kind),
		ID:      access.Resource.ID,
		Role:    string(access.Role),
		Actions: actions,
	})
}
