package auth

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/tasklist-service/internal/domain"
	apperrors "github.com/spec-kit/tasklist-service/pkg/util"
)

const accessKey = "auth_access"

// Decision outcomes reported to a DecisionRecorder.
const (
	OutcomeAllow        = "allow"
	OutcomeNotMember    = "not_member"
	OutcomeInsufficient = "insufficient"
	OutcomeError        = "error"
)

// ResourceLocator extracts the id of the protected resource from a request.
type ResourceLocator func(c *fiber.Ctx) (string, error)

// DecisionRecorder observes authorization outcomes.
type DecisionRecorder interface {
	RecordDecision(action, outcome string)
}

// Access is what the access middleware leaves behind for downstream handlers.
type Access struct {
	Resource domain.ResourceRef
	Role     domain.Role
}

// FromParam reads the id from a route parameter.
func FromParam(name string) ResourceLocator {
	return func(c *fiber.Ctx) (string, error) {
		return validateID(name, c.Params(name))
	}
}

// FromBody reads the id from a top-level string field of the JSON body.
func FromBody(field string) ResourceLocator {
	return func(c *fiber.Ctx) (string, error) {
		raw, err := bodyField(c, field)
		if err != nil {
			return "", err
		}
		return validateID(field, raw)
	}
}

// FromParamOrBody prefers the route parameter and falls back to the body field.
func FromParamOrBody(param, field string) ResourceLocator {
	return func(c *fiber.Ctx) (string, error) {
		if c.Params(param) != "" {
			return FromParam(param)(c)
		}
		return FromBody(field)(c)
	}
}

func bodyField(c *fiber.Ctx, field string) (string, error) {
	body := c.Body()
	if len(body) == 0 {
		return "", nil
	}
	var payload map[string]any
	if err := c.App().Config().JSONDecoder(body, &payload); err != nil {
		return "", apperrors.NewValidationError("invalid request body", nil)
	}
	value, ok := payload[field]
	if !ok || value == nil {
		return "", nil
	}
	str, ok := value.(string)
	if !ok {
		return "", apperrors.NewValidationError(fmt.Sprintf("%s must be a string", field), map[string]any{"field": field})
	}
	return str, nil
}

func validateID(field, raw string) (string, error) {
	if raw == "" {
		return "", apperrors.NewValidationError(fmt.Sprintf("%s is required", field), map[string]any{"field": field})
	}
	if _, err := uuid.Parse(raw); err != nil {
		return "", apperrors.NewValidationError(fmt.Sprintf("%s must be a valid id", field), map[string]any{"field": field})
	}
	return raw, nil
}

// AccessMiddleware resolves the caller's list role and enforces the policy.
type AccessMiddleware struct {
	resolver *RoleResolver
	policy   Policy
	recorder DecisionRecorder
}

// NewAccessMiddleware constructs the middleware. recorder may be nil.
func NewAccessMiddleware(resolver *RoleResolver, policy Policy, recorder DecisionRecorder) *AccessMiddleware {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &AccessMiddleware{resolver: resolver, policy: policy, recorder: recorder}
}

// Policy exposes the active policy.
func (m *AccessMiddleware) Policy() Policy {
	return m.policy
}

// Resolver exposes the role resolver.
func (m *AccessMiddleware) Resolver() *RoleResolver {
	return m.resolver
}

// Require builds a handler that lets the request through only when the caller
// holds one of the roles the policy assigns to action on the list owning the
// located resource. It must run after AuthMiddleware.Handle.
func (m *AccessMiddleware) Require(action Action, kind domain.ResourceKind, locate ResourceLocator) fiber.Handler {
	required, err := m.policy.Required(action)
	if err != nil {
		panic(err)
	}

	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("No token provided")
		}

		id, err := locate(c)
		if err != nil {
			return err
		}

		ref := domain.ResourceRef{Kind: kind, ID: id}
		role, err := m.resolver.Resolve(c.UserContext(), identity.UserID, ref)
		if err != nil {
			m.record(action, OutcomeError)
			return apperrors.NewInternalError(err)
		}

		switch err := Authorize(required, role); {
		case errors.Is(err, ErrNotAMember):
			m.record(action, OutcomeNotMember)
			return apperrors.NewNotAMember("Not a member of this list")
		case errors.Is(err, ErrInsufficientPermission):
			m.record(action, OutcomeInsufficient)
			return apperrors.NewForbidden("Insufficient permissions")
		}

		m.record(action, OutcomeAllow)
		c.Locals(accessKey, &Access{Resource: ref, Role: role})
		return c.Next()
	}
}

func (m *AccessMiddleware) record(action Action, outcome string) {
	if m.recorder != nil {
		m.recorder.RecordDecision(string(action), outcome)
	}
}

// AccessFromContext returns the access decision made for this request.
func AccessFromContext(c *fiber.Ctx) (*Access, bool) {
	access, ok := c.Locals(accessKey).(*Access)
	return access, ok && access != nil
}

// RoleFromContext returns the caller's resolved role, or RoleNone.
func RoleFromContext(c *fiber.Ctx) domain.Role {
	if access, ok := AccessFromContext(c); ok {
		return access.Role
	}
	return domain.RoleNone
}
