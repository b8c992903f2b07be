package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/tasklist-service/internal/domain"
	"github.com/spec-kit/tasklist-service/internal/repository"
)

// maxHierarchyDepth bounds the walk from a leaf to its list (subtask -> task -> list).
const maxHierarchyDepth = 4

// RoleResolver finds the caller's role on the list that owns a resource.
type RoleResolver struct {
	hierarchy   repository.HierarchyRepository
	memberships repository.MembershipRepository
}

// NewRoleResolver constructs a resolver.
func NewRoleResolver(hierarchy repository.HierarchyRepository, memberships repository.MembershipRepository) *RoleResolver {
	return &RoleResolver{hierarchy: hierarchy, memberships: memberships}
}

// Resolve returns userID's role on the list owning ref. Missing resources and
// missing memberships both resolve to domain.RoleNone so that callers cannot
// probe for resources on lists they do not belong to.
func (r *RoleResolver) Resolve(ctx context.Context, userID string, ref domain.ResourceRef) (domain.Role, error) {
	listID, err := r.OwningList(ctx, ref)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.RoleNone, nil
	}
	if err != nil {
		return domain.RoleNone, err
	}

	role, err := r.memberships.GetRole(ctx, listID, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.RoleNone, nil
	}
	if err != nil {
		return domain.RoleNone, fmt.Errorf("membership lookup for list %s: %w", listID, err)
	}
	return role, nil
}

// OwningList follows parent links from ref until it reaches a list.
func (r *RoleResolver) OwningList(ctx context.Context, ref domain.ResourceRef) (string, error) {
	current := ref
	for hops := 0; current.Kind != domain.KindList; hops++ {
		if hops >= maxHierarchyDepth {
			return "", fmt.Errorf("resolve %s: hierarchy deeper than %d", ref, maxHierarchyDepth)
		}
		parent, err := r.hierarchy.Parent(ctx, current)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return "", err
			}
			return "", fmt.Errorf("resolve parent of %s: %w", current, err)
		}
		current = parent
	}
	return current.ID, nil
}
