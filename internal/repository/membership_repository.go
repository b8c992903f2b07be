package repository

import (
	"context"

	"github.com/spec-kit/tasklist-service/internal/domain"
)

// MembershipRepository reads list memberships, the source of truth for list roles.
type MembershipRepository interface {
	// GetRole returns the user's role on the list, or pgx.ErrNoRows without a membership row.
	GetRole(ctx context.Context, listID, userID string) (domain.Role, error)
}

type membershipRepository struct {
	db DBTX
}

// NewMembershipRepository builds repository.
func NewMembershipRepository(db DBTX) MembershipRepository {
	return &membershipRepository{db: db}
}

func (r *membershipRepository) GetRole(ctx context.Context, listID, userID string) (domain.Role, error) {
	const query = `
        SELECT role FROM list_memberships
        WHERE list_id=$1 AND user_id=$2`
	var raw string
	if err := r.db.QueryRow(ctx, query, listID, userID).Scan(&raw); err != nil {
		return domain.RoleNone, err
	}
	return domain.ParseRole(raw)
}
