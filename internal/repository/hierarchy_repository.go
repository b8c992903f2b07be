package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/spec-kit/tasklist-service/internal/domain"
)

// ErrUnsupportedKind is returned for kinds that have no parent lookup.
var ErrUnsupportedKind = errors.New("resource kind has no parent")

// parentQueries selects the parent id of each child kind; one row lookup per hop.
var parentQueries = map[domain.ResourceKind]string{
	domain.KindTask:    `SELECT list_id FROM tasks WHERE id=$1`,
	domain.KindSubtask: `SELECT task_id FROM subtasks WHERE id=$1`,
	domain.KindComment: `SELECT task_id FROM task_comments WHERE id=$1`,
	domain.KindTag:     `SELECT list_id FROM tags WHERE id=$1`,
}

// HierarchyRepository follows ownership edges between resources.
type HierarchyRepository interface {
	// Parent returns the direct owner of ref, or pgx.ErrNoRows when ref does not exist.
	Parent(ctx context.Context, ref domain.ResourceRef) (domain.ResourceRef, error)
}

type hierarchyRepository struct {
	db DBTX
}

// NewHierarchyRepository builds repository.
func NewHierarchyRepository(db DBTX) HierarchyRepository {
	return &hierarchyRepository{db: db}
}

func (r *hierarchyRepository) Parent(ctx context.Context, ref domain.ResourceRef) (domain.ResourceRef, error) {
	parentKind, ok := ref.Kind.Parent()
	query, found := parentQueries[ref.Kind]
	if !ok || !found {
		return domain.ResourceRef{}, fmt.Errorf("%w: %s", ErrUnsupportedKind, ref.Kind)
	}

	var parentID string
	if err := r.db.QueryRow(ctx, query, ref.ID).Scan(&parentID); err != nil {
		return domain.ResourceRef{}, err
	}
	return domain.ResourceRef{Kind: parentKind, ID: parentID}, nil
}
