package auth

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spec-kit/tasklist-service/internal/domain"
)

// Authorization denials.
var (
	ErrNotAMember             = errors.New("not a member of this list")
	ErrInsufficientPermission = errors.New("insufficient permissions")
	ErrUnknownAction          = errors.New("unknown action")
)

// Action is a class of operation guarded by list roles.
type Action string

const (
	// ActionRead covers reading lists, tasks, subtasks, tags and comments.
	ActionRead Action = "read"
	// ActionWrite covers creating and updating tasks, subtasks, tags, comments and lists.
	ActionWrite Action = "write"
	// ActionDelete covers deleting lists, tasks, subtasks and tags.
	ActionDelete Action = "delete"
	// ActionComment covers adding a comment to a task.
	ActionComment Action = "comment"
)

// RoleSet is an explicit set of accepted roles.
type RoleSet map[domain.Role]struct{}

// NewRoleSet builds a set from roles. RoleNone is never admitted.
func NewRoleSet(roles ...domain.Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, role := range roles {
		if role == domain.RoleNone {
			continue
		}
		set[role] = struct{}{}
	}
	return set
}

// Contains reports whether role is in the set.
func (s RoleSet) Contains(role domain.Role) bool {
	_, ok := s[role]
	return ok
}

// Roles lists the members in a stable order.
func (s RoleSet) Roles() []domain.Role {
	roles := make([]domain.Role, 0, len(s))
	for role := range s {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

// Authorize decides whether actual satisfies required. A caller without a
// membership is refused before the role set is consulted.
func Authorize(required RoleSet, actual domain.Role) error {
	if actual == domain.RoleNone {
		return ErrNotAMember
	}
	if !required.Contains(actual) {
		return ErrInsufficientPermission
	}
	return nil
}

// Policy maps each action to the roles allowed to perform it.
type Policy map[Action]RoleSet

// DefaultPolicy returns the list access policy. Each action names its roles
// explicitly; there is no implied ordering between roles.
func DefaultPolicy() Policy {
	return Policy{
		ActionRead:    NewRoleSet(domain.RoleOwner, domain.RoleEditor, domain.RoleViewer),
		ActionWrite:   NewRoleSet(domain.RoleOwner, domain.RoleEditor),
		ActionDelete:  NewRoleSet(domain.RoleOwner),
		ActionComment: NewRoleSet(domain.RoleOwner, domain.RoleEditor, domain.RoleViewer),
	}
}

// Required returns the role set for action.
func (p Policy) Required(action Action) (RoleSet, error) {
	set, ok := p[action]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}
	return set, nil
}

// Authorize checks role against the set configured for action.
func (p Policy) Authorize(action Action, role domain.Role) error {
	required, err := p.Required(action)
	if err != nil {
		return err
	}
	return Authorize(required, role)
}

// AllowedActions lists the actions role may perform, sorted by name.
func (p Policy) AllowedActions(role domain.Role) []Action {
	var actions []Action
	for action, required := range p {
		if Authorize(required, role) == nil {
			actions = append(actions, action)
		}
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
	return actions
}
