package domain

import (
	"fmt"
	"strings"
)

// Role is a member's standing on a list. The zero value means no membership.
type Role string

const (
	RoleNone   Role = ""
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// ParseRole converts a stored role name into a Role.
func ParseRole(raw string) (Role, error) {
	switch role := Role(strings.ToLower(strings.TrimSpace(raw))); role {
	case RoleOwner, RoleEditor, RoleViewer:
		return role, nil
	default:
		return RoleNone, fmt.Errorf("unknown list role %q", raw)
	}
}

// ResourceKind names a node type in the list ownership hierarchy.
type ResourceKind string

const (
	KindList    ResourceKind = "list"
	KindTask    ResourceKind = "task"
	KindSubtask ResourceKind = "subtask"
	KindComment ResourceKind = "comment"
	KindTag     ResourceKind = "tag"
)

// parentKinds describes the ownership edges: every kind other than a list
// hangs off exactly one parent.
var parentKinds = map[ResourceKind]ResourceKind{
	KindTask:    KindList,
	KindSubtask: KindTask,
	KindComment: KindTask,
	KindTag:     KindList,
}

// ParseResourceKind validates a resource kind name.
func ParseResourceKind(raw string) (ResourceKind, error) {
	kind := ResourceKind(strings.ToLower(strings.TrimSpace(raw)))
	if kind == KindList {
		return kind, nil
	}
	if _, ok := parentKinds[kind]; ok {
		return kind, nil
	}
	return "", fmt.Errorf("unknown resource kind %q", raw)
}

// Parent returns the kind that owns k. Lists have no parent.
func (k ResourceKind) Parent() (ResourceKind, bool) {
	parent, ok := parentKinds[k]
	return parent, ok
}

// ResourceRef points at one protected resource.
type ResourceRef struct {
	Kind ResourceKind
	ID   string
}

func (r ResourceRef) String() string {
	return string(r.Kind) + ":" + r.ID
}

// Membership grants a user a role on a list.
type Membership struct {
	ListID string
	UserID string
	Role   Role
}
