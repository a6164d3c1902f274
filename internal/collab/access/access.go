// Package access resolves a caller's effective role on a project and decides
// which operations that role permits.
package access

import (
	"context"
	"fmt"

	"github.com/GoSim-25-26J-441/project-collab/internal/collab/domain"
)

// Action is an operation subject to authorization.
type Action uint8

const (
	ActionViewProject Action = iota
	ActionViewMembers
	ActionSubscribe
	ActionUpdateProject
	ActionDeleteProject
	ActionManageMembers

	actionCount
)

var actionNames = [...]string{
	ActionViewProject:   "view project",
	ActionViewMembers:   "view members",
	ActionSubscribe:     "subscribe",
	ActionUpdateProject: "update project",
	ActionDeleteProject: "delete project",
	ActionManageMembers: "manage members",
}

// minimumRole is the least privileged role allowed to perform each action.
var minimumRole = [...]domain.Role{
	ActionViewProject:   domain.RoleViewer,
	ActionViewMembers:   domain.RoleViewer,
	ActionSubscribe:     domain.RoleViewer,
	ActionUpdateProject: domain.RoleEditor,
	ActionDeleteProject: domain.RoleOwner,
	ActionManageMembers: domain.RoleOwner,
}

var (
	_ = [1]struct{}{}[len(actionNames)-int(actionCount)]
	_ = [1]struct{}{}[len(minimumRole)-int(actionCount)]
)

func (a Action) String() string {
	if a >= actionCount {
		return fmt.Sprintf("action(%d)", uint8(a))
	}
	return actionNames[a]
}

// Allowed reports whether role may perform action. RoleNone is never allowed.
func Allowed(role domain.Role, action Action) bool {
	if action >= actionCount {
		return false
	}
	return role.AtLeast(minimumRole[action])
}

// RoleLookup is the part of the membership store the checker needs.
type RoleLookup interface {
	GetRole(ctx context.Context, projectID, userID string) (domain.Role, error)
}

// Checker enforces the role rules against the membership store.
type Checker struct {
	roles RoleLookup
}

func NewChecker(roles RoleLookup) *Checker {
	return &Checker{roles: roles}
}

// EffectiveRole returns the caller's role on the project, or RoleNone when no
// membership exists.
func (c *Checker) EffectiveRole(ctx context.Context, projectID, callerID string) (domain.Role, error) {
	if callerID == "" {
		return domain.RoleNone, domain.ErrNotAuthenticated
	}
	role, err := c.roles.GetRole(ctx, projectID, callerID)
	if err != nil {
		return domain.RoleNone, err
	}
	return role, nil
}

// Authorize returns the caller's role if it permits action, otherwise
// ErrNotAuthorized. Absence of a membership is never treated as a default role.
func (c *Checker) Authorize(ctx context.Context, projectID, callerID string, action Action) (domain.Role, error) {
	role, err := c.EffectiveRole(ctx, projectID, callerID)
	if err != nil {
		return domain.RoleNone, err
	}
	if !Allowed(role, action) {
		return role, fmt.Errorf("%w: caller is %s, cannot %s", domain.ErrNotAuthorized, role, action)
	}
	return role, nil
}

// CanRemove reports whether a membership with the target role may be removed
// through member management. Owner memberships never can.
func CanRemove(target domain.Role) error {
	if target == domain.RoleOwner {
		return domain.ErrOwnerProtected
	}
	return nil
}

// CanGrant reports whether role may be granted through member management.
func CanGrant(role domain.Role) error {
	if role == domain.RoleOwner {
		return fmt.Errorf("%w: ownership cannot be granted", domain.ErrOwnerProtected)
	}
	if !role.Assignable() {
		return fmt.Errorf("%w: %s", domain.ErrInvalidRole, role)
	}
	return nil
}
