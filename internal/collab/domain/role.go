package domain

import (
	"fmt"
	"strings"
)

// Role is a caller's standing on a project. RoleNone means no membership.
type Role uint8

const (
	RoleNone Role = iota
	RoleOwner
	RoleEditor
	RoleViewer

	roleCount
)

// RoleInfo is presentation metadata for a role.
type RoleInfo struct {
	Role  Role   `json:"role"`
	Label string `json:"label"`
	Color string `json:"color"`
}

// roleInfo is indexed by Role. The size assertions below fail to compile
// when a role is added without metadata.
var roleInfo = [...]RoleInfo{
	RoleNone:   {Role: RoleNone, Label: "No access", Color: "gray"},
	RoleOwner:  {Role: RoleOwner, Label: "Owner", Color: "purple"},
	RoleEditor: {Role: RoleEditor, Label: "Editor", Color: "blue"},
	RoleViewer: {Role: RoleViewer, Label: "Viewer", Color: "green"},
}

var roleNames = [...]string{
	RoleNone:   "none",
	RoleOwner:  "owner",
	RoleEditor: "editor",
	RoleViewer: "viewer",
}

var (
	_ = [1]struct{}{}[len(roleInfo)-int(roleCount)]
	_ = [1]struct{}{}[len(roleNames)-int(roleCount)]
)

// Roles lists every membership role, most privileged first.
func Roles() []Role {
	return []Role{RoleOwner, RoleEditor, RoleViewer}
}

func (r Role) Valid() bool {
	return r > RoleNone && r < roleCount
}

func (r Role) String() string {
	if r >= roleCount {
		return fmt.Sprintf("role(%d)", uint8(r))
	}
	return roleNames[r]
}

// Info returns the presentation metadata for r.
func (r Role) Info() RoleInfo {
	if r >= roleCount {
		return roleInfo[RoleNone]
	}
	return roleInfo[r]
}

// AtLeast reports whether r grants everything other grants.
// Owner ⊇ editor ⊇ viewer.
func (r Role) AtLeast(other Role) bool {
	if !r.Valid() || !other.Valid() {
		return false
	}
	// lower ordinal is more privileged
	return r <= other
}

// Assignable reports whether r may be granted through member management.
func (r Role) Assignable() bool {
	return r == RoleEditor || r == RoleViewer
}

// ParseRole converts a stored or wire role name into a Role.
func ParseRole(s string) (Role, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for r := RoleOwner; r < roleCount; r++ {
		if roleNames[r] == s {
			return r, nil
		}
	}
	return RoleNone, fmt.Errorf("%w: %q", ErrInvalidRole, s)
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	if strings.TrimSpace(string(b)) == roleNames[RoleNone] {
		*r = RoleNone
		return nil
	}
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
