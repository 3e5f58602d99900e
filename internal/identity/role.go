package identity

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownRole is returned when a stored role string is not part of the enumeration.
var ErrUnknownRole = errors.New("identity: unknown role")

// Role is the closed set of access roles.
type Role string

const (
	RoleSuperAdmin     Role = "super_admin"
	RoleAdmin          Role = "admin"
	RoleBCDRManager    Role = "bcdr_manager"
	RoleDepartmentHead Role = "department_head"
	RoleAssessor       Role = "assessor"
	RoleViewer         Role = "viewer"
	RoleUser           Role = "user"
)

// MemberRoles lists roles an organization member may hold.
var MemberRoles = []Role{
	RoleAdmin,
	RoleBCDRManager,
	RoleDepartmentHead,
	RoleAssessor,
	RoleViewer,
	RoleUser,
}

// ParseRole normalizes and validates a member role.
func ParseRole(raw string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	switch r {
	case RoleAdmin, RoleBCDRManager, RoleDepartmentHead, RoleAssessor, RoleViewer, RoleUser:
		return r, nil
	case RoleSuperAdmin:
		return "", fmt.Errorf("%w: %q is reserved for platform admins", ErrUnknownRole, raw)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
	}
}

func (r Role) String() string { return string(r) }

// ManagesContinuity reports whether the role administers the BCDR program.
func (r Role) ManagesContinuity() bool {
	switch r {
	case RoleAdmin, RoleBCDRManager:
		return true
	default:
		return false
	}
}
