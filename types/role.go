package types

import "fmt"

// Role is the authorization level attached to every user. A user carries
// exactly one role at all times; the role is written together with the user
// row, so a user without a role cannot exist.
type Role string

const (
	// RoleAdmin may do everything, including deleting projects and
	// managing users and their roles.
	RoleAdmin Role = "admin"

	// RoleManager may create, update and delete projects and tasks.
	RoleManager Role = "manager"

	// RoleUser is the default role for new accounts. Plain users read
	// only the tasks assigned to them and may complete those tasks.
	RoleUser Role = "user"
)

// ParseRole validates a raw role value.
func ParseRole(raw string) (Role, error) {
	role := Role(raw)
	if !role.Known() {
		return "", fmt.Errorf("unknown role %q", raw)
	}
	return role, nil
}

// Known reports whether the role is one of the three defined variants.
func (r Role) Known() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleUser:
		return true
	default:
		return false
	}
}

// IsAdmin reports whether the role is admin.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// ManagerOrAbove reports whether the role is manager or admin.
func (r Role) ManagerOrAbove() bool {
	return r == RoleManager || r == RoleAdmin
}
