// Package rbac implements the permission table and the authorization
// evaluator: a (role, resource, action) rule set consulted on every
// protected request.
package rbac

import (
	"errors"
	"fmt"
)

// Role is the closed set of user categories. Extending it requires a
// migration of the permissions table.
type Role string

// The four roles known to the system.
const (
	RoleAdministrator Role = "administrator"
	RoleManager       Role = "manager"
	RoleUser          Role = "user"
	RoleViewer        Role = "viewer"
)

// Roles lists every valid role.
func Roles() []Role {
	return []Role{RoleAdministrator, RoleManager, RoleUser, RoleViewer}
}

// Valid reports whether the role is one of the known four.
func (r Role) Valid() bool {
	switch r {
	case RoleAdministrator, RoleManager, RoleUser, RoleViewer:
		return true
	}
	return false
}

// ParseRole converts a raw string into a Role.
func ParseRole(raw string) (Role, error) {
	role := Role(raw)
	if !role.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, raw)
	}
	return role, nil
}

// Rule grants or denies one action on one resource to one role.
// At most one rule exists per (role, resource, action) triple; absence
// of a rule is a distinct state from an explicit Allowed=false.
type Rule struct {
	ID       int64
	Role     Role
	Resource string
	Action   string
	Allowed  bool
}

// EffectivePermission is one entry of the positive permission set
// reported to a user. Explicit denials are never listed.
type EffectivePermission struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
	Allowed  bool   `json:"allowed"`
}

// Account is the slice of user state the authorization core needs:
// who the user is, what role they hold right now, and whether the
// account is still active.
type Account struct {
	ID     int64
	Role   Role
	Active bool
}

// Sentinel errors surfaced by the permission table and evaluator.
var (
	// ErrRuleExists rejects creation of a duplicate (role, resource, action) triple.
	ErrRuleExists = errors.New("rbac: permission rule already exists")
	// ErrRuleNotFound indicates no rule carries the addressed id.
	ErrRuleNotFound = errors.New("rbac: permission rule not found")
	// ErrPermissionNotFound indicates no rule governs the evaluated
	// triple. Callers gate on it as a denial, but it is reported apart
	// from an explicit deny so operators can tell "no policy configured"
	// from "policy says no".
	ErrPermissionNotFound = errors.New("rbac: no permission rule configured")
	// ErrUserNotFound indicates the evaluated user is unknown or deactivated.
	ErrUserNotFound = errors.New("rbac: user not found or removed")
	// ErrInvalidRole indicates a role outside the closed enumeration.
	ErrInvalidRole = errors.New("rbac: unknown role")
)
