package rootaccess

import (
	"errors"
	"slices"
	"strings"
)

// Role is the administrative role of the process invoking an operation.
type Role string

const (
	RoleSystem Role = "system"
	RoleShell  Role = "shell"
	RoleOther  Role = "other"
)

// Operation names an RPC operation together with the roles allowed to
// invoke it.
type Operation struct {
	Name  string
	Roles []Role
}

var (
	// OpSetEnabled changes the toggle.
	OpSetEnabled = Operation{Name: "setEnabled", Roles: []Role{RoleSystem}}

	// OpGetEnabled reads the toggle.
	OpGetEnabled = Operation{Name: "getEnabled", Roles: []Role{RoleSystem, RoleShell}}

	// OpReadMetrics exposes the toggle metrics.
	OpReadMetrics = Operation{Name: "readMetrics", Roles: []Role{RoleSystem}}
)

// ErrPermissionDenied matches every *PermissionError via errors.Is.
var ErrPermissionDenied = errors.New("permission denied")

// PermissionError reports a caller whose role is not allowed to invoke an
// operation.
type PermissionError struct {
	Op     string
	Caller Role
	Reason string
}

func (e *PermissionError) Error() string {
	return "rootaccess: " + e.Op + ": " + e.Reason
}

func (e *PermissionError) Is(target error) bool {
	return target == ErrPermissionDenied
}

// CheckCaller returns nil when caller may invoke op and a *PermissionError
// otherwise. It has no side effects.
func CheckCaller(caller Role, op Operation) error {
	if slices.Contains(op.Roles, caller) {
		return nil
	}
	return &PermissionError{
		Op:     op.Name,
		Caller: caller,
		Reason: "Caller must be " + joinRoles(op.Roles),
	}
}

// joinRoles renders roles as "a", "a or b", "a, b or c".
func joinRoles(roles []Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	switch len(names) {
	case 0:
		return "nobody"
	case 1:
		return names[0]
	}
	return strings.Join(names[:len(names)-1], ", ") + " or " + names[len(names)-1]
}
