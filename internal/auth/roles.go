package auth

// Role represents an admin role for role-based access control
type Role string

const (
	// RoleAdmin has full access to all admin endpoints
	RoleAdmin Role = "admin"

	// RoleViewer has read-only access to admin endpoints
	RoleViewer Role = "viewer"
)

func (r Role) String() string {
	return string(r)
}

// IsValid checks if the role is a known role
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleViewer:
		return true
	default:
		return false
	}
}

// HasPermission checks if a role satisfies a required role.
// Admin satisfies every role; viewer only satisfies viewer.
func (r Role) HasPermission(required Role) bool {
	if r == RoleAdmin {
		return true
	}
	return r == required
}

// Allowed reports whether any of granted satisfies any of required.
// An empty required list allows every authenticated caller.
func Allowed(granted []string, required ...Role) bool {
	if len(required) == 0 {
		return true
	}
	for _, want := range required {
		for _, g := range granted {
			if Role(g).HasPermission(want) {
				return true
			}
		}
	}
	return false
}
