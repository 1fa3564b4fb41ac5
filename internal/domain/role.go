package domain

// Role is the closed set of user roles understood by the access control
// layer. The zero value RoleAny is never stored; it only marks an
// authorization check that accepts any authenticated role.
type Role string

const (
	RoleAny        Role = ""
	RoleAdmin      Role = "ADMIN"
	RoleInstructor Role = "INSTRUCTOR"
	RoleStudent    Role = "STUDENT"
)

// IsValid reports whether the role is one of the predefined valid roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleInstructor, RoleStudent:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}

// ParseRole normalizes a stored or client-supplied role string.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	if !r.IsValid() {
		return RoleAny, false
	}
	return r, true
}
