package auth

import (
	"fmt"
	"strings"
)

// Role is the closed set of directory roles.
type Role string

const (
	RoleBuyer  Role = "BUYER"
	RoleSeller Role = "SELLER"
	RoleAdmin  Role = "ADMIN"
	RoleSales  Role = "SALES"
)

// HomePath is the application's home route and the redirect target of every
// denied or failed navigation.
const HomePath = "/"

// ParseRole accepts the four known roles case-insensitively and rejects
// everything else.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleBuyer, RoleSeller, RoleAdmin, RoleSales:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleBuyer, RoleSeller, RoleAdmin, RoleSales:
		return true
	default:
		return false
	}
}

// SelfAssignable reports whether a registrant may choose r.
func (r Role) SelfAssignable() bool {
	return r == RoleBuyer || r == RoleSeller
}

// Destination is the dashboard route for the role.
func (r Role) Destination() string {
	switch r {
	case RoleAdmin:
		return "/admin"
	case RoleSales:
		return "/sales"
	case RoleSeller:
		return "/seller"
	case RoleBuyer:
		return HomePath
	default:
		return HomePath
	}
}

func (r Role) String() string { return string(r) }

// UnmarshalText implements encoding.TextUnmarshaler so that persisted or
// submitted roles are validated on decode.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
