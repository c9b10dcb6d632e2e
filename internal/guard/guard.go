// Package guard decides whether the current session may enter a role-gated
// route. Authorize is pure apart from emitting a trace event.
package guard

import (
	"storefront-auth/internal/auth"
	"storefront-auth/internal/logger"
	"storefront-auth/internal/session"
)

// Verdict is the outcome of an authorization check.
type Verdict int

const (
	// Deny sends the caller to Decision.Redirect.
	Deny Verdict = iota
	Allow
	// Pending means the session status is not known yet. Callers should wait
	// or show a loading state, never treat it as Deny.
	Pending
)

func (v Verdict) String() string {
	switch v {
	case Allow:
		return "allow"
	case Pending:
		return "pending"
	default:
		return "deny"
	}
}

// RoleSet is the set of roles a route admits.
type RoleSet map[auth.Role]struct{}

// Roles builds a RoleSet.
func Roles(roles ...auth.Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

func (s RoleSet) Contains(r auth.Role) bool {
	_, ok := s[r]
	return ok
}

func (s RoleSet) names() []string {
	out := make([]string, 0, len(s))
	for r := range s {
		out = append(out, r.String())
	}
	return out
}

type Decision struct {
	Verdict  Verdict
	Redirect string
}

// Authorize admits an authenticated user whose role is in required. An
// empty set admits nobody.
func Authorize(required RoleSet, st session.State) Decision {
	d := decide(required, st)

	fields := map[string]any{
		"verdict":  d.Verdict.String(),
		"state":    st.Kind.String(),
		"required": required.names(),
	}
	if st.Session != nil {
		fields["role"] = st.Session.Profile.Role.String()
	}
	logger.Event("guard.decision", fields)

	return d
}

func decide(required RoleSet, st session.State) Decision {
	switch st.Kind {
	case session.Uninitialized, session.Initializing:
		return Decision{Verdict: Pending}
	case session.Authenticated:
		if st.Session == nil {
			return Decision{Verdict: Deny, Redirect: auth.HomePath}
		}
		if required.Contains(st.Session.Profile.Role) {
			return Decision{Verdict: Allow}
		}
		return Decision{Verdict: Deny, Redirect: auth.HomePath}
	default:
		return Decision{Verdict: Deny, Redirect: auth.HomePath}
	}
}
