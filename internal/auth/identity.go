package auth

import (
	"strings"
	"time"
)

// Identity represents an authenticated principal as known to the identity
// provider. It contains facts only, no decisions, and is never mutated here.
type Identity struct {
	ID            string   // stable internal identity id; profiles are keyed by it
	Email         string   // email asserted by the provider
	EmailVerified bool     // whether the provider asserts email ownership
	Metadata      Metadata // provider-supplied extras
}

// Metadata carries optional provider facts used when a profile is created.
type Metadata struct {
	Provider       string // "password", "google", "keycloak"
	ProviderUserID string // provider-scoped subject (sub)
	FullName       string
	Phone          string
}

// Claims is what a federated provider returns after a code exchange, before
// the resolver has mapped it to an internal identity id.
type Claims struct {
	Provider       string
	ProviderUserID string
	Email          string
	EmailVerified  bool
	FullName       string
	Phone          string
}

// Grant pairs an identity with the opaque token issued for it.
type Grant struct {
	Identity  Identity
	Token     string
	ExpiresAt time.Time
}

// Expired reports whether the grant is past its expiry. A zero expiry never
// expires.
func (g Grant) Expired(now time.Time) bool {
	return !g.ExpiresAt.IsZero() && now.After(g.ExpiresAt)
}

// EmailLocalPart returns the part of an email address before '@'.
func EmailLocalPart(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}

// ProviderPassword tags identities authenticated with password credentials.
const ProviderPassword = "password"
