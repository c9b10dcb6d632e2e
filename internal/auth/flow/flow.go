// Package flow keeps the short-lived server-side state of federated logins:
// pending redirects awaiting their callback, and the provider grant the
// identity service still honors.
package flow

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"time"

	"storefront-auth/internal/auth"
	"storefront-auth/internal/utils"
)

// PendingTTL bounds how long a redirect may take to come back.
const PendingTTL = 5 * time.Minute

// Pending is a started federated login awaiting its callback.
type Pending struct {
	Provider  string    `json:"provider"`
	Verifier  string    `json:"verifier"`
	CreatedAt time.Time `json:"created_at"`
}

// PendingStore holds pending flows keyed by OAuth state.
type PendingStore interface {
	Put(ctx context.Context, state string, p Pending) error
	// Take returns and removes the flow in one step; nil when absent or
	// already taken.
	Take(ctx context.Context, state string) (*Pending, error)
}

// GrantStore keeps the last provider grant until it expires or is dropped.
type GrantStore interface {
	Put(ctx context.Context, g auth.Grant) error
	Get(ctx context.Context) (*auth.Grant, error)
	Delete(ctx context.Context) error
}

// NewState returns a fresh OAuth state value.
func NewState() (string, error) {
	return utils.RandomString(32)
}

// NewPKCE returns an S256 verifier/challenge pair.
func NewPKCE() (verifier string, challenge string, err error) {
	verifier, err = utils.RandomString(32)
	if err != nil {
		return "", "", err
	}

	hash := sha256.Sum256([]byte(verifier))
	challenge = base64.RawURLEncoding.EncodeToString(hash[:])

	return verifier, challenge, nil
}
