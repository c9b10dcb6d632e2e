// Package profile owns the storefront's directory record for a user and the
// create-if-absent protocol that guarantees one record per identity.
package profile

import (
	"context"
	"errors"

	"storefront-auth/internal/auth"
)

// Profile is the directory record for a user, keyed by auth.Identity.ID.
type Profile struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Phone       string    `json:"phone"`
	Role        auth.Role `json:"role"`
	CompanyName string    `json:"company_name,omitempty"`
	GSTNumber   string    `json:"gst_number,omitempty"`
}

// ErrNotFound is wrapped by Reconciler.Lookup when the identity has no
// profile, as opposed to the directory being unreachable.
var ErrNotFound = errors.New("profile not found")

// ErrDuplicate is returned by Directory.CreateProfile when a record with the
// same id already exists.
var ErrDuplicate = errors.New("profile already exists")

// Directory is the backend record store for profiles.
type Directory interface {
	// GetProfile returns nil, nil when no profile exists for id.
	GetProfile(ctx context.Context, id string) (*Profile, error)
	CreateProfile(ctx context.Context, p Profile) (*Profile, error)
}
