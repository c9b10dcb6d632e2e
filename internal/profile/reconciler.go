package profile

import (
	"context"
	"errors"
	"fmt"

	"storefront-auth/internal/auth"
	"storefront-auth/internal/logger"
)

const (
	outcomeExisting = "existing"
	outcomeCreated  = "created"
	outcomeRaced    = "raced"
)

// Reconciler ensures exactly one profile exists per identity.
type Reconciler struct {
	dir Directory
}

func NewReconciler(dir Directory) *Reconciler {
	return &Reconciler{dir: dir}
}

// Reconcile returns the identity's profile, creating a BUYER profile from
// provider metadata when none exists. An existing profile is returned
// unchanged. Safe to call concurrently for the same identity.
//
// Manufacturing a BUYER profile for an unknown federated identity is a
// product policy, not a technical necessity; see DESIGN.md.
func (r *Reconciler) Reconcile(ctx context.Context, id auth.Identity) (*Profile, error) {
	return r.ensure(ctx, id, func() Profile {
		return defaultProfile(id)
	})
}

// CreateRegistered creates the profile for a freshly registered password
// identity using the registrant's own details and role.
func (r *Reconciler) CreateRegistered(
	ctx context.Context,
	id auth.Identity,
	fields auth.RegisterFields,
) (*Profile, error) {
	if !fields.Role.SelfAssignable() {
		return nil, fmt.Errorf("%w: %w", auth.ErrProfileCreateFailure, auth.ErrInvalidRole)
	}
	fields = fields.Normalized()

	return r.ensure(ctx, id, func() Profile {
		return Profile{
			ID:          id.ID,
			Email:       id.Email,
			Name:        fields.Name,
			Phone:       fields.Phone,
			Role:        fields.Role,
			CompanyName: fields.CompanyName,
			GSTNumber:   fields.GSTNumber,
		}
	})
}

// Lookup returns the existing profile for a password login. A missing
// profile is ErrProfileLookupFailure.
func (r *Reconciler) Lookup(ctx context.Context, id auth.Identity) (*Profile, error) {
	p, err := r.dir.GetProfile(ctx, id.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", auth.ErrProfileLookupFailure, err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %w: identity %s", auth.ErrProfileLookupFailure, ErrNotFound, id.ID)
	}
	return p, nil
}

func (r *Reconciler) ensure(ctx context.Context, id auth.Identity, build func() Profile) (*Profile, error) {
	if id.ID == "" {
		return nil, fmt.Errorf("%w: identity has no id", auth.ErrProfileLookupFailure)
	}

	// 1. Existing profile wins, unchanged
	existing, err := r.dir.GetProfile(ctx, id.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", auth.ErrProfileLookupFailure, err)
	}
	if existing != nil {
		reconciled(id, existing, outcomeExisting)
		return existing, nil
	}

	// 2. Create
	created, err := r.dir.CreateProfile(ctx, build())
	if err == nil {
		reconciled(id, created, outcomeCreated)
		return created, nil
	}

	if !errors.Is(err, ErrDuplicate) {
		return nil, fmt.Errorf("%w: %w", auth.ErrProfileCreateFailure, err)
	}

	// 3. Lost a race to a concurrent reconciliation; theirs is the record
	winner, err := r.dir.GetProfile(ctx, id.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", auth.ErrProfileCreateFailure, err)
	}
	if winner == nil {
		return nil, fmt.Errorf("%w: duplicate reported but no profile for %s", auth.ErrProfileCreateFailure, id.ID)
	}

	reconciled(id, winner, outcomeRaced)
	return winner, nil
}

func defaultProfile(id auth.Identity) Profile {
	name := id.Metadata.FullName
	if name == "" {
		name = auth.EmailLocalPart(id.Email)
	}
	return Profile{
		ID:    id.ID,
		Email: id.Email,
		Name:  name,
		Phone: id.Metadata.Phone,
		Role:  auth.RoleBuyer,
	}
}

func reconciled(id auth.Identity, p *Profile, outcome string) {
	logger.Event("profile.reconciled", map[string]any{
		"identity_id": id.ID,
		"provider":    id.Metadata.Provider,
		"outcome":     outcome,
		"role":        p.Role.String(),
	})
}
