package resolver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront-auth/internal/auth"
	"storefront-auth/internal/db"

	"github.com/google/uuid"
)

// ErrUnverifiedEmail is returned when federated claims match an existing
// user by email but the provider has not verified that email.
var ErrUnverifiedEmail = errors.New("email not verified by provider")

// DBResolver resolves federated claims using the database.
type DBResolver struct {
	db *db.DB
}

func NewDBResolver(db *db.DB) *DBResolver {
	return &DBResolver{db: db}
}

func (r *DBResolver) Resolve(
	ctx context.Context,
	claims *auth.Claims,
) (auth.Identity, error) {

	if claims == nil {
		return auth.Identity{}, errors.New("claims are nil")
	}

	userID, err := r.resolveUserID(ctx, claims)
	if db.IsUniqueViolation(err) {
		// A concurrent callback for the same subject or email won the
		// insert; the second pass finds its rows.
		userID, err = r.resolveUserID(ctx, claims)
	}
	if err != nil {
		return auth.Identity{}, fmt.Errorf("resolver: %w", err)
	}

	return auth.Identity{
		ID:            userID.String(),
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Metadata: auth.Metadata{
			Provider:       claims.Provider,
			ProviderUserID: claims.ProviderUserID,
			FullName:       claims.FullName,
			Phone:          claims.Phone,
		},
	}, nil
}

func (r *DBResolver) resolveUserID(
	ctx context.Context,
	claims *auth.Claims,
) (uuid.UUID, error) {

	// 1. Try identity lookup (provider + provider_user_id)
	var userID uuid.UUID
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id
		FROM identities
		WHERE provider = $1
		  AND provider_user_id = $2
	`,
		claims.Provider,
		claims.ProviderUserID,
	).Scan(&userID)

	if err == nil {
		return userID, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, err
	}

	// 2. Try email-based linking (existing user, new provider)
	err = r.db.QueryRowContext(ctx, `
		SELECT id
		FROM users
		WHERE LOWER(email) = LOWER($1)
	`,
		claims.Email,
	).Scan(&userID)

	if err == nil {
		// Only a provider-verified email may take over an existing user
		if !claims.EmailVerified {
			return uuid.Nil, fmt.Errorf("%w: %s: %w", auth.ErrProviderError, claims.Provider, ErrUnverifiedEmail)
		}

		// Link new identity to existing user
		if err := r.link(ctx, userID, claims); err != nil {
			return uuid.Nil, err
		}
		return userID, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, err
	}

	// 3. Create new user
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO users (email, email_verified)
		VALUES ($1, $2)
		RETURNING id
	`,
		claims.Email,
		claims.EmailVerified,
	).Scan(&userID)

	if err != nil {
		return uuid.Nil, err
	}

	// 4. Create identity mapping
	if err := r.link(ctx, userID, claims); err != nil {
		return uuid.Nil, err
	}

	return userID, nil
}

func (r *DBResolver) link(ctx context.Context, userID uuid.UUID, claims *auth.Claims) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO identities (user_id, provider, provider_user_id)
		VALUES ($1, $2, $3)
	`,
		userID,
		claims.Provider,
		claims.ProviderUserID,
	)
	return err
}
