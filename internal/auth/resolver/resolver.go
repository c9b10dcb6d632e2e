package resolver

import (
	"context"

	"storefront-auth/internal/auth"
)

// Resolver determines which internal identity a set of federated claims
// belongs to. It is the ONLY place where claims-to-identity mapping lives.
type Resolver interface {
	Resolve(
		ctx context.Context,
		claims *auth.Claims,
	) (auth.Identity, error)
}
