package credentials

import (
	"time"

	"storefront-auth/internal/auth"
)

type Credential struct {
	ID           string
	UserID       string
	PasswordHash string
	HashVersion  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ProviderName tags identities created by this package.
const ProviderName = auth.ProviderPassword
