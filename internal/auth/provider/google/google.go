package google

import (
	"context"
	"errors"

	"storefront-auth/internal/auth/provider"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const (
	providerName = "google"
	issuer       = "https://accounts.google.com"
)

// New discovers Google's OIDC configuration. The phone scope is not
// requested; Google only returns phone_number when the account shares it.
func New(
	ctx context.Context,
	clientID string,
	clientSecret string,
	redirectURL string,
) (*provider.OIDCProvider, error) {

	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil, errors.New("google oauth config missing required fields")
	}

	return provider.DiscoverOIDC(ctx, providerName, issuer, oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes: []string{
			oidc.ScopeOpenID,
			"profile",
			"email",
		},
	}, nil)
}
