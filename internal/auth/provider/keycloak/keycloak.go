package keycloak

import (
	"context"
	"errors"
	"strings"

	"storefront-auth/internal/auth/provider"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const providerName = "keycloak"

// New initializes a Keycloak OIDC provider using discovery.
// issuer must be the realm issuer URL, e.g.
// http://localhost:8081/realms/storefront
// publicBaseURL replaces the host of the discovered authorization endpoint
// for setups where the browser reaches Keycloak on a different address than
// this process does.
func New(
	ctx context.Context,
	issuer string,
	clientID string,
	redirectURL string,
	publicBaseURL string,
) (*provider.OIDCProvider, error) {

	if issuer == "" || clientID == "" || redirectURL == "" || publicBaseURL == "" {
		return nil, errors.New("keycloak oauth config missing required fields")
	}

	return provider.DiscoverOIDC(ctx, providerName, issuer, oauth2.Config{
		ClientID:    clientID,
		RedirectURL: redirectURL,
		Scopes: []string{
			oidc.ScopeOpenID,
			"email",
			"profile",
			"phone",
		},
	}, func(ep *oauth2.Endpoint) {
		ep.AuthURL = publicAuthURL(publicBaseURL, issuer)
	})
}

// publicAuthURL derives the browser-facing authorization endpoint from the
// realm path of the issuer.
func publicAuthURL(publicBaseURL, issuer string) string {
	realmPath := "/realms/storefront"
	if i := strings.Index(issuer, "/realms/"); i >= 0 {
		realmPath = issuer[i:]
	}
	return strings.TrimSuffix(publicBaseURL, "/") + strings.TrimSuffix(realmPath, "/") +
		"/protocol/openid-connect/auth"
}
