package provider

import (
	"context"
	"errors"
	"fmt"

	"storefront-auth/internal/auth"
	"storefront-auth/internal/logger"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// OIDCProvider is an OAuthProvider backed by an OpenID Connect issuer. Google
// and Keycloak differ only in discovery details and scopes.
type OIDCProvider struct {
	name        string
	oauthConfig *oauth2.Config
	verifier    *oidc.IDTokenVerifier
}

// DiscoverOIDC runs issuer discovery and fills cfg.Endpoint from it. When
// set, adjust may rewrite the discovered endpoint before it is used.
func DiscoverOIDC(
	ctx context.Context,
	name string,
	issuer string,
	cfg oauth2.Config,
	adjust func(*oauth2.Endpoint),
) (*OIDCProvider, error) {
	discovered, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to init %s oidc provider: %w", name, err)
	}

	cfg.Endpoint = discovered.Endpoint()
	if adjust != nil {
		adjust(&cfg.Endpoint)
	}

	return &OIDCProvider{
		name:        name,
		oauthConfig: &cfg,
		verifier:    discovered.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

func (p *OIDCProvider) Name() string {
	return p.name
}

// AuthCodeURL builds the authorization URL with S256 PKCE parameters.
func (p *OIDCProvider) AuthCodeURL(state string, codeChallenge string) string {
	return p.oauthConfig.AuthCodeURL(
		state,
		oauth2.AccessTypeOnline,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

// ExchangeCode trades the code for tokens and returns the verified id_token
// claims. No profile, linking or session work happens here.
func (p *OIDCProvider) ExchangeCode(
	ctx context.Context,
	code string,
	codeVerifier string,
) (*auth.Claims, error) {

	token, err := p.oauthConfig.Exchange(
		ctx,
		code,
		oauth2.SetAuthURLParam("code_verifier", codeVerifier),
	)
	if err != nil {
		logger.Error("oidc token exchange failed", map[string]any{
			"provider": p.name,
			"error":    err.Error(),
		})
		return nil, fmt.Errorf("%s token exchange failed: %w", p.name, err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, fmt.Errorf("%s did not return id_token", p.name)
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		logger.Error("oidc id_token verification failed", map[string]any{
			"provider": p.name,
			"error":    err.Error(),
		})
		return nil, fmt.Errorf("%s id_token verification failed: %w", p.name, err)
	}

	var raw idTokenClaims
	if err := idToken.Claims(&raw); err != nil {
		return nil, fmt.Errorf("%s id_token claims parse failed: %w", p.name, err)
	}

	claims, err := raw.toClaims(p.name)
	if err != nil {
		return nil, err
	}

	logger.Info("oidc verified", map[string]any{
		"provider":           p.name,
		"issuer":             idToken.Issuer,
		"email_verified":     claims.EmailVerified,
		"preferred_username": raw.PreferredUsername,
		"audience":           idToken.Audience,
		"expiry_unix":        idToken.Expiry.Unix(),
	})

	return claims, nil
}

type idTokenClaims struct {
	Subject           string `json:"sub"`
	Email             string `json:"email"`
	EmailVerified     bool   `json:"email_verified"`
	PreferredUsername string `json:"preferred_username"`
	Name              string `json:"name"`
	PhoneNumber       string `json:"phone_number"`
}

var errMissingClaims = errors.New("id_token missing required claims")

func (c idTokenClaims) toClaims(provider string) (*auth.Claims, error) {
	if c.Subject == "" || c.Email == "" {
		return nil, fmt.Errorf("%s: %w", provider, errMissingClaims)
	}
	return &auth.Claims{
		Provider:       provider,
		ProviderUserID: c.Subject,
		Email:          c.Email,
		EmailVerified:  c.EmailVerified,
		FullName:       c.Name,
		Phone:          c.PhoneNumber,
	}, nil
}
