// Package identity reconciles the two ways a storefront user can
// authenticate (password credentials and a redirect-based federated
// provider) behind one service that always yields an auth.Grant.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront-auth/internal/auth"
	"storefront-auth/internal/auth/flow"
	"storefront-auth/internal/auth/provider"
	"storefront-auth/internal/auth/resolver"
	"storefront-auth/internal/logger"
	"storefront-auth/internal/utils"
)

const defaultGrantTTL = 24 * time.Hour

// Credentials is the password mechanism.
type Credentials interface {
	Register(ctx context.Context, fields auth.RegisterFields) (auth.Identity, error)
	Authenticate(ctx context.Context, email, password string) (auth.Identity, error)
}

// Providers looks up configured federated providers.
type Providers interface {
	Get(name string) (provider.OAuthProvider, error)
}

// Options groups dependencies for Service.
type Options struct {
	Credentials Credentials
	Providers   Providers
	Resolver    resolver.Resolver
	Pending     flow.PendingStore
	Grants      flow.GrantStore
	GrantTTL    time.Duration
	Now         func() time.Time
}

type Service struct {
	credentials Credentials
	providers   Providers
	resolver    resolver.Resolver
	pending     flow.PendingStore
	grants      flow.GrantStore
	ttl         time.Duration
	now         func() time.Time
}

func NewService(opts Options) *Service {
	ttl := opts.GrantTTL
	if ttl <= 0 {
		ttl = defaultGrantTTL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		credentials: opts.Credentials,
		providers:   opts.Providers,
		resolver:    opts.Resolver,
		pending:     opts.Pending,
		grants:      opts.Grants,
		ttl:         ttl,
		now:         now,
	}
}

// Redirect is where the browser must be sent to continue a federated login.
type Redirect struct {
	URL   string
	State string
}

// Callback is the query payload the provider sends the browser back with.
type Callback struct {
	Provider         string
	State            string
	Code             string
	Error            string
	ErrorDescription string
}

// PasswordLogin authenticates an email/password pair.
func (s *Service) PasswordLogin(ctx context.Context, email, password string) (*auth.Grant, error) {
	id, err := s.VerifyPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}

	return s.issue(ctx, id)
}

// VerifyPassword checks an email/password pair without issuing a grant.
func (s *Service) VerifyPassword(ctx context.Context, email, password string) (auth.Identity, error) {
	id, err := s.credentials.Authenticate(ctx, email, password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		return auth.Identity{}, err
	}
	if err != nil {
		return auth.Identity{}, fmt.Errorf("%w: %w", auth.ErrProviderUnavailable, err)
	}
	return id, nil
}

// PasswordRegister creates a password identity. Format rules are re-checked
// here even though callers validate first.
func (s *Service) PasswordRegister(ctx context.Context, fields auth.RegisterFields) (*auth.Grant, error) {
	if err := fields.Validate(); err != nil {
		return nil, err
	}

	id, err := s.credentials.Register(ctx, fields)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrDuplicateEmail),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrInvalidName),
		errors.Is(err, auth.ErrInvalidPhone),
		errors.Is(err, auth.ErrInvalidRole):
		return nil, err
	default:
		return nil, fmt.Errorf("%w: %w", auth.ErrProviderUnavailable, err)
	}

	return s.issue(ctx, id)
}

// ActiveProviderSession returns the grant the provider side still honors,
// or nil.
func (s *Service) ActiveProviderSession(ctx context.Context) (*auth.Grant, error) {
	g, err := s.grants.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", auth.ErrProviderUnavailable, err)
	}
	if g == nil || g.Expired(s.now()) {
		return nil, nil
	}
	return g, nil
}

// InitiateFederatedLogin starts a one-shot flow for the named provider and
// returns the authorization URL the browser must be redirected to.
func (s *Service) InitiateFederatedLogin(ctx context.Context, providerName string) (*Redirect, error) {
	p, err := s.providers.Get(providerName)
	if err != nil {
		return nil, err
	}

	state, err := flow.NewState()
	if err != nil {
		return nil, err
	}
	verifier, challenge, err := flow.NewPKCE()
	if err != nil {
		return nil, err
	}

	if err := s.pending.Put(ctx, state, flow.Pending{
		Provider:  p.Name(),
		Verifier:  verifier,
		CreatedAt: s.now(),
	}); err != nil {
		return nil, fmt.Errorf("%w: %w", auth.ErrProviderUnavailable, err)
	}

	return &Redirect{
		URL:   p.AuthCodeURL(state, challenge),
		State: state,
	}, nil
}

// ExchangeRedirect completes a federated login. The pending flow is consumed
// before anything else, so a replayed callback returns nil, nil.
func (s *Service) ExchangeRedirect(ctx context.Context, cb Callback) (*auth.Grant, error) {
	pending, err := s.pending.Take(ctx, cb.State)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", auth.ErrProviderUnavailable, err)
	}
	if pending == nil {
		return nil, nil
	}

	if cb.Error != "" {
		return nil, fmt.Errorf("%w: %s: %s", auth.ErrProviderError, cb.Error, cb.ErrorDescription)
	}
	if pending.Provider != cb.Provider {
		return nil, fmt.Errorf("%w: flow started with %s, returned from %s",
			auth.ErrProviderError, pending.Provider, cb.Provider)
	}
	if cb.Code == "" {
		return nil, fmt.Errorf("%w: callback missing code", auth.ErrProviderError)
	}

	p, err := s.providers.Get(cb.Provider)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", auth.ErrProviderError, err)
	}

	claims, err := p.ExchangeCode(ctx, cb.Code, pending.Verifier)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", auth.ErrProviderError, err)
	}

	id, err := s.resolver.Resolve(ctx, claims)
	if errors.Is(err, auth.ErrProviderError) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", auth.ErrProviderUnavailable, err)
	}

	return s.issue(ctx, id)
}

// Logout drops the provider-side grant.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.grants.Delete(ctx); err != nil {
		return fmt.Errorf("%w: %w", auth.ErrProviderUnavailable, err)
	}
	return nil
}

func (s *Service) issue(ctx context.Context, id auth.Identity) (*auth.Grant, error) {
	token, err := utils.RandomString(32)
	if err != nil {
		return nil, err
	}

	g := auth.Grant{
		Identity:  id,
		Token:     token,
		ExpiresAt: s.now().Add(s.ttl),
	}

	// best-effort: only ActiveProviderSession reads it
	if err := s.grants.Put(ctx, g); err != nil {
		logger.Warn("provider grant not recorded", map[string]any{
			"provider": id.Metadata.Provider,
			"error":    err.Error(),
		})
	}

	return &g, nil
}
