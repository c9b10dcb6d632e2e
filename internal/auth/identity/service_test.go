package identity

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"storefront-auth/internal/auth"
	"storefront-auth/internal/auth/flow"
	"storefront-auth/internal/auth/provider"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCredentials struct {
	registerFunc     func(ctx context.Context, f auth.RegisterFields) (auth.Identity, error)
	authenticateFunc func(ctx context.Context, email, password string) (auth.Identity, error)
	registerCalls    int
}

func (f *fakeCredentials) Register(ctx context.Context, fields auth.RegisterFields) (auth.Identity, error) {
	f.registerCalls++
	if f.registerFunc != nil {
		return f.registerFunc(ctx, fields)
	}
	return auth.Identity{ID: "id-" + fields.Email, Email: fields.Email}, nil
}

func (f *fakeCredentials) Authenticate(ctx context.Context, email, password string) (auth.Identity, error) {
	if f.authenticateFunc != nil {
		return f.authenticateFunc(ctx, email, password)
	}
	return auth.Identity{ID: "id-" + email, Email: email}, nil
}

type fakeProvider struct {
	name         string
	exchangeFunc func(ctx context.Context, code, verifier string) (*auth.Claims, error)
}

func (p fakeProvider) Name() string { return p.name }

func (p fakeProvider) AuthCodeURL(state, challenge string) string {
	return "https://idp.example/authorize?state=" + url.QueryEscape(state) +
		"&code_challenge=" + url.QueryEscape(challenge)
}

func (p fakeProvider) ExchangeCode(ctx context.Context, code, verifier string) (*auth.Claims, error) {
	if p.exchangeFunc != nil {
		return p.exchangeFunc(ctx, code, verifier)
	}
	return &auth.Claims{
		Provider:       p.name,
		ProviderUserID: "sub-1",
		Email:          "new@x.com",
	}, nil
}

type fakeResolver struct {
	err error
}

func (f fakeResolver) Resolve(_ context.Context, c *auth.Claims) (auth.Identity, error) {
	if f.err != nil {
		return auth.Identity{}, f.err
	}
	return auth.Identity{
		ID:    "fed-" + c.ProviderUserID,
		Email: c.Email,
		Metadata: auth.Metadata{
			Provider:       c.Provider,
			ProviderUserID: c.ProviderUserID,
			FullName:       c.FullName,
		},
	}, nil
}

type memPending struct {
	mu    sync.Mutex
	flows map[string]flow.Pending
}

func (m *memPending) Put(_ context.Context, state string, p flow.Pending) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.flows == nil {
		m.flows = map[string]flow.Pending{}
	}
	m.flows[state] = p
	return nil
}

func (m *memPending) Take(_ context.Context, state string) (*flow.Pending, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.flows[state]
	if !ok {
		return nil, nil
	}
	delete(m.flows, state)
	return &p, nil
}

type memGrants struct {
	grant  *auth.Grant
	getErr error
}

func (m *memGrants) Put(_ context.Context, g auth.Grant) error { m.grant = &g; return nil }
func (m *memGrants) Get(context.Context) (*auth.Grant, error) { return m.grant, m.getErr }
func (m *memGrants) Delete(context.Context) error             { m.grant = nil; return nil }

type fixture struct {
	svc    *Service
	creds  *fakeCredentials
	grants *memGrants
}

func newFixture(p fakeProvider) fixture {
	creds := &fakeCredentials{}
	grants := &memGrants{}
	svc := NewService(Options{
		Credentials: creds,
		Providers:   provider.NewRegistry(p),
		Resolver:    fakeResolver{},
		Pending:     &memPending{},
		Grants:      grants,
		GrantTTL:    time.Hour,
	})
	return fixture{svc: svc, creds: creds, grants: grants}
}

func validFields() auth.RegisterFields {
	return auth.RegisterFields{
		Email:    "buyer@example.com",
		Password: "correct-horse",
		Name:     "Asha Rao",
		Phone:    "9876543210",
		Role:     auth.RoleBuyer,
	}
}

func TestPasswordLogin_Success(t *testing.T) {
	fx := newFixture(fakeProvider{name: "google"})

	g, err := fx.svc.PasswordLogin(context.Background(), "a@b.com", "correct-horse")
	require.NoError(t, err)

	assert.Equal(t, "id-a@b.com", g.Identity.ID)
	assert.NotEmpty(t, g.Token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), g.ExpiresAt, time.Minute)
	assert.Equal(t, g, fx.grants.grant)
}

func TestVerifyPassword_IssuesNoGrant(t *testing.T) {
	fx := newFixture(fakeProvider{name: "google"})

	id, err := fx.svc.VerifyPassword(context.Background(), "a@b.com", "correct-horse")
	require.NoError(t, err)

	assert.Equal(t, "id-a@b.com", id.ID)
	assert.Nil(t, fx.grants.grant)
}

func TestPasswordLogin_Errors(t *testing.T) {
	fx := newFixture(fakeProvider{name: "google"})

	fx.creds.authenticateFunc = func(context.Context, string, string) (auth.Identity, error) {
		return auth.Identity{}, auth.ErrInvalidCredentials
	}
	_, err := fx.svc.PasswordLogin(context.Background(), "a@b.com", "nope")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	fx.creds.authenticateFunc = func(context.Context, string, string) (auth.Identity, error) {
		return auth.Identity{}, errors.New("connection refused")
	}
	_, err = fx.svc.PasswordLogin(context.Background(), "a@b.com", "nope")
	assert.ErrorIs(t, err, auth.ErrProviderUnavailable)
}

func TestPasswordRegister_RevalidatesInput(t *testing.T) {
	fx := newFixture(fakeProvider{name: "google"})

	f := validFields()
	f.Phone = "12-34-5"

	_, err := fx.svc.PasswordRegister(context.Background(), f)
	assert.ErrorIs(t, err, auth.ErrInvalidPhone)
	assert.Zero(t, fx.creds.registerCalls)
}

func TestPasswordRegister_Duplicate(t *testing.T) {
	fx := newFixture(fakeProvider{name: "google"})
	fx.creds.registerFunc = func(context.Context, auth.RegisterFields) (auth.Identity, error) {
		return auth.Identity{}, auth.ErrDuplicateEmail
	}

	_, err := fx.svc.PasswordRegister(context.Background(), validFields())
	assert.ErrorIs(t, err, auth.ErrDuplicateEmail)
}

func TestActiveProviderSession(t *testing.T) {
	fx := newFixture(fakeProvider{name: "google"})
	ctx := context.Background()

	g, err := fx.svc.ActiveProviderSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, g)

	fx.grants.grant = &auth.Grant{Token: "t", ExpiresAt: time.Now().Add(-time.Second)}
	g, err = fx.svc.ActiveProviderSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, g, "expired grants are not honored")

	fx.grants.grant = &auth.Grant{Token: "t", ExpiresAt: time.Now().Add(time.Minute)}
	g, err = fx.svc.ActiveProviderSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "t", g.Token)

	fx.grants.getErr = errors.New("redis down")
	_, err = fx.svc.ActiveProviderSession(ctx)
	assert.ErrorIs(t, err, auth.ErrProviderUnavailable)
}

func startFlow(t *testing.T, svc *Service, providerName string) string {
	t.Helper()
	r, err := svc.InitiateFederatedLogin(context.Background(), providerName)
	require.NoError(t, err)

	u, err := url.Parse(r.URL)
	require.NoError(t, err)
	assert.Equal(t, r.State, u.Query().Get("state"))
	assert.NotEmpty(t, u.Query().Get("code_challenge"))
	return r.State
}

func TestFederatedFlow_ExchangeOnce(t *testing.T) {
	var gotVerifier string
	fx := newFixture(fakeProvider{
		name: "google",
		exchangeFunc: func(_ context.Context, code, verifier string) (*auth.Claims, error) {
			gotVerifier = verifier
			return &auth.Claims{Provider: "google", ProviderUserID: "sub-9", Email: "new@x.com"}, nil
		},
	})
	ctx := context.Background()
	state := startFlow(t, fx.svc, "google")

	cb := Callback{Provider: "google", State: state, Code: "code-1"}

	g, err := fx.svc.ExchangeRedirect(ctx, cb)
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, "fed-sub-9", g.Identity.ID)
	assert.NotEmpty(t, gotVerifier)

	again, err := fx.svc.ExchangeRedirect(ctx, cb)
	require.NoError(t, err)
	assert.Nil(t, again, "a replayed callback must find the flow consumed")
}

func TestFederatedFlow_UnknownState(t *testing.T) {
	fx := newFixture(fakeProvider{name: "google"})

	g, err := fx.svc.ExchangeRedirect(context.Background(), Callback{Provider: "google", State: "bogus", Code: "c"})
	require.NoError(t, err)
	assert.Nil(t, g)
}

func TestFederatedFlow_ProviderErrors(t *testing.T) {
	tests := []struct {
		name string
		cb   func(state string) Callback
		p    fakeProvider
	}{
		{
			name: "provider signalled error",
			cb: func(s string) Callback {
				return Callback{Provider: "google", State: s, Error: "access_denied"}
			},
			p: fakeProvider{name: "google"},
		},
		{
			name: "missing code",
			cb:   func(s string) Callback { return Callback{Provider: "google", State: s} },
			p:    fakeProvider{name: "google"},
		},
		{
			name: "provider mismatch",
			cb:   func(s string) Callback { return Callback{Provider: "keycloak", State: s, Code: "c"} },
			p:    fakeProvider{name: "google"},
		},
		{
			name: "exchange failure",
			cb:   func(s string) Callback { return Callback{Provider: "google", State: s, Code: "c"} },
			p: fakeProvider{
				name: "google",
				exchangeFunc: func(context.Context, string, string) (*auth.Claims, error) {
					return nil, errors.New("invalid_grant")
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(tt.p)
			state := startFlow(t, fx.svc, "google")

			g, err := fx.svc.ExchangeRedirect(context.Background(), tt.cb(state))
			assert.Nil(t, g)
			assert.ErrorIs(t, err, auth.ErrProviderError)

			// consumed even on failure
			g, err = fx.svc.ExchangeRedirect(context.Background(), tt.cb(state))
			assert.NoError(t, err)
			assert.Nil(t, g)
		})
	}
}

func TestFederatedFlow_ResolverErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unverified email match", fmt.Errorf("%w: keycloak: email not verified", auth.ErrProviderError), auth.ErrProviderError},
		{"database down", errors.New("connection refused"), auth.ErrProviderUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(Options{
				Credentials: &fakeCredentials{},
				Providers:   provider.NewRegistry(fakeProvider{name: "keycloak"}),
				Resolver:    fakeResolver{err: tt.err},
				Pending:     &memPending{},
				Grants:      &memGrants{},
			})
			state := startFlow(t, svc, "keycloak")

			g, err := svc.ExchangeRedirect(context.Background(), Callback{Provider: "keycloak", State: state, Code: "c"})

			assert.Nil(t, g)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestInitiateFederatedLogin_UnknownProvider(t *testing.T) {
	fx := newFixture(fakeProvider{name: "google"})

	_, err := fx.svc.InitiateFederatedLogin(context.Background(), "github")
	assert.Error(t, err)
}

func TestLogout_DropsGrant(t *testing.T) {
	fx := newFixture(fakeProvider{name: "google"})
	fx.grants.grant = &auth.Grant{Token: "t", ExpiresAt: time.Now().Add(time.Hour)}

	require.NoError(t, fx.svc.Logout(context.Background()))
	assert.Nil(t, fx.grants.grant)
}
