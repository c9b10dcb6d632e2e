package callback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"storefront-auth/internal/auth"
	"storefront-auth/internal/auth/identity"
	"storefront-auth/internal/profile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// onceExchanger hands out its grant for the first matching state only.
type onceExchanger struct {
	mu    sync.Mutex
	grant *auth.Grant
	err   error
	used  map[string]bool
}

func (e *onceExchanger) ExchangeRedirect(_ context.Context, cb identity.Callback) (*auth.Grant, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.used == nil {
		e.used = map[string]bool{}
	}
	if e.used[cb.State] {
		return nil, nil
	}
	e.used[cb.State] = true
	if e.err != nil {
		return nil, e.err
	}
	g := *e.grant
	return &g, nil
}

type memDirectory struct {
	mu     sync.Mutex
	rows   map[string]profile.Profile
	getErr error
}

func (d *memDirectory) GetProfile(_ context.Context, id string) (*profile.Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.getErr != nil {
		return nil, d.getErr
	}
	p, ok := d.rows[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (d *memDirectory) CreateProfile(_ context.Context, p profile.Profile) (*profile.Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.rows == nil {
		d.rows = map[string]profile.Profile{}
	}
	if _, ok := d.rows[p.ID]; ok {
		return nil, profile.ErrDuplicate
	}
	d.rows[p.ID] = p
	return &p, nil
}

type recordingSessions struct {
	adoptFunc func(grant auth.Grant, p profile.Profile) error
	adopted   []profile.Profile
}

func (s *recordingSessions) Adopt(_ context.Context, grant auth.Grant, p profile.Profile) error {
	if s.adoptFunc != nil {
		if err := s.adoptFunc(grant, p); err != nil {
			return err
		}
	}
	s.adopted = append(s.adopted, p)
	return nil
}

func federatedGrant(email string) *auth.Grant {
	return &auth.Grant{
		Identity: auth.Identity{
			ID:       "fed-" + email,
			Email:    email,
			Metadata: auth.Metadata{Provider: "google", ProviderUserID: "sub-1"},
		},
		Token:     "tok",
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func cb(state string) identity.Callback {
	return identity.Callback{Provider: "google", State: state, Code: "code"}
}

func TestComplete_NewFederatedUserBecomesBuyer(t *testing.T) {
	dir := &memDirectory{}
	sessions := &recordingSessions{}
	h := NewHandler(&onceExchanger{grant: federatedGrant("new@x.com")}, profile.NewReconciler(dir), sessions)

	res := h.Complete(context.Background(), cb("s1"))

	require.True(t, res.OK(), res.ErrorCode)
	assert.Equal(t, "/", res.Destination)
	require.NotNil(t, res.Session)
	assert.Equal(t, auth.RoleBuyer, res.Session.Profile.Role)
	assert.Equal(t, "new", res.Session.Profile.Name)
	assert.Equal(t, "tok", res.Session.Token)

	require.Len(t, sessions.adopted, 1)
	assert.Equal(t, "fed-new@x.com", sessions.adopted[0].ID)
}

func TestComplete_DestinationFollowsExistingRole(t *testing.T) {
	cases := map[auth.Role]string{
		auth.RoleAdmin:  "/admin",
		auth.RoleSales:  "/sales",
		auth.RoleSeller: "/seller",
		auth.RoleBuyer:  "/",
	}
	for role, want := range cases {
		t.Run(role.String(), func(t *testing.T) {
			g := federatedGrant("staff@x.com")
			dir := &memDirectory{rows: map[string]profile.Profile{
				g.Identity.ID: {ID: g.Identity.ID, Email: g.Identity.Email, Name: "Staff", Role: role},
			}}
			h := NewHandler(&onceExchanger{grant: g}, profile.NewReconciler(dir), &recordingSessions{})

			res := h.Complete(context.Background(), cb("s1"))

			require.True(t, res.OK())
			assert.Equal(t, want, res.Destination)
			assert.Equal(t, role, res.Session.Profile.Role)
		})
	}
}

func TestComplete_ReplayFails(t *testing.T) {
	dir := &memDirectory{}
	sessions := &recordingSessions{}
	h := NewHandler(&onceExchanger{grant: federatedGrant("new@x.com")}, profile.NewReconciler(dir), sessions)

	first := h.Complete(context.Background(), cb("s1"))
	require.True(t, first.OK())

	replay := h.Complete(context.Background(), cb("s1"))
	assert.Equal(t, "/?error=oauth_failed", replay.Destination)
	assert.Equal(t, CodeOAuthFailed, replay.ErrorCode)
	assert.Nil(t, replay.Session)
	assert.Len(t, sessions.adopted, 1)
}

func TestComplete_ExchangeError(t *testing.T) {
	ex := &onceExchanger{err: errors.Join(auth.ErrProviderError, errors.New("access_denied"))}
	h := NewHandler(ex, profile.NewReconciler(&memDirectory{}), &recordingSessions{})

	res := h.Complete(context.Background(), cb("s1"))

	assert.Equal(t, "/?error=oauth_failed", res.Destination)
}

func TestComplete_ProfileFailures(t *testing.T) {
	t.Run("reconcile", func(t *testing.T) {
		dir := &memDirectory{getErr: errors.New("connection reset")}
		sessions := &recordingSessions{}
		h := NewHandler(&onceExchanger{grant: federatedGrant("a@x.com")}, profile.NewReconciler(dir), sessions)

		res := h.Complete(context.Background(), cb("s1"))

		assert.Equal(t, "/?error=profile_failed", res.Destination)
		assert.Empty(t, sessions.adopted)
	})

	t.Run("adopt", func(t *testing.T) {
		sessions := &recordingSessions{adoptFunc: func(auth.Grant, profile.Profile) error {
			return errors.New("redis down")
		}}
		h := NewHandler(&onceExchanger{grant: federatedGrant("a@x.com")}, profile.NewReconciler(&memDirectory{}), sessions)

		res := h.Complete(context.Background(), cb("s1"))

		assert.Equal(t, CodeProfileFailed, res.ErrorCode)
		assert.Nil(t, res.Session)
	})

	t.Run("panic", func(t *testing.T) {
		sessions := &recordingSessions{adoptFunc: func(auth.Grant, profile.Profile) error {
			panic("boom")
		}}
		h := NewHandler(&onceExchanger{grant: federatedGrant("a@x.com")}, profile.NewReconciler(&memDirectory{}), sessions)

		assert.NotPanics(t, func() {
			res := h.Complete(context.Background(), cb("s1"))
			assert.Equal(t, "/?error=profile_failed", res.Destination)
		})
	})
}
