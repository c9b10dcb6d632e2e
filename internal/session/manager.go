package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"storefront-auth/internal/auth"
	"storefront-auth/internal/logger"
	"storefront-auth/internal/profile"
)

// User-facing messages. Internal error detail is logged, never returned.
const (
	MsgLoginFailed        = "Invalid email or password."
	MsgServiceUnavailable = "Sign-in is temporarily unavailable. Please try again."
	MsgRegisterFailed     = "Registration failed. Please try again."
)

// IdentityService is the subset of the identity service the manager drives.
type IdentityService interface {
	PasswordLogin(ctx context.Context, email, password string) (*auth.Grant, error)
	VerifyPassword(ctx context.Context, email, password string) (auth.Identity, error)
	PasswordRegister(ctx context.Context, fields auth.RegisterFields) (*auth.Grant, error)
	ActiveProviderSession(ctx context.Context) (*auth.Grant, error)
	Logout(ctx context.Context) error
}

// ProfileReconciler resolves the directory profile for an identity.
type ProfileReconciler interface {
	Reconcile(ctx context.Context, id auth.Identity) (*profile.Profile, error)
	CreateRegistered(ctx context.Context, id auth.Identity, fields auth.RegisterFields) (*profile.Profile, error)
	Lookup(ctx context.Context, id auth.Identity) (*profile.Profile, error)
}

// Manager owns the process-wide session state machine. Construct one per
// process and pass it to whatever needs the current user.
type Manager struct {
	identity IdentityService
	profiles ProfileReconciler
	store    Store
	now      func() time.Time

	// commitMu serializes store+memory writes so the two never diverge.
	commitMu sync.Mutex

	mu    sync.Mutex
	state State
	gen   uint64
	ready chan struct{}
}

func NewManager(identity IdentityService, profiles ProfileReconciler, store Store) *Manager {
	return &Manager{
		identity: identity,
		profiles: profiles,
		store:    store,
		now:      time.Now,
		ready:    make(chan struct{}),
	}
}

// Initialize restores the session from the store, falling back to a session
// the identity provider still honors. It runs once; later calls return the
// current state. A login or callback that completes while Initialize is in
// flight takes precedence over Initialize's result.
func (m *Manager) Initialize(ctx context.Context) State {
	m.mu.Lock()
	if m.state.Kind != Uninitialized {
		st := m.state
		m.mu.Unlock()
		return st
	}
	m.transitionLocked(State{Kind: Initializing})
	gen := m.gen
	m.mu.Unlock()

	stored, storeErr := m.store.Load(ctx)
	if storeErr != nil {
		logger.Warn("session store unreadable", map[string]any{"error": storeErr.Error()})
	}
	if stored != nil && !stored.Expired(m.now()) {
		m.apply(gen, authenticated(*stored))
		return m.State()
	}

	s, providerErr := m.restoreFromProvider(ctx)
	if providerErr != nil {
		logger.Warn("provider session not restored", map[string]any{"error": providerErr.Error()})
	}
	if s != nil {
		if err := m.commit(ctx, gen, *s); err != nil {
			logger.Error("restored session not persisted", map[string]any{"error": err.Error()})
			m.apply(gen, State{Kind: Unauthenticated})
		}
		return m.State()
	}

	if storeErr != nil && providerErr != nil {
		m.apply(gen, State{Kind: Errored, Reason: errors.Join(storeErr, providerErr).Error()})
		return m.State()
	}

	m.apply(gen, State{Kind: Unauthenticated})
	return m.State()
}

func (m *Manager) restoreFromProvider(ctx context.Context) (*Session, error) {
	grant, err := m.identity.ActiveProviderSession(ctx)
	if err != nil || grant == nil {
		return nil, err
	}

	var p *profile.Profile
	if grant.Identity.Metadata.Provider == auth.ProviderPassword {
		p, err = m.profiles.Lookup(ctx, grant.Identity)
	} else {
		p, err = m.profiles.Reconcile(ctx, grant.Identity)
	}
	if err != nil {
		return nil, err
	}

	return &Session{Profile: *p, Token: grant.Token, ExpiresAt: grant.ExpiresAt}, nil
}

// Login authenticates with a password. On failure the current state is left
// untouched and a user-facing message is returned.
func (m *Manager) Login(ctx context.Context, email, password string) (bool, string) {
	grant, err := m.identity.PasswordLogin(ctx, email, password)
	if err != nil {
		logger.Warn("login failed", map[string]any{"error": err.Error()})
		if errors.Is(err, auth.ErrProviderUnavailable) {
			return false, MsgServiceUnavailable
		}
		return false, MsgLoginFailed
	}

	p, err := m.profiles.Lookup(ctx, grant.Identity)
	if err != nil {
		logger.Error("login profile lookup failed", map[string]any{
			"identity_id": grant.Identity.ID,
			"error":       err.Error(),
		})
		return false, MsgServiceUnavailable
	}

	if err := m.Adopt(ctx, *grant, *p); err != nil {
		logger.Error("login session not persisted", map[string]any{"error": err.Error()})
		return false, MsgServiceUnavailable
	}
	return true, ""
}

// Register validates the form, creates the identity and its profile, and
// signs the new user in. Validation failures return their inline message.
func (m *Manager) Register(ctx context.Context, fields auth.RegisterFields) (bool, string) {
	if err := fields.Validate(); err != nil {
		return false, ValidationMessage(err)
	}

	grant, err := m.identity.PasswordRegister(ctx, fields)
	if errors.Is(err, auth.ErrDuplicateEmail) {
		grant, err = m.resumeRegistration(ctx, fields)
	}
	if err != nil {
		logger.Warn("registration failed", map[string]any{"error": err.Error()})
		return false, MsgRegisterFailed
	}

	p, err := m.profiles.CreateRegistered(ctx, grant.Identity, fields)
	if err != nil {
		// the identity exists without a profile; registering again with the
		// same password completes it
		logger.Error("registration profile not created", map[string]any{
			"identity_id": grant.Identity.ID,
			"email":       grant.Identity.Email,
			"error":       err.Error(),
		})
		return false, MsgRegisterFailed
	}

	if err := m.Adopt(ctx, *grant, *p); err != nil {
		logger.Error("registration session not persisted", map[string]any{"error": err.Error()})
		return false, MsgRegisterFailed
	}
	return true, ""
}

// resumeRegistration handles a duplicate email whose earlier registration
// created the identity but not its profile. It proceeds only when the
// password matches and no profile exists; anything else stays a duplicate.
func (m *Manager) resumeRegistration(ctx context.Context, fields auth.RegisterFields) (*auth.Grant, error) {
	id, err := m.identity.VerifyPassword(ctx, fields.Email, fields.Password)
	if err != nil {
		return nil, errors.Join(auth.ErrDuplicateEmail, err)
	}

	_, err = m.profiles.Lookup(ctx, id)
	switch {
	case err == nil:
		return nil, auth.ErrDuplicateEmail
	case !errors.Is(err, profile.ErrNotFound):
		return nil, err
	}

	logger.Warn("resuming registration without profile", map[string]any{
		"identity_id": id.ID,
	})
	return m.identity.PasswordLogin(ctx, fields.Email, fields.Password)
}

// Adopt persists a session for grant and p and makes it current. If the
// store write fails nothing changes.
func (m *Manager) Adopt(ctx context.Context, grant auth.Grant, p profile.Profile) error {
	if p.ID != grant.Identity.ID {
		return fmt.Errorf("session: profile %s does not belong to identity %s", p.ID, grant.Identity.ID)
	}
	return m.commit(ctx, 0, Session{Profile: p, Token: grant.Token, ExpiresAt: grant.ExpiresAt})
}

// Logout always ends in Unauthenticated. Remote and store failures are
// logged only.
func (m *Manager) Logout(ctx context.Context) {
	if err := m.identity.Logout(ctx); err != nil {
		logger.Warn("provider logout failed", map[string]any{"error": err.Error()})
	}

	m.commitMu.Lock()
	defer m.commitMu.Unlock()

	if err := m.store.Clear(ctx); err != nil {
		logger.Error("session store not cleared", map[string]any{"error": err.Error()})
	}

	m.mu.Lock()
	m.transitionLocked(State{Kind: Unauthenticated})
	m.mu.Unlock()
}

// State returns a snapshot. An authenticated session past its expiry is
// reported, and recorded, as Unauthenticated.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Kind == Authenticated && m.state.Session.Expired(m.now()) {
		m.transitionLocked(State{Kind: Unauthenticated, Reason: "expired"})
	}

	st := m.state
	if st.Session != nil {
		s := *st.Session
		st.Session = &s
	}
	return st
}

// CurrentUser returns the signed-in profile, or nil unless Authenticated.
func (m *Manager) CurrentUser() *profile.Profile {
	st := m.State()
	if st.Kind != Authenticated {
		return nil
	}
	p := st.Session.Profile
	return &p
}

// Ready is closed once the state first becomes terminal.
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

// WaitReady blocks until the state is terminal or ctx is done.
func (m *Manager) WaitReady(ctx context.Context) (State, error) {
	select {
	case <-m.ready:
		return m.State(), nil
	case <-ctx.Done():
		return m.State(), ctx.Err()
	}
}

// commit writes s to the store and then to memory. With gen != 0 it is
// conditional: skipped when another transition happened after gen.
func (m *Manager) commit(ctx context.Context, gen uint64, s Session) error {
	m.commitMu.Lock()
	defer m.commitMu.Unlock()

	if gen != 0 && m.generation() != gen {
		return nil
	}

	if err := m.store.Save(ctx, s); err != nil {
		return err
	}

	m.mu.Lock()
	m.transitionLocked(authenticated(s))
	m.mu.Unlock()
	return nil
}

// apply sets a state that needs no store write, if gen is still current.
func (m *Manager) apply(gen uint64, st State) {
	m.commitMu.Lock()
	defer m.commitMu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return
	}
	m.transitionLocked(st)
}

func (m *Manager) generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

func (m *Manager) transitionLocked(next State) {
	prev := m.state
	m.state = next
	m.gen++

	fields := map[string]any{
		"from": prev.Kind.String(),
		"to":   next.Kind.String(),
	}
	if next.Session != nil {
		fields["profile_id"] = next.Session.Profile.ID
		fields["role"] = next.Session.Profile.Role.String()
	}
	if next.Reason != "" {
		fields["reason"] = next.Reason
	}
	logger.Event("session.transition", fields)

	if next.Kind.Terminal() {
		select {
		case <-m.ready:
		default:
			close(m.ready)
		}
	}
}

// ValidationMessage maps a format error to its inline message.
func ValidationMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrWeakPassword):
		return "Password must be at least 8 characters."
	case errors.Is(err, auth.ErrInvalidName):
		return "Name must contain only letters and be at least 2 characters."
	case errors.Is(err, auth.ErrInvalidPhone):
		return "Phone number must be 10 digits."
	case errors.Is(err, auth.ErrInvalidRole):
		return "Please choose Buyer or Seller."
	default:
		return MsgRegisterFailed
	}
}
