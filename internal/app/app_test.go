package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"storefront-auth/internal/auth/handler"
	"storefront-auth/internal/auth/provider"
	"storefront-auth/internal/config"
	"storefront-auth/internal/redis"
	"storefront-auth/internal/session"
	"storefront-auth/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type pendingSessions struct{}

func (pendingSessions) State() session.State { return session.State{Kind: session.Initializing} }

func (pendingSessions) WaitReady(ctx context.Context) (session.State, error) {
	<-ctx.Done()
	return session.State{Kind: session.Initializing}, ctx.Err()
}

func serve(r http.Handler, method, target, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRouter_PublicRoutes(t *testing.T) {
	h := handler.NewHandler(nil, nil, nil, session.CookieOptions{})
	r := newRouter(h, pendingSessions{}, config.Config{})

	rec := serve(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(r, http.MethodGet, "/?error=oauth_failed", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "oauth_failed")
}

func TestRouter_GatedRoutesWaitWhileInitializing(t *testing.T) {
	h := handler.NewHandler(nil, nil, nil, session.CookieOptions{})
	r := newRouter(h, pendingSessions{}, config.Config{GuardWait: 10 * time.Millisecond})

	for _, path := range []string{"/admin", "/sales", "/seller"} {
		rec := serve(r, http.MethodGet, path, "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}
}

func TestWire_RegisterThenGatedRoutes(t *testing.T) {
	client, prefix := testutil.SetupTestRedis(t)
	database := testutil.SetupTestDB(t)
	infra := &Infra{DB: database, Redis: &redis.Client{Client: client, Prefix: prefix}}
	cfg := config.Config{SessionTTL: time.Hour, GuardWait: time.Second}
	ctx := context.Background()

	manager, r := wire(cfg, infra, provider.NewRegistry())
	require.Equal(t, session.Unauthenticated, manager.Initialize(ctx).Kind)

	email := testutil.UniqueEmail("seller")
	rec := serve(r, http.MethodPost, "/auth/register",
		`{"email":"`+email+`","password":"correct-horse","name":"Sita Seller","phone":"98765 43210","role":"SELLER"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)

	rec = serve(r, http.MethodGet, "/seller", "", cookie)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(r, http.MethodGet, "/admin", "", cookie)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	// a fresh process restores the same session from the store
	restarted, _ := wire(cfg, infra, provider.NewRegistry())
	st := restarted.Initialize(ctx)
	require.Equal(t, session.Authenticated, st.Kind)
	assert.Equal(t, email, st.Session.Profile.Email)

	rec = serve(r, http.MethodPost, "/auth/logout", "", cookie)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(r, http.MethodGet, "/seller", "", cookie)
	assert.Equal(t, http.StatusFound, rec.Code)
}
