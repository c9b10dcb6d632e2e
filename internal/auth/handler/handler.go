package handler

import (
	"context"
	"errors"
	"net/http"

	"storefront-auth/internal/auth"
	"storefront-auth/internal/auth/callback"
	"storefront-auth/internal/auth/identity"
	"storefront-auth/internal/auth/provider"
	"storefront-auth/internal/logger"
	"storefront-auth/internal/session"

	"github.com/gin-gonic/gin"
)

// Sessions is the session manager surface the HTTP layer drives.
type Sessions interface {
	Login(ctx context.Context, email, password string) (bool, string)
	Register(ctx context.Context, fields auth.RegisterFields) (bool, string)
	Logout(ctx context.Context)
	State() session.State
}

type Federation interface {
	InitiateFederatedLogin(ctx context.Context, provider string) (*identity.Redirect, error)
}

type Callbacks interface {
	Complete(ctx context.Context, cb identity.Callback) callback.Result
}

type Handler struct {
	sessions   Sessions
	federation Federation
	callbacks  Callbacks
	cookie     session.CookieOptions
}

func NewHandler(
	sessions Sessions,
	federation Federation,
	callbacks Callbacks,
	cookie session.CookieOptions,
) *Handler {
	return &Handler{
		sessions:   sessions,
		federation: federation,
		callbacks:  callbacks,
		cookie:     cookie,
	}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/auth/login", h.Login)
	r.POST("/auth/register", h.Register)
	r.POST("/auth/logout", h.Logout)
	r.GET("/oauth/login/:provider", h.oauthLogin)
	r.GET("/oauth/callback/:provider", h.oauthCallback)
	r.GET("/api/me", h.Me)
	r.GET("/dashboard", h.Dashboard)
}

func (h *Handler) oauthLogin(c *gin.Context) {
	providerName := c.Param("provider")

	redirect, err := h.federation.InitiateFederatedLogin(c.Request.Context(), providerName)
	if err != nil {
		if errors.Is(err, provider.ErrUnknownProvider) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "unknown oauth provider",
			})
			return
		}
		logger.Error("oauth login not started", map[string]any{
			"provider": providerName,
			"error":    err.Error(),
		})
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": session.MsgServiceUnavailable,
		})
		return
	}

	setStateCookie(c, redirect.State, h.cookie.Secure)
	c.Redirect(http.StatusFound, redirect.URL)
}

func (h *Handler) oauthCallback(c *gin.Context) {
	providerName := c.Param("provider")

	validState := validateState(c)
	clearStateCookie(c, h.cookie.Secure)

	if !validState {
		logger.Warn("oauth callback state mismatch", map[string]any{
			"provider": providerName,
			"ip":       c.ClientIP(),
		})
		c.Redirect(http.StatusFound, auth.HomePath+"?error="+callback.CodeOAuthFailed)
		return
	}

	res := h.callbacks.Complete(c.Request.Context(), identity.Callback{
		Provider:         providerName,
		State:            c.Query("state"),
		Code:             c.Query("code"),
		Error:            c.Query("error"),
		ErrorDescription: c.Query("error_description"),
	})

	if res.Session != nil {
		session.SetCookie(c.Writer, res.Session.Token, res.Session.ExpiresAt, h.cookie)
		logger.Info("login success", map[string]any{
			"provider":   providerName,
			"profile_id": res.Session.Profile.ID,
			"ip":         c.ClientIP(),
		})
	}

	c.Redirect(http.StatusFound, res.Destination)
}

// Logout ends the process session only for the browser holding its cookie.
// Any caller gets its own cookie cleared and a 204.
func (h *Handler) Logout(c *gin.Context) {
	st := h.sessions.State()
	if st.Kind == session.Authenticated && session.CookieMatches(c.Request, st.Session.Token) {
		h.sessions.Logout(c.Request.Context())
	} else {
		logger.Warn("logout without the session cookie ignored", map[string]any{
			"state": st.Kind.String(),
			"ip":    c.ClientIP(),
		})
	}

	session.ClearCookie(c.Writer, h.cookie)

	c.Status(http.StatusNoContent)
}

// Me returns the current profile to the browser holding the session cookie.
func (h *Handler) Me(c *gin.Context) {
	st := h.sessions.State()
	if !st.Kind.Terminal() {
		c.Header("Retry-After", "1")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session initializing"})
		return
	}
	if st.Kind != session.Authenticated || !session.CookieMatches(c.Request, st.Session.Token) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":        st.Session.Profile,
		"destination": st.Session.Profile.Role.Destination(),
	})
}

// authenticated writes the session cookie and the success body shared by
// login and register.
func (h *Handler) authenticated(c *gin.Context, status int, label string) {
	st := h.sessions.State()
	if st.Kind != session.Authenticated {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": session.MsgServiceUnavailable})
		return
	}

	session.SetCookie(c.Writer, st.Session.Token, st.Session.ExpiresAt, h.cookie)

	c.JSON(status, gin.H{
		"status":      label,
		"destination": st.Session.Profile.Role.Destination(),
		"user":        st.Session.Profile,
	})
}
