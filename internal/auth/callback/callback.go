// Package callback completes a federated login once the provider has sent
// the browser back: exchange, profile reconciliation, session adoption and
// the role-based destination.
package callback

import (
	"context"
	"net/url"

	"storefront-auth/internal/auth"
	"storefront-auth/internal/auth/identity"
	"storefront-auth/internal/logger"
	"storefront-auth/internal/profile"
	"storefront-auth/internal/session"
)

// Error codes carried in the failure destination's query string.
const (
	CodeOAuthFailed   = "oauth_failed"
	CodeProfileFailed = "profile_failed"
)

type Exchanger interface {
	ExchangeRedirect(ctx context.Context, cb identity.Callback) (*auth.Grant, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, id auth.Identity) (*profile.Profile, error)
}

type Sessions interface {
	Adopt(ctx context.Context, grant auth.Grant, p profile.Profile) error
}

// Result tells the HTTP layer where to send the browser. Session is set only
// on success.
type Result struct {
	Destination string
	ErrorCode   string
	Session     *session.Session
}

func (r Result) OK() bool { return r.ErrorCode == "" }

type Handler struct {
	exchanger  Exchanger
	reconciler Reconciler
	sessions   Sessions
}

func NewHandler(exchanger Exchanger, reconciler Reconciler, sessions Sessions) *Handler {
	return &Handler{
		exchanger:  exchanger,
		reconciler: reconciler,
		sessions:   sessions,
	}
}

// Complete runs the callback once. Every failure, including a replayed or
// unknown payload, resolves to a home destination with an error code.
func (h *Handler) Complete(ctx context.Context, cb identity.Callback) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("oauth callback panicked", map[string]any{
				"provider": cb.Provider,
				"panic":    rec,
			})
			res = failure(CodeProfileFailed)
		}
		h.trace(cb, res)
	}()

	grant, err := h.exchanger.ExchangeRedirect(ctx, cb)
	if err != nil {
		logger.Warn("oauth exchange failed", map[string]any{
			"provider": cb.Provider,
			"error":    err.Error(),
		})
		return failure(CodeOAuthFailed)
	}
	if grant == nil {
		logger.Warn("oauth callback already consumed or unknown", map[string]any{
			"provider": cb.Provider,
		})
		return failure(CodeOAuthFailed)
	}

	p, err := h.reconciler.Reconcile(ctx, grant.Identity)
	if err != nil {
		logger.Error("oauth profile reconciliation failed", map[string]any{
			"provider":    cb.Provider,
			"identity_id": grant.Identity.ID,
			"error":       err.Error(),
		})
		return failure(CodeProfileFailed)
	}

	if err := h.sessions.Adopt(ctx, *grant, *p); err != nil {
		logger.Error("oauth session not persisted", map[string]any{
			"provider":    cb.Provider,
			"identity_id": grant.Identity.ID,
			"error":       err.Error(),
		})
		return failure(CodeProfileFailed)
	}

	return Result{
		Destination: p.Role.Destination(),
		Session: &session.Session{
			Profile:   *p,
			Token:     grant.Token,
			ExpiresAt: grant.ExpiresAt,
		},
	}
}

func (h *Handler) trace(cb identity.Callback, res Result) {
	fields := map[string]any{
		"provider":    cb.Provider,
		"destination": res.Destination,
	}
	if res.ErrorCode != "" {
		fields["error_code"] = res.ErrorCode
	}
	if res.Session != nil {
		fields["role"] = res.Session.Profile.Role.String()
	}
	logger.Event("oauth.callback", fields)
}

func failure(code string) Result {
	return Result{
		Destination: auth.HomePath + "?" + url.Values{"error": {code}}.Encode(),
		ErrorCode:   code,
	}
}

