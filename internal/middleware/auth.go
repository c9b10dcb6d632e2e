package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"storefront-auth/internal/auth"
	"storefront-auth/internal/guard"
	"storefront-auth/internal/session"

	"github.com/gin-gonic/gin"
)

// unexported, collision-proof context key
type sessionContextKeyType struct{}

var sessionKey = sessionContextKeyType{}

// SessionFromContext extracts the admitted session from context.
func SessionFromContext(ctx context.Context) (session.Session, bool) {
	s, ok := ctx.Value(sessionKey).(session.Session)
	return s, ok
}

// SessionSource exposes the current session state and its readiness.
type SessionSource interface {
	State() session.State
	WaitReady(ctx context.Context) (session.State, error)
}

// RequireRoles admits the request only when the guard allows the current
// session for roles and the request carries that session's cookie. While the
// session is still initializing it waits up to wait, then answers 503.
func RequireRoles(sessions SessionSource, wait time.Duration, roles ...auth.Role) gin.HandlerFunc {
	required := guard.Roles(roles...)

	return func(c *gin.Context) {
		st := sessions.State()
		d := guard.Authorize(required, st)

		if d.Verdict == guard.Pending && wait > 0 {
			ctx, cancel := context.WithTimeout(c.Request.Context(), wait)
			st, _ = sessions.WaitReady(ctx)
			cancel()
			d = guard.Authorize(required, st)
		}

		switch d.Verdict {
		case guard.Pending:
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": "session initializing",
			})
			return
		case guard.Deny:
			c.Redirect(http.StatusFound, d.Redirect)
			c.Abort()
			return
		}

		// the process-wide session only counts for the browser holding it
		if !session.CookieMatches(c.Request, st.Session.Token) {
			c.Redirect(http.StatusFound, auth.HomePath)
			c.Abort()
			return
		}

		ctx := context.WithValue(c.Request.Context(), sessionKey, *st.Session)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func retryAfterSeconds(wait time.Duration) int {
	if s := int(wait.Seconds()); s > 0 {
		return s
	}
	return 1
}
