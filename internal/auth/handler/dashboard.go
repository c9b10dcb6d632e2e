package handler

import (
	"net/http"

	"storefront-auth/internal/auth"
	"storefront-auth/internal/middleware"
	"storefront-auth/internal/session"

	"github.com/gin-gonic/gin"
)

// Dashboard sends the caller to the dashboard for their role.
func (h *Handler) Dashboard(c *gin.Context) {
	st := h.sessions.State()
	if st.Kind != session.Authenticated || !session.CookieMatches(c.Request, st.Session.Token) {
		c.Redirect(http.StatusFound, auth.HomePath)
		return
	}
	c.Redirect(http.StatusFound, st.Session.Profile.Role.Destination())
}

// RoleDashboard renders the placeholder body of a role dashboard. Access
// control is the route's middleware.
func RoleDashboard(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{"dashboard": name}
		if s, ok := middleware.SessionFromContext(c.Request.Context()); ok {
			body["user"] = s.Profile
		}
		c.JSON(http.StatusOK, body)
	}
}
