package handler

import (
	"errors"
	"net/http"

	"storefront-auth/internal/auth"
	"storefront-auth/internal/session"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Register(c *gin.Context) {
	var req auth.RegisterFields
	if err := c.ShouldBindJSON(&req); err != nil {
		// Role decodes through auth.ParseRole, so an unknown role fails here
		if errors.Is(err, auth.ErrInvalidRole) {
			c.JSON(http.StatusBadRequest, gin.H{"error": session.ValidationMessage(err)})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	ok, msg := h.sessions.Register(c.Request.Context(), req)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	h.authenticated(c, http.StatusCreated, "registered")
}
