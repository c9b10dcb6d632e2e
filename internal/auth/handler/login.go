package handler

import (
	"net/http"

	"storefront-auth/internal/session"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	ok, msg := h.sessions.Login(c.Request.Context(), req.Email, req.Password)
	if !ok {
		status := http.StatusUnauthorized
		if msg == session.MsgServiceUnavailable {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}

	h.authenticated(c, http.StatusOK, "logged_in")
}
