package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"qsec/internal/middleware"
)

type LoginRequest struct {
	Username string `json:"username" binding:"required,max=64"`
	Password string `json:"password" binding:"required,max=128"`
}

// Login exchanges operator credentials for a bearer token.
func (h *Handlers) Login(c *gin.Context) {
	if !h.auth.Enabled() {
		c.JSON(http.StatusNotFound, gin.H{"error": "Authentication is disabled"})
		return
	}
	var req LoginRequest
	if !middleware.BindJSON(c, &req) {
		return
	}
	username := middleware.SanitizeString(req.Username)
	token, err := h.auth.Login(username, req.Password)
	if err != nil {
		if errors.Is(err, middleware.ErrInvalidCredentials) {
			h.log.Writef("Failed login for %q from %s", username, c.ClientIP())
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
			return
		}
		h.log.Writef("Token issue failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}
	h.log.Writef("Operator %s logged in from %s", username, c.ClientIP())
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_in": int(middleware.TokenExpiry.Seconds()),
	})
}
