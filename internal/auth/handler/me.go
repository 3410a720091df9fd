package handler

import (
	"errors"
	"net/http"

	"identity-service/internal/account"
	"identity-service/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Me returns the account behind the bearer token. The account is read
// from the store so role or email changes show up before the token expires.
func (h *Handler) Me(c *gin.Context) {
	username, ok := middleware.UsernameFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	acc, err := h.accounts.FindByUsername(c.Request.Context(), username)
	if errors.Is(err, account.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if err != nil {
		h.log.Error("load current user failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}

	c.JSON(http.StatusOK, newAuthResponse("", acc))
}
