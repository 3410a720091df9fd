package handler

import (
	"errors"
	"net/http"

	"identity-service/internal/account"
	"identity-service/internal/auth/credentials"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// authResponse mirrors the success redirect fields. Token is omitted by
// /auth/me.
type authResponse struct {
	Token    string `json:"token,omitempty"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role"`
}

func newAuthResponse(signed string, acc *account.Account) authResponse {
	return authResponse{
		Token:    signed,
		Username: acc.Username,
		Email:    acc.Email,
		Role:     string(acc.Role),
	}
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	acc, err := h.credentials.Authenticate(
		c.Request.Context(),
		req.Username,
		req.Password,
	)
	if errors.Is(err, credentials.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if err != nil {
		h.log.Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	signed, err := h.tokens.Issue(acc)
	if err != nil {
		h.log.Error("token issue failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}

	c.JSON(http.StatusOK, newAuthResponse(signed, acc))
}
