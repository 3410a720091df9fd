package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ContextKeyUsername is the gin context key holding the token subject.
const ContextKeyUsername = "username"

// GinRequireAuth is the gin form of RequireAuth. Besides the request
// context it stores the username under ContextKeyUsername.
func GinRequireAuth(auth *AuthMiddleware) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := auth.authenticate(c.Request)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Request = c.Request.WithContext(withClaims(c.Request.Context(), claims))
		c.Set(ContextKeyUsername, claims.Subject)
		c.Next()
	}
}
