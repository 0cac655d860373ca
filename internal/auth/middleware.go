package auth

import (
	"net/http"
	"strings"

	"estate/server/internal/estate"

	"github.com/gin-gonic/gin"
)

const CtxUserIDKey = "user_id"

// Middleware resolves the acting user from a bearer token. Requests without
// a token pass through anonymously; a bad token is rejected. An empty secret
// disables token parsing.
func Middleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header must be 'Bearer <token>'"})
			return
		}

		claims, err := ParseToken(secret, parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		c.Set(CtxUserIDKey, claims.UserID)
		c.Request = c.Request.WithContext(estate.WithActor(c.Request.Context(), claims.UserID))
		c.Next()
	}
}
