// Package middleware provides the Gin middleware for the HTTP layer.
package middleware

import (
	"net/http"
	"strings"

	"campus-rag-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// ClaimsKey is the context key under which verified JWT claims are stored.
const ClaimsKey = "claims"

// AuthMiddleware verifies the Bearer token and stores its claims in the
// request context. WebSocket clients cannot set headers, so a "token" query
// parameter is accepted as a fallback.
func AuthMiddleware(jwtManager *token.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization token"})
			return
		}

		claims, err := jwtManager.VerifyToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return ""
	}
	return strings.TrimPrefix(authHeader, bearerPrefix)
}

// CurrentClaims returns the verified claims set by AuthMiddleware.
func CurrentClaims(c *gin.Context) *token.CustomClaims {
	value, ok := c.Get(ClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := value.(*token.CustomClaims)
	return claims
}
