package middleware

import (
	"net/http"
	"strings"

	"coursebook/models"
	"coursebook/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Context keys set by JWTAuthMiddleware.
const (
	ContextUserID = "userID"
	ContextRole   = "role"
)

// TokenParser is the slice of utils.TokenManager the middleware needs.
type TokenParser interface {
	ParseClaims(tokenString string) (*utils.TokenClaims, error)
}

// JWTAuthMiddleware verifies the bearer token and stores the caller's id and
// role in the gin context.
func JWTAuthMiddleware(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}
		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}

		claims, err := tokens.ParseClaims(tokenString)
		if err != nil {
			zap.L().Debug("Rejected access token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(ContextUserID, claims.Subject)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

// RequesterFromContext returns the authenticated caller set by JWTAuthMiddleware.
func RequesterFromContext(c *gin.Context) (models.Requester, bool) {
	id := c.GetString(ContextUserID)
	if id == "" {
		return models.Requester{}, false
	}
	return models.Requester{ID: id, Role: c.GetString(ContextRole)}, true
}
