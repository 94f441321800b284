package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"nyumbani/rental/internal/auth"
	"nyumbani/rental/internal/models"
)

const (
	// ContextKeyActor holds the key for the authenticated actor in Gin context.
	ContextKeyActor = "actor"
)

// AuthMiddleware creates a Gin middleware for JWT authentication. On success
// the resolved actor (user ID plus role) is stored in the context.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Authorization header required"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Authorization header format must be Bearer {token}"})
			return
		}

		claims, err := auth.ValidateJWT(parts[1], jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": fmt.Sprintf("Invalid or expired token: %v", err)})
			return
		}

		actor, err := claims.Actor()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid token claims"})
			return
		}

		c.Set(ContextKeyActor, actor)
		c.Next()
	}
}

// RequireRole restricts a route group to one role. Assumes AuthMiddleware
// runs first.
func RequireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := GetActor(c)
		if !ok || actor.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": fmt.Sprintf("%s access required", role)})
			return
		}
		c.Next()
	}
}

// GetActor returns the authenticated actor from the Gin context.
func GetActor(c *gin.Context) (models.Actor, bool) {
	value, exists := c.Get(ContextKeyActor)
	if !exists {
		return models.Actor{}, false
	}
	actor, ok := value.(models.Actor)
	return actor, ok
}
