package middleware

import (
	"tutorbot-backend/utils"

	"github.com/gin-gonic/gin"
)

// RequireRole allows the request through only when the authenticated
// role is one of the listed roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(c *gin.Context) {
		if !allowed[GetRole(c)] {
			utils.RespondWithForbidden(c, "Insufficient permissions for this operation")
			c.Abort()
			return
		}
		c.Next()
	}
}

// AdminGuard restricts a route group to course administrators.
func AdminGuard() gin.HandlerFunc {
	return RequireRole("admin", "instructor")
}
