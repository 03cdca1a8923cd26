package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shul-site/backend/internal/models"
	"github.com/shul-site/backend/pkg/response"
)

// RequireRole lets through only callers whose token carries one of roles. Call after JWT.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		role, ok := RoleFromContext(c)
		if !ok {
			response.Abort(c, http.StatusUnauthorized, "missing user context")
			return
		}
		if _, ok := allowed[role]; !ok {
			response.Abort(c, http.StatusForbidden, "insufficient permissions")
			return
		}
		c.Next()
	}
}

// RoleFromContext returns the role JWT stored for this request.
func RoleFromContext(c *gin.Context) (models.Role, bool) {
	v, ok := c.Get(ContextUserRole)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return models.Role(s), s != ""
}
