package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/shul-site/backend/internal/auth"
	"github.com/shul-site/backend/pkg/response"
)

const (
	ContextUserID    = "user_id"    // uuid.UUID
	ContextUserRole  = "user_role"  // string form of models.Role
	ContextUserEmail = "user_email" // string
)

// TokenValidator is satisfied by *auth.JWTService.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// JWT validates the bearer token and stores the editor's identity in the gin context.
func JWT(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.Abort(c, http.StatusUnauthorized, "missing or invalid authorization header")
			return
		}
		claims, err := tokens.Validate(token)
		if errors.Is(err, auth.ErrExpiredToken) {
			response.Abort(c, http.StatusUnauthorized, "token expired")
			return
		}
		if err != nil {
			response.Abort(c, http.StatusUnauthorized, "invalid token")
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserRole, string(claims.Role))
		c.Set(ContextUserEmail, claims.Email)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	token = strings.TrimSpace(token)
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}
