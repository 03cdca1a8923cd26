package permissions

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/shul-site/backend/internal/middleware"
	"github.com/shul-site/backend/pkg/response"
)

// ErrResourceNotFound lets a CategoryResolver report a missing post.
var ErrResourceNotFound = errors.New("resource not found")

// CategoryResolver returns the post category a request targets.
type CategoryResolver func(c *gin.Context) (string, error)

// PrincipalFromContext builds the principal set by middleware.JWT.
func PrincipalFromContext(c *gin.Context) (Principal, bool) {
	idVal, ok := c.Get(middleware.ContextUserID)
	if !ok {
		return Principal{}, false
	}
	id, ok := idVal.(uuid.UUID)
	if !ok {
		return Principal{}, false
	}
	role, _ := middleware.RoleFromContext(c)
	return Principal{UserID: id, Role: role}, true
}

// RequireSectionPermission allows the request only if the caller may edit the
// section named by the route param. Call after JWT.
func RequireSectionPermission(gate *Service, param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFromContext(c)
		if !ok {
			response.Abort(c, http.StatusUnauthorized, "missing user context")
			return
		}
		sectionID := c.Param(param)
		if sectionID == "" {
			response.Abort(c, http.StatusBadRequest, "missing section id")
			return
		}
		if !gate.HasContentPermission(c.Request.Context(), p, sectionID) {
			response.Abort(c, http.StatusForbidden, "not authorized to edit this section")
			return
		}
		c.Next()
	}
}

// RequirePostPermission allows the request only if the caller may edit posts
// in the category returned by resolve. Call after JWT.
func RequirePostPermission(gate *Service, resolve CategoryResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFromContext(c)
		if !ok {
			response.Abort(c, http.StatusUnauthorized, "missing user context")
			return
		}
		category, err := resolve(c)
		if errors.Is(err, ErrResourceNotFound) {
			response.Abort(c, http.StatusNotFound, "post not found")
			return
		}
		if err != nil {
			response.Abort(c, http.StatusBadRequest, err.Error())
			return
		}
		if !gate.HasPostPermission(c.Request.Context(), p, category) {
			response.Abort(c, http.StatusForbidden, "not authorized to edit this category")
			return
		}
		c.Next()
	}
}
