package permissions

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shul-site/backend/internal/middleware"
	"github.com/shul-site/backend/internal/models"
)

func withPrincipal(p Principal) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserID, p.UserID)
		c.Set(middleware.ContextUserRole, string(p.Role))
		c.Next()
	}
}

func ok(c *gin.Context) { c.Status(http.StatusOK) }

func serve(r *gin.Engine, method, path string) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRequireSectionPermission(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	gate := NewService(newMemStore(), nil)
	editor := Principal{UserID: uuid.New(), Role: models.RoleAdmin}
	_, err := gate.Grant(ctx, Principal{UserID: uuid.New(), Role: models.RoleSuperAdmin}, editor.UserID, "history")
	require.NoError(t, err)

	r := gin.New()
	r.PUT("/sections/:id", withPrincipal(editor), RequireSectionPermission(gate, "id"), ok)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodPut, "/sections/history"))
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodPut, "/sections/about"))

	anon := gin.New()
	anon.PUT("/sections/:id", RequireSectionPermission(gate, "id"), ok)
	assert.Equal(t, http.StatusUnauthorized, serve(anon, http.MethodPut, "/sections/history"))
}

func TestRequirePostPermission(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	gate := NewService(newMemStore(), nil)
	editor := Principal{UserID: uuid.New(), Role: models.RoleAdmin}
	_, err := gate.Grant(ctx, Principal{UserID: uuid.New(), Role: models.RoleSuperAdmin}, editor.UserID, "posts-news")
	require.NoError(t, err)

	categories := map[string]string{"1": "news", "2": "events"}
	resolve := func(c *gin.Context) (string, error) {
		cat, found := categories[c.Param("id")]
		if !found {
			return "", ErrResourceNotFound
		}
		return cat, nil
	}

	r := gin.New()
	r.DELETE("/posts/:id", withPrincipal(editor), RequirePostPermission(gate, resolve), ok)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodDelete, "/posts/1"))
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodDelete, "/posts/2"))
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodDelete, "/posts/3"))
}
