package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shul-site/backend/internal/auth"
	"github.com/shul-site/backend/internal/models"
)

func init() { gin.SetMode(gin.TestMode) }

func do(r *gin.Engine, header string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAndRequireRole(t *testing.T) {
	jwt := auth.NewJWTService("secret", 1)
	r := gin.New()
	r.GET("/x", JWT(jwt), RequireRole(models.RoleSuperAdmin), func(c *gin.Context) {
		id := c.MustGet(ContextUserID).(uuid.UUID)
		c.String(http.StatusOK, id.String())
	})

	super := uuid.New()
	token, err := jwt.Generate(&models.User{ID: super, Email: "gabbai@example.org", Role: models.RoleSuperAdmin})
	require.NoError(t, err)
	w := do(r, "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, super.String(), w.Body.String())

	adminToken, err := jwt.Generate(&models.User{ID: uuid.New(), Email: "editor@example.org", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, do(r, "Bearer "+adminToken).Code)

	assert.Equal(t, http.StatusUnauthorized, do(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "Bearer nope").Code)
}

func TestRequireRoleWithoutJWT(t *testing.T) {
	r := gin.New()
	r.GET("/x", RequireRole(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusUnauthorized, do(r, "").Code)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS("https://shul.example.org"))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://shul.example.org")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://shul.example.org", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
