package permissions

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shul-site/backend/internal/models"
)

func postGrant(t *testing.T, r *gin.Engine, req GrantRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	httpReq := httptest.NewRequest(http.MethodPost, "/permissions", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, httpReq)
	return w
}

func TestGrantHandlerStatuses(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := new(MockStore)
	missing := uuid.New()
	store.On("Upsert", mock.Anything, mock.MatchedBy(func(g *models.PermissionGrant) bool { return g.UserID == missing })).
		Return(ErrUserNotFound)
	store.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	h := NewHandler(NewService(store, nil), nil)

	super := gin.New()
	super.POST("/permissions", withPrincipal(Principal{UserID: uuid.New(), Role: models.RoleSuperAdmin}), h.Grant)

	w := postGrant(t, super, GrantRequest{UserID: uuid.New(), SectionID: "History"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"content_section_id":"history"`)

	w = postGrant(t, super, GrantRequest{UserID: missing, SectionID: "history"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), ErrUserNotFound.Error())

	w = postGrant(t, super, GrantRequest{UserID: uuid.New(), SectionID: "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	editor := gin.New()
	editor.POST("/permissions", withPrincipal(Principal{UserID: uuid.New(), Role: models.RoleAdmin}), h.Grant)
	w = postGrant(t, editor, GrantRequest{UserID: uuid.New(), SectionID: "history"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}
