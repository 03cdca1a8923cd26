package content

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shul-site/backend/internal/middleware"
	"github.com/shul-site/backend/internal/models"
)

type memStore struct {
	mu       sync.Mutex
	sections map[string]models.ContentSection
}

func (m *memStore) GetByID(_ context.Context, id string) (*models.ContentSection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sections[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *memStore) GetByKey(_ context.Context, key string) (*models.ContentSection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sections {
		if s.Key == key {
			return &s, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) List(_ context.Context) ([]models.ContentSection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := []models.ContentSection{}
	for _, s := range m.sections {
		list = append(list, s)
	}
	return list, nil
}

func (m *memStore) Upsert(_ context.Context, s *models.ContentSection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sections[s.ID] = *s
	return nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sections[id]; !ok {
		return ErrNotFound
	}
	delete(m.sections, id)
	return nil
}

type MockImages struct {
	mock.Mock
}

func (m *MockImages) UploadImage(ctx context.Context, key, contentType string, body io.Reader, n int64) (string, error) {
	args := m.Called(ctx, key, contentType, body, n)
	return args.String(0), args.Error(1)
}

func (m *MockImages) DeleteImage(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockImages) KeyFromURL(url string) (string, bool) {
	const prefix = "https://img.test/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, prefix), true
}

func setup(images ImageStore) (*gin.Engine, *memStore, uuid.UUID) {
	gin.SetMode(gin.TestMode)
	store := &memStore{sections: map[string]models.ContentSection{}}
	h := NewHandler(store, images, nil)
	editor := uuid.New()

	r := gin.New()
	r.GET("/sections", h.List)
	r.GET("/sections/:id", h.Get)
	r.GET("/section-keys/:key", h.GetByKey)
	admin := r.Group("", func(c *gin.Context) {
		c.Set(middleware.ContextUserID, editor)
		c.Set(middleware.ContextUserRole, string(models.RoleAdmin))
	})
	admin.PUT("/sections/:id", h.Upsert)
	admin.POST("/sections/:id/image", h.UploadImage)
	admin.DELETE("/sections/:id", h.Delete)
	return r, store, editor
}

func send(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestUpsertAndRead(t *testing.T) {
	r, store, editor := setup(nil)

	w := send(r, http.MethodPut, "/sections/history", UpsertSectionRequest{
		Key: "about.history", Title: "Our History", Type: models.SectionText,
		Body: json.RawMessage(`{"html":"<p>Founded in 1911</p>"}`),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	saved := store.sections["history"]
	require.NotNil(t, saved.UpdatedBy)
	assert.Equal(t, editor, *saved.UpdatedBy)

	assert.Equal(t, http.StatusOK, send(r, http.MethodGet, "/sections/history", nil).Code)
	assert.Equal(t, http.StatusOK, send(r, http.MethodGet, "/section-keys/about.history", nil).Code)
	assert.Equal(t, http.StatusNotFound, send(r, http.MethodGet, "/section-keys/about.board", nil).Code)
	assert.Equal(t, http.StatusNotFound, send(r, http.MethodGet, "/sections/board", nil).Code)
}

func TestUpsertValidation(t *testing.T) {
	r, _, _ := setup(nil)
	assert.Equal(t, http.StatusBadRequest, send(r, http.MethodPut, "/sections/history",
		UpsertSectionRequest{Key: "k", Title: "t", Type: "video"}).Code)
	assert.Equal(t, http.StatusBadRequest, send(r, http.MethodPut, "/sections/Bad_ID",
		UpsertSectionRequest{Key: "k", Title: "t", Type: models.SectionText}).Code)
	assert.Equal(t, http.StatusBadRequest, send(r, http.MethodPut, "/sections/history",
		map[string]string{"title": "no key"}).Code)
}

func imageRequest(t *testing.T, path string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="image"; filename="sanctuary.png"`)
	hdr.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, _ = part.Write([]byte("\x89PNG fake"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadImageReplacesPrevious(t *testing.T) {
	images := new(MockImages)
	r, store, _ := setup(images)
	store.sections["sanctuary"] = models.ContentSection{ID: "sanctuary", Key: "home.sanctuary", Type: models.SectionImage,
		ImageURL: "https://img.test/sections/sanctuary/old.png"}

	images.On("UploadImage", mock.Anything, mock.MatchedBy(func(k string) bool {
		return strings.HasPrefix(k, "sections/sanctuary/") && strings.HasSuffix(k, ".png")
	}), "image/png", mock.Anything, mock.Anything).Return("https://img.test/sections/sanctuary/new.png", nil)
	images.On("DeleteImage", mock.Anything, "sections/sanctuary/old.png").Return(nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, imageRequest(t, "/sections/sanctuary/image"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "https://img.test/sections/sanctuary/new.png", store.sections["sanctuary"].ImageURL)
	images.AssertExpectations(t)
}

func TestUploadWithoutStorage(t *testing.T) {
	r, store, _ := setup(nil)
	store.sections["sanctuary"] = models.ContentSection{ID: "sanctuary"}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, imageRequest(t, "/sections/sanctuary/image"))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestDeleteDropsImage(t *testing.T) {
	images := new(MockImages)
	r, store, _ := setup(images)
	store.sections["board"] = models.ContentSection{ID: "board", ImageURL: "https://img.test/sections/board/a.jpg"}
	images.On("DeleteImage", mock.Anything, "sections/board/a.jpg").Return(nil)

	assert.Equal(t, http.StatusNoContent, send(r, http.MethodDelete, "/sections/board", nil).Code)
	assert.Empty(t, store.sections)
	assert.Equal(t, http.StatusNotFound, send(r, http.MethodDelete, "/sections/board", nil).Code)
	images.AssertExpectations(t)
}
