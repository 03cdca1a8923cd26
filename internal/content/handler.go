package content

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shul-site/backend/internal/models"
	"github.com/shul-site/backend/internal/permissions"
	"github.com/shul-site/backend/pkg/response"
	"github.com/shul-site/backend/pkg/storage"
)

var sectionIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,62}$`)

// ImageStore is satisfied by *storage.S3.
type ImageStore interface {
	UploadImage(ctx context.Context, key, contentType string, body io.Reader, contentLength int64) (string, error)
	DeleteImage(ctx context.Context, key string) error
	KeyFromURL(url string) (string, bool)
}

// UpsertSectionRequest is the body for PUT /sections/:id.
type UpsertSectionRequest struct {
	Key      string             `json:"key" binding:"required"`
	Title    string             `json:"title" binding:"required"`
	Type     models.SectionType `json:"type" binding:"required"`
	Body     json.RawMessage    `json:"body"`
	ImageURL string             `json:"image_url"`
}

// Handler handles content section HTTP endpoints.
type Handler struct {
	store  Store
	images ImageStore
	logger *zap.Logger
}

// NewHandler creates a content handler. images may be nil when no bucket is configured.
func NewHandler(store Store, images ImageStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, images: images, logger: logger}
}

// List handles GET /sections.
func (h *Handler) List(c *gin.Context) {
	list, err := h.store.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list sections failed", zap.Error(err))
		response.Internal(c, "failed to list sections")
		return
	}
	response.OK(c, list)
}

// Get handles GET /sections/:id.
func (h *Handler) Get(c *gin.Context) {
	s, err := h.store.GetByID(c.Request.Context(), c.Param("id"))
	h.reply(c, s, err)
}

// GetByKey handles GET /section-keys/:key.
func (h *Handler) GetByKey(c *gin.Context) {
	s, err := h.store.GetByKey(c.Request.Context(), c.Param("key"))
	h.reply(c, s, err)
}

// Upsert handles PUT /sections/:id. Route must be guarded by permissions.RequireSectionPermission.
func (h *Handler) Upsert(c *gin.Context) {
	id := c.Param("id")
	if !sectionIDPattern.MatchString(id) {
		response.BadRequest(c, "invalid section id")
		return
	}
	var req UpsertSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if !validType(req.Type) {
		response.BadRequest(c, "type must be text, image or list")
		return
	}
	body := req.Body
	if len(body) == 0 {
		body = json.RawMessage(`{}`)
	}
	if !json.Valid(body) {
		response.BadRequest(c, "body must be valid JSON")
		return
	}

	s := &models.ContentSection{
		ID:       id,
		Key:      strings.TrimSpace(req.Key),
		Title:    strings.TrimSpace(req.Title),
		Type:     req.Type,
		Body:     body,
		ImageURL: strings.TrimSpace(req.ImageURL),
	}
	if p, ok := permissions.PrincipalFromContext(c); ok {
		s.UpdatedBy = &p.UserID
	}
	if err := h.store.Upsert(c.Request.Context(), s); err != nil {
		h.logger.Error("upsert section failed", zap.String("section_id", id), zap.Error(err))
		response.Internal(c, "failed to save section")
		return
	}
	response.OK(c, s)
}

// UploadImage handles POST /sections/:id/image (multipart field "image").
func (h *Handler) UploadImage(c *gin.Context) {
	if h.images == nil {
		response.ServiceUnavailable(c, "image storage not configured")
		return
	}
	ctx := c.Request.Context()
	s, err := h.store.GetByID(ctx, c.Param("id"))
	if err != nil {
		h.reply(c, nil, err)
		return
	}

	file, err := c.FormFile("image")
	if err != nil {
		response.BadRequest(c, "image file is required")
		return
	}
	if file.Size > storage.MaxImageSize {
		response.BadRequest(c, "image is too large")
		return
	}
	contentType := file.Header.Get("Content-Type")
	if !storage.ValidateImageType(contentType, file.Filename) {
		response.BadRequest(c, "unsupported image type")
		return
	}
	if _, ok := storage.AllowedImageTypes[strings.ToLower(contentType)]; !ok {
		contentType = storage.ContentTypeForFilename(file.Filename)
	}
	f, err := file.Open()
	if err != nil {
		response.BadRequest(c, "cannot read image")
		return
	}
	defer f.Close()

	url, err := h.images.UploadImage(ctx, storage.ImageKey(storage.FolderSections, s.ID, file.Filename), contentType, f, file.Size)
	if err != nil {
		h.logger.Error("section image upload failed", zap.String("section_id", s.ID), zap.Error(err))
		response.Internal(c, "failed to upload image")
		return
	}

	previous := s.ImageURL
	s.ImageURL = url
	if p, ok := permissions.PrincipalFromContext(c); ok {
		s.UpdatedBy = &p.UserID
	}
	if err := h.store.Upsert(ctx, s); err != nil {
		h.logger.Error("save section image failed", zap.String("section_id", s.ID), zap.Error(err))
		response.Internal(c, "failed to save section")
		return
	}
	h.dropImage(ctx, previous)
	response.OK(c, s)
}

// Delete handles DELETE /sections/:id (super-admin).
func (h *Handler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	s, err := h.store.GetByID(ctx, c.Param("id"))
	if err != nil {
		h.reply(c, nil, err)
		return
	}
	if err := h.store.Delete(ctx, s.ID); err != nil {
		h.reply(c, nil, err)
		return
	}
	h.dropImage(ctx, s.ImageURL)
	response.NoContent(c)
}

// dropImage removes an image we uploaded earlier; failures only leave an orphan object.
func (h *Handler) dropImage(ctx context.Context, url string) {
	if h.images == nil || url == "" {
		return
	}
	key, ok := h.images.KeyFromURL(url)
	if !ok {
		return
	}
	if err := h.images.DeleteImage(ctx, key); err != nil {
		h.logger.Warn("delete old image failed", zap.String("key", key), zap.Error(err))
	}
}

func (h *Handler) reply(c *gin.Context, s *models.ContentSection, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "section not found")
	case err != nil:
		h.logger.Error("section lookup failed", zap.Error(err))
		response.Internal(c, "failed to load section")
	default:
		response.OK(c, s)
	}
}

func validType(t models.SectionType) bool {
	switch t {
	case models.SectionText, models.SectionImage, models.SectionList:
		return true
	}
	return false
}
