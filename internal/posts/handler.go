package posts

import (
	"context"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shul-site/backend/internal/models"
	"github.com/shul-site/backend/internal/permissions"
	"github.com/shul-site/backend/pkg/response"
	"github.com/shul-site/backend/pkg/storage"
)

var categoryPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,40}$`)

// Gate is satisfied by *permissions.Service.
type Gate interface {
	HasPostPermission(ctx context.Context, p permissions.Principal, category string) bool
}

// ImageStore is satisfied by *storage.S3.
type ImageStore interface {
	UploadImage(ctx context.Context, key, contentType string, body io.Reader, contentLength int64) (string, error)
}

// PostRequest is the body for POST /posts and PUT /posts/:id.
type PostRequest struct {
	Category  string     `json:"category" binding:"required"`
	Title     string     `json:"title" binding:"required"`
	Body      string     `json:"body"`
	ImageURL  string     `json:"image_url"`
	Published bool       `json:"published"`
	PublishAt *time.Time `json:"publish_at"`
}

// Handler handles post HTTP endpoints.
type Handler struct {
	store  Store
	gate   Gate
	images ImageStore
	logger *zap.Logger
	now    func() time.Time
}

// NewHandler creates a posts handler. images may be nil.
func NewHandler(store Store, gate Gate, images ImageStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, gate: gate, images: images, logger: logger, now: time.Now}
}

// CategoryOf resolves the category of the post in the :id route param, for permissions.RequirePostPermission.
func (h *Handler) CategoryOf(c *gin.Context) (string, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return "", errors.New("invalid post id")
	}
	p, err := h.store.GetByID(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		return "", permissions.ErrResourceNotFound
	}
	if err != nil {
		return "", err
	}
	return p.Category, nil
}

// List handles GET /posts?category=&limit=&offset=. Only published posts are public.
func (h *Handler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	list, err := h.store.List(c.Request.Context(), ListFilter{
		Category:      c.Query("category"),
		PublishedOnly: true,
		Now:           h.now(),
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		h.logger.Error("list posts failed", zap.Error(err))
		response.Internal(c, "failed to list posts")
		return
	}
	response.OK(c, list)
}

// Get handles GET /posts/:id. Drafts and scheduled posts are hidden.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid post id")
		return
	}
	p, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !visible(p, h.now()) {
		response.NotFound(c, "post not found")
		return
	}
	response.OK(c, p)
}

// Create handles POST /posts. The caller needs permission on the target category.
func (h *Handler) Create(c *gin.Context) {
	principal, ok := permissions.PrincipalFromContext(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	req, ok := bindPost(c)
	if !ok {
		return
	}
	if !h.gate.HasPostPermission(c.Request.Context(), principal, req.Category) {
		response.Forbidden(c, "not authorized to edit this category")
		return
	}
	p := &models.Post{
		Category:  req.Category,
		Title:     req.Title,
		Body:      req.Body,
		ImageURL:  req.ImageURL,
		Published: req.Published,
		AuthorID:  principal.UserID,
		PublishAt: req.PublishAt,
	}
	if err := h.store.Create(c.Request.Context(), p); err != nil {
		h.fail(c, err)
		return
	}
	h.logger.Info("post created", zap.String("post_id", p.ID.String()), zap.String("category", p.Category))
	response.Created(c, p)
}

// Update handles PUT /posts/:id. Route must be guarded by permissions.RequirePostPermission;
// moving a post to another category also needs permission there.
func (h *Handler) Update(c *gin.Context) {
	principal, ok := permissions.PrincipalFromContext(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid post id")
		return
	}
	req, ok := bindPost(c)
	if !ok {
		return
	}
	p, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if req.Category != p.Category && !h.gate.HasPostPermission(c.Request.Context(), principal, req.Category) {
		response.Forbidden(c, "not authorized to edit this category")
		return
	}
	p.Category = req.Category
	p.Title = req.Title
	p.Body = req.Body
	p.ImageURL = req.ImageURL
	p.Published = req.Published
	p.PublishAt = req.PublishAt
	if err := h.store.Update(c.Request.Context(), p); err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, p)
}

// Delete handles DELETE /posts/:id. Route must be guarded by permissions.RequirePostPermission.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid post id")
		return
	}
	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	response.NoContent(c)
}

// UploadImage handles POST /posts/:id/image (multipart field "image").
func (h *Handler) UploadImage(c *gin.Context) {
	if h.images == nil {
		response.ServiceUnavailable(c, "image storage not configured")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid post id")
		return
	}
	ctx := c.Request.Context()
	p, err := h.store.GetByID(ctx, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	file, err := c.FormFile("image")
	if err != nil {
		response.BadRequest(c, "image file is required")
		return
	}
	contentType := file.Header.Get("Content-Type")
	if file.Size > storage.MaxImageSize || !storage.ValidateImageType(contentType, file.Filename) {
		response.BadRequest(c, "unsupported or oversized image")
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

	url, err := h.images.UploadImage(ctx, storage.ImageKey(storage.FolderPosts, p.Category, file.Filename), contentType, f, file.Size)
	if err != nil {
		h.logger.Error("post image upload failed", zap.String("post_id", p.ID.String()), zap.Error(err))
		response.Internal(c, "failed to upload image")
		return
	}
	p.ImageURL = url
	if err := h.store.Update(ctx, p); err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, p)
}

func (h *Handler) fail(c *gin.Context, err error) {
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "post not found")
		return
	}
	h.logger.Error("post request failed", zap.Error(err))
	response.Internal(c, "internal error")
}

func bindPost(c *gin.Context) (PostRequest, bool) {
	var req PostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return req, false
	}
	req.Category = strings.ToLower(strings.TrimSpace(req.Category))
	req.Title = strings.TrimSpace(req.Title)
	if !categoryPattern.MatchString(req.Category) {
		response.BadRequest(c, "invalid category")
		return req, false
	}
	return req, true
}

func visible(p *models.Post, now time.Time) bool {
	return p.Published && (p.PublishAt == nil || !p.PublishAt.After(now))
}
