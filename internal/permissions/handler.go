package permissions

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shul-site/backend/pkg/response"
)

// GrantRequest is the body for POST and DELETE /permissions.
type GrantRequest struct {
	UserID    uuid.UUID `json:"user_id" binding:"required"`
	SectionID string    `json:"section_id" binding:"required"`
}

// Handler handles permission HTTP endpoints.
type Handler struct {
	gate   *Service
	logger *zap.Logger
}

// NewHandler creates a permissions handler.
func NewHandler(gate *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{gate: gate, logger: logger}
}

// Mine handles GET /me/permissions.
func (h *Handler) Mine(c *gin.Context) {
	p, ok := PrincipalFromContext(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	response.OK(c, h.gate.Editable(c.Request.Context(), p))
}

// ForUser handles GET /users/:id/permissions (super-admin).
func (h *Handler) ForUser(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	response.OK(c, gin.H{"user_id": userID, "sections": h.gate.GetUserPermissions(c.Request.Context(), userID)})
}

// Grant handles POST /permissions.
func (h *Handler) Grant(c *gin.Context) {
	actor, req, ok := h.bind(c)
	if !ok {
		return
	}
	g, err := h.gate.Grant(c.Request.Context(), actor, req.UserID, req.SectionID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, g)
}

// Revoke handles DELETE /permissions.
func (h *Handler) Revoke(c *gin.Context) {
	actor, req, ok := h.bind(c)
	if !ok {
		return
	}
	if err := h.gate.Revoke(c.Request.Context(), actor, req.UserID, req.SectionID); err != nil {
		h.fail(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) bind(c *gin.Context) (Principal, GrantRequest, bool) {
	var req GrantRequest
	actor, ok := PrincipalFromContext(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return actor, req, false
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return actor, req, false
	}
	return actor, req, true
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotSuperAdmin):
		response.Forbidden(c, err.Error())
	case errors.Is(err, ErrInvalidSection):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrUserNotFound):
		response.NotFound(c, err.Error())
	default:
		h.logger.Error("permission update failed", zap.Error(err))
		response.Internal(c, "failed to update permission")
	}
}
