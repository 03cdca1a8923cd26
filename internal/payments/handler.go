package payments

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shul-site/backend/pkg/response"
)

// Handler handles payment HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a payments handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /payments?catalog=&limit= (super-admin only).
func (h *Handler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := h.repo.ListRecent(c.Request.Context(), c.Query("catalog"), limit)
	if err != nil {
		h.logger.Error("list payments failed", zap.Error(err))
		response.Internal(c, "failed to list payments")
		return
	}
	response.OK(c, list)
}
