package storefront

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shul-site/backend/internal/cart"
	"github.com/shul-site/backend/internal/catalog"
	"github.com/shul-site/backend/internal/checkout"
	"github.com/shul-site/backend/pkg/response"
)

// FocusCartSummary tells the page to bring the cart summary into view after an add.
const FocusCartSummary = "cart-summary"

// CreateCartRequest is the body for POST /carts.
type CreateCartRequest struct {
	Catalog string `json:"catalog" binding:"required"`
}

// AddItemRequest is the body for POST /carts/:id/items.
type AddItemRequest struct {
	ItemID string `json:"item_id" binding:"required"`
}

// UpdateQuantityRequest is the body for PATCH /carts/:id/items/:itemId.
type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

// NoteRequest is the body for PUT /carts/:id/note.
type NoteRequest struct {
	Note string `json:"note"`
}

// ApproveRequest is the body for POST /carts/:id/checkout/approve.
type ApproveRequest struct {
	OrderID string `json:"order_id" binding:"required"`
}

// ErrorRequest is the body for POST /carts/:id/checkout/error.
type ErrorRequest struct {
	Reason string `json:"reason"`
}

// AddItemResponse carries the cart and, when the cart changed, a focus hint.
type AddItemResponse struct {
	Cart  View   `json:"cart"`
	Added bool   `json:"added"`
	Focus string `json:"focus,omitempty"`
}

// CatalogSummary is one entry of GET /catalogs.
type CatalogSummary struct {
	Key   string       `json:"key"`
	Copy  catalog.Copy `json:"copy"`
	Items int          `json:"items"`
}

// CatalogResponse is the body of GET /catalogs/:catalog.
type CatalogResponse struct {
	Key             string         `json:"key"`
	Copy            catalog.Copy   `json:"copy"`
	Items           []catalog.Item `json:"items"`
	CheckoutEnabled bool           `json:"checkout_enabled"`
}

// Handler handles catalog and cart HTTP endpoints.
type Handler struct {
	svc      *Service
	catalogs *catalog.Registry
	logger   *zap.Logger
}

// NewHandler creates a storefront handler.
func NewHandler(svc *Service, catalogs *catalog.Registry, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, catalogs: catalogs, logger: logger}
}

// Register mounts the public storefront routes.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/catalogs", h.ListCatalogs)
	r.GET("/catalogs/:catalog", h.GetCatalog)

	carts := r.Group("/carts")
	carts.POST("", h.Create)
	carts.GET("/:id", h.Get)
	carts.DELETE("/:id", h.Delete)
	carts.POST("/:id/items", h.AddItem)
	carts.PATCH("/:id/items/:itemId", h.UpdateQuantity)
	carts.DELETE("/:id/items/:itemId", h.RemoveItem)
	carts.PUT("/:id/note", h.SetNote)
	carts.POST("/:id/checkout", h.Checkout)
	carts.POST("/:id/checkout/approve", h.Approve)
	carts.POST("/:id/checkout/cancel", h.Cancel)
	carts.POST("/:id/checkout/error", h.ReportError)
	carts.POST("/:id/checkout/retry", h.Retry)
	carts.POST("/:id/checkout/reset", h.Reset)
}

// ListCatalogs handles GET /catalogs.
func (h *Handler) ListCatalogs(c *gin.Context) {
	keys := h.catalogs.Keys()
	list := make([]CatalogSummary, 0, len(keys))
	for _, k := range keys {
		cat, err := h.catalogs.Get(k)
		if err != nil {
			continue
		}
		list = append(list, CatalogSummary{Key: k, Copy: cat.Copy(), Items: len(cat.Items())})
	}
	response.OK(c, list)
}

// GetCatalog handles GET /catalogs/:catalog.
func (h *Handler) GetCatalog(c *gin.Context) {
	cat, err := h.catalogs.Get(c.Param("catalog"))
	if err != nil {
		response.NotFound(c, "catalog not found")
		return
	}
	response.OK(c, CatalogResponse{
		Key:             cat.Key(),
		Copy:            cat.Copy(),
		Items:           cat.Items(),
		CheckoutEnabled: h.svc.CheckoutEnabled(),
	})
}

// Create handles POST /carts.
func (h *Handler) Create(c *gin.Context) {
	var req CreateCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	view, err := h.svc.Create(c.Request.Context(), req.Catalog)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, view)
}

// Get handles GET /carts/:id.
func (h *Handler) Get(c *gin.Context) {
	view, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	h.reply(c, view, err)
}

// Delete handles DELETE /carts/:id.
func (h *Handler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	response.NoContent(c)
}

// AddItem handles POST /carts/:id/items.
func (h *Handler) AddItem(c *gin.Context) {
	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	view, added, err := h.svc.AddItem(c.Request.Context(), c.Param("id"), req.ItemID)
	if err != nil {
		h.fail(c, err)
		return
	}
	resp := AddItemResponse{Cart: view, Added: added}
	if added {
		resp.Focus = FocusCartSummary
	}
	response.OK(c, resp)
}

// UpdateQuantity handles PATCH /carts/:id/items/:itemId.
func (h *Handler) UpdateQuantity(c *gin.Context) {
	var req UpdateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	view, err := h.svc.UpdateQuantity(c.Request.Context(), c.Param("id"), c.Param("itemId"), *req.Quantity)
	h.reply(c, view, err)
}

// RemoveItem handles DELETE /carts/:id/items/:itemId.
func (h *Handler) RemoveItem(c *gin.Context) {
	view, err := h.svc.RemoveItem(c.Request.Context(), c.Param("id"), c.Param("itemId"))
	h.reply(c, view, err)
}

// SetNote handles PUT /carts/:id/note.
func (h *Handler) SetNote(c *gin.Context) {
	var req NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	view, err := h.svc.SetNote(c.Request.Context(), c.Param("id"), req.Note)
	h.reply(c, view, err)
}

// Checkout handles POST /carts/:id/checkout.
func (h *Handler) Checkout(c *gin.Context) {
	view, err := h.svc.Checkout(c.Request.Context(), c.Param("id"))
	h.reply(c, view, err)
}

// Approve handles POST /carts/:id/checkout/approve.
func (h *Handler) Approve(c *gin.Context) {
	var req ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	view, err := h.svc.Approve(c.Request.Context(), c.Param("id"), req.OrderID)
	h.reply(c, view, err)
}

// Cancel handles POST /carts/:id/checkout/cancel.
func (h *Handler) Cancel(c *gin.Context) {
	view, err := h.svc.Cancel(c.Request.Context(), c.Param("id"))
	h.reply(c, view, err)
}

// ReportError handles POST /carts/:id/checkout/error.
func (h *Handler) ReportError(c *gin.Context) {
	var req ErrorRequest
	_ = c.ShouldBindJSON(&req)
	view, err := h.svc.ReportError(c.Request.Context(), c.Param("id"), req.Reason)
	h.reply(c, view, err)
}

// Retry handles POST /carts/:id/checkout/retry.
func (h *Handler) Retry(c *gin.Context) {
	view, err := h.svc.Retry(c.Request.Context(), c.Param("id"))
	h.reply(c, view, err)
}

// Reset handles POST /carts/:id/checkout/reset.
func (h *Handler) Reset(c *gin.Context) {
	view, err := h.svc.Reset(c.Request.Context(), c.Param("id"))
	h.reply(c, view, err)
}

func (h *Handler) reply(c *gin.Context, view View, err error) {
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, view)
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		response.NotFound(c, "cart not found")
	case errors.Is(err, catalog.ErrNotFound):
		response.NotFound(c, "catalog not found")
	case errors.Is(err, checkout.ErrNotConfigured):
		response.ServiceUnavailable(c, err.Error())
	case errors.Is(err, ErrCheckoutInProgress),
		errors.Is(err, ErrSessionBusy),
		errors.Is(err, checkout.ErrInvalidTransition),
		errors.Is(err, checkout.ErrOrderMismatch):
		response.Conflict(c, err.Error())
	case errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, checkout.ErrNothingToPay),
		errors.Is(err, cart.ErrInvalidQuantity):
		response.BadRequest(c, err.Error())
	default:
		h.logger.Error("storefront request failed", zap.Error(err), zap.String("path", c.FullPath()))
		response.Internal(c, "internal error")
	}
}
