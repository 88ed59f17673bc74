package handlers

import (
	"net/http"

	"github.com/aah91/bbq-buddy/internal/models"
	"github.com/aah91/bbq-buddy/internal/services"
	"github.com/aah91/bbq-buddy/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// AssignmentHandler handles the products tab of an event and the draft
// product set of the creation flow.
type AssignmentHandler struct {
	events      *services.EventService
	assignments *services.AssignmentService
	catalog     *services.CatalogService
	tracer      tracing.Tracer
}

// NewAssignmentHandler creates a new assignment handler
func NewAssignmentHandler(events *services.EventService, assignments *services.AssignmentService, catalog *services.CatalogService, tracer tracing.Tracer) *AssignmentHandler {
	return &AssignmentHandler{
		events:      events,
		assignments: assignments,
		catalog:     catalog,
		tracer:      tracer,
	}
}

// ProductRow is one product in the assigned or available column.
type ProductRow struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	IsStandard bool      `json:"is_standard"`
}

// AssignmentResponse is the full products-tab view.
type AssignmentResponse struct {
	Assigned  []ProductRow `json:"assigned"`
	Available []ProductRow `json:"available"`
	Count     int          `json:"count"`
	Editable  bool         `json:"editable"`
}

func (h *AssignmentHandler) toRows(c *gin.Context, products []models.Product) []ProductRow {
	rows := make([]ProductRow, 0, len(products))
	for _, p := range products {
		rows = append(rows, ProductRow{
			ID:         p.ID,
			Name:       p.Name,
			Category:   h.catalog.CategoryName(c, p.CategoryID),
			IsStandard: p.IsStandard,
		})
	}
	return rows
}

func (h *AssignmentHandler) respondView(c *gin.Context) {
	assigned, err := h.assignments.Assigned(c)
	if err != nil {
		respondError(c, err)
		return
	}
	available, err := h.assignments.Available(c, c.Query("q"), c.Query("standard") == "true")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, AssignmentResponse{
		Assigned:  h.toRows(c, assigned),
		Available: h.toRows(c, available),
		Count:     h.assignments.Count(),
		Editable:  h.assignments.BoundStatus().Editable(),
	})
}

// bindEvent points the reconciler at the event named in the path. A request
// naming a different event than the last binding rebinds first, so a stale
// client can never mutate the wrong event's set.
func (h *AssignmentHandler) bindEvent(c *gin.Context) bool {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return false
	}
	if h.assignments.BoundEventID() == id {
		return true
	}

	event, err := h.events.Event(c, id)
	if err != nil {
		respondError(c, err)
		return false
	}
	if err := h.assignments.Bind(c, event.ID, event.Status); err != nil {
		respondError(c, err)
		return false
	}
	return true
}

// GetEventProducts binds the reconciler to the event and returns both columns.
func (h *AssignmentHandler) GetEventProducts(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-event-products")
	defer h.tracer.EndTransaction(txn)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	// Always rebind on the tab view so the editability gate sees the event's
	// current status.
	event, err := h.events.Event(c, id)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}
	if err := h.assignments.Bind(c, event.ID, event.Status); err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}
	h.respondView(c)
}

// AssignProductRequest names the product to add.
type AssignProductRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
}

// AddEventProduct assigns a product to the event named in the path.
func (h *AssignmentHandler) AddEventProduct(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-event-products-add")
	defer h.tracer.EndTransaction(txn)

	if !h.bindEvent(c) {
		return
	}
	var req AssignProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.assignments.Add(c, req.ProductID); err != nil {
		log.Error().Err(err).Str("product_id", req.ProductID.String()).Msg("Failed to assign product")
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}
	h.respondView(c)
}

// RemoveEventProduct unassigns a product from the event named in the path.
func (h *AssignmentHandler) RemoveEventProduct(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-event-products-remove")
	defer h.tracer.EndTransaction(txn)

	if !h.bindEvent(c) {
		return
	}
	h.removeByParam(c)
}

func (h *AssignmentHandler) removeByParam(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("productId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}

	if err := h.assignments.Remove(c, productID); err != nil {
		log.Error().Err(err).Str("product_id", productID.String()).Msg("Failed to unassign product")
		respondError(c, err)
		return
	}
	h.respondView(c)
}

// GetDraftProducts switches the reconciler into draft mode, seeding the draft
// with the standard products on first use.
func (h *AssignmentHandler) GetDraftProducts(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-draft-products")
	defer h.tracer.EndTransaction(txn)

	if err := h.assignments.BindDraft(c); err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}
	h.respondView(c)
}

// AddDraftProduct adds a product to the draft set.
func (h *AssignmentHandler) AddDraftProduct(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-draft-products-add")
	defer h.tracer.EndTransaction(txn)

	if err := h.assignments.BindDraft(c); err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}
	var req AssignProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.assignments.Add(c, req.ProductID); err != nil {
		log.Error().Err(err).Str("product_id", req.ProductID.String()).Msg("Failed to add draft product")
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}
	h.respondView(c)
}

// RemoveDraftProduct removes a product from the draft set.
func (h *AssignmentHandler) RemoveDraftProduct(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-draft-products-remove")
	defer h.tracer.EndTransaction(txn)

	if err := h.assignments.BindDraft(c); err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}
	h.removeByParam(c)
}

// DiscardDraft drops the draft set so the next creation starts fresh.
func (h *AssignmentHandler) DiscardDraft(c *gin.Context) {
	h.assignments.Discard()
	c.Status(http.StatusNoContent)
}

// RegisterRoutes registers the handler's routes
func (h *AssignmentHandler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	v1.GET("/events/:id/products", h.GetEventProducts)
	v1.POST("/events/:id/products", h.AddEventProduct)
	v1.DELETE("/events/:id/products/:productId", h.RemoveEventProduct)

	v1.GET("/draft/products", h.GetDraftProducts)
	v1.POST("/draft/products", h.AddDraftProduct)
	v1.DELETE("/draft/products/:productId", h.RemoveDraftProduct)
	v1.POST("/draft/discard", h.DiscardDraft)
}
