package handlers

import (
	"net/http"

	"github.com/aah91/bbq-buddy/internal/services"
	"github.com/aah91/bbq-buddy/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// CatalogHandler handles product library HTTP requests
type CatalogHandler struct {
	catalog *services.CatalogService
	tracer  tracing.Tracer
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(catalog *services.CatalogService, tracer tracing.Tracer) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, tracer: tracer}
}

// CatalogRow is one product library entry.
type CatalogRow struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	CategoryID uuid.UUID `json:"category_id"`
	Category   string    `json:"category"`
	IsStandard bool      `json:"is_standard"`
}

// ListProducts returns the product library, filtered and sorted by the query
// parameters q, category, standard and sort.
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	filter := services.ProductFilter{
		Term:         c.Query("q"),
		OnlyStandard: c.Query("standard") == "true",
		Sort:         c.Query("sort"),
	}
	if raw := c.Query("category"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category id"})
			return
		}
		filter.CategoryID = id
	}

	products, err := h.catalog.FilterProducts(c, filter)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list products")
		respondError(c, err)
		return
	}

	rows := make([]CatalogRow, 0, len(products))
	for _, p := range products {
		rows = append(rows, CatalogRow{
			ID:         p.ID,
			Name:       p.Name,
			CategoryID: p.CategoryID,
			Category:   h.catalog.CategoryName(c, p.CategoryID),
			IsStandard: p.IsStandard,
		})
	}
	c.JSON(http.StatusOK, gin.H{"products": rows})
}

// ProductRequest carries the editable product fields.
type ProductRequest struct {
	Name       string    `json:"name" binding:"required"`
	CategoryID uuid.UUID `json:"category_id" binding:"required"`
	IsStandard bool      `json:"is_standard"`
}

// CreateProduct adds a product to the library.
func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-products-create")
	defer h.tracer.EndTransaction(txn)

	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	product, err := h.catalog.CreateProduct(c, services.ProductInput{
		Name:       req.Name,
		CategoryID: req.CategoryID,
		IsStandard: req.IsStandard,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to create product")
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": product.ID})
}

// UpdateProduct updates a library product.
func (h *CatalogHandler) UpdateProduct(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-products-update")
	defer h.tracer.EndTransaction(txn)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err = h.catalog.UpdateProduct(c, id, services.ProductInput{
		Name:       req.Name,
		CategoryID: req.CategoryID,
		IsStandard: req.IsStandard,
	})
	if err != nil {
		log.Error().Err(err).Str("product_id", id.String()).Msg("Failed to update product")
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// DeleteProduct removes a product from the library. Existing event assignments
// keep their snapshot data.
func (h *CatalogHandler) DeleteProduct(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-products-delete")
	defer h.tracer.EndTransaction(txn)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}

	if err := h.catalog.DeleteProduct(c, id); err != nil {
		log.Error().Err(err).Str("product_id", id.String()).Msg("Failed to delete product")
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListCategories returns the category lookup table.
func (h *CatalogHandler) ListCategories(c *gin.Context) {
	categories, err := h.catalog.Categories(c)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list categories")
		respondError(c, err)
		return
	}

	type categoryRow struct {
		ID   uuid.UUID `json:"id"`
		Name string    `json:"name"`
	}
	rows := make([]categoryRow, 0, len(categories))
	for id, name := range categories {
		rows = append(rows, categoryRow{ID: id, Name: name})
	}
	c.JSON(http.StatusOK, gin.H{"categories": rows})
}

// RegisterRoutes registers the handler's routes
func (h *CatalogHandler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	v1.GET("/products", h.ListProducts)
	v1.POST("/products", h.CreateProduct)
	v1.PUT("/products/:id", h.UpdateProduct)
	v1.DELETE("/products/:id", h.DeleteProduct)
	v1.GET("/categories", h.ListCategories)
}
