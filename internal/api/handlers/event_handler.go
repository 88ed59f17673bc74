package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/aah91/bbq-buddy/internal/models"
	"github.com/aah91/bbq-buddy/internal/services"
	"github.com/aah91/bbq-buddy/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// EventHandler handles event lifecycle and list HTTP requests
type EventHandler struct {
	events      *services.EventService
	assignments *services.AssignmentService
	tracer      tracing.Tracer
}

// NewEventHandler creates a new event handler
func NewEventHandler(events *services.EventService, assignments *services.AssignmentService, tracer tracing.Tracer) *EventHandler {
	return &EventHandler{
		events:      events,
		assignments: assignments,
		tracer:      tracer,
	}
}

// EventRow is one rendered list entry, including the row's affordances.
type EventRow struct {
	ID            uuid.UUID `json:"id"`
	EventAt       time.Time `json:"event_at"`
	DeadlineAt    time.Time `json:"deadline_at"`
	Status        string    `json:"status"`
	StatusLabel   string    `json:"status_label"`
	ProductsCount int       `json:"products_count"`
	CanDelete     bool      `json:"can_delete"`
	PrimaryAction string    `json:"primary_action,omitempty"`
}

// EventListResponse is a page-accumulated list view.
type EventListResponse struct {
	Events    []EventRow `json:"events"`
	Exhausted bool       `json:"exhausted"`
}

func toRow(event models.Event) EventRow {
	return EventRow{
		ID:            event.ID,
		EventAt:       event.EventAt,
		DeadlineAt:    event.DeadlineAt,
		Status:        string(event.Status),
		StatusLabel:   event.Status.Label(),
		ProductsCount: event.ProductsCount,
		CanDelete:     event.Status.Deletable(),
		PrimaryAction: event.Status.PrimaryAction(),
	}
}

func toListResponse(page services.PageState) EventListResponse {
	rows := make([]EventRow, 0, len(page.Items))
	for _, event := range page.Items {
		rows = append(rows, toRow(event))
	}
	return EventListResponse{Events: rows, Exhausted: page.Exhausted}
}

// ListOpenEvents returns all open events fetched so far.
func (h *EventHandler) ListOpenEvents(c *gin.Context) {
	c.JSON(http.StatusOK, toListResponse(h.events.OpenPage()))
}

// ListClosedEvents returns all closed events fetched so far.
func (h *EventHandler) ListClosedEvents(c *gin.Context) {
	c.JSON(http.StatusOK, toListResponse(h.events.ClosedPage()))
}

// FetchMoreOpenEvents loads the next open page and runs the deadline sweep
// over the freshly visible rows.
func (h *EventHandler) FetchMoreOpenEvents(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-events-open-more")
	defer h.tracer.EndTransaction(txn)

	if err := h.events.FetchOpenPage(c); err != nil {
		log.Error().Err(err).Msg("Failed to fetch open events page")
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}
	h.events.AutoClosePastDeadlines(c)
	c.JSON(http.StatusOK, toListResponse(h.events.OpenPage()))
}

// FetchMoreClosedEvents loads the next closed page.
func (h *EventHandler) FetchMoreClosedEvents(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-events-closed-more")
	defer h.tracer.EndTransaction(txn)

	if err := h.events.FetchClosedPage(c); err != nil {
		log.Error().Err(err).Msg("Failed to fetch closed events page")
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toListResponse(h.events.ClosedPage()))
}

// CreateEventRequest carries the new-event form fields. The product set comes
// from the draft reconciler, not the request body.
type CreateEventRequest struct {
	EventAt    time.Time `json:"event_at" binding:"required"`
	DeadlineAt time.Time `json:"deadline_at"`
}

// CreateEvent creates an event from the form dates and the current draft
// product set, then reloads the open list from the top.
func (h *EventHandler) CreateEvent(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-events-create")
	defer h.tracer.EndTransaction(txn)

	var req CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error().Err(err).Msg("Invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.events.CreateEvent(c, services.CreateEventInput{
		EventAt:         req.EventAt,
		DeadlineAt:      req.DeadlineAt,
		DraftProductIDs: h.assignments.DraftIDs(),
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to create event")
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}
	h.assignments.Discard()

	// The new event may sort anywhere in the list, so start over from the top.
	h.events.ResetOpenList()
	if err := h.events.FetchOpenPage(c); err != nil {
		log.Error().Err(err).Msg("Failed to reload open events after create")
	}
	h.events.AutoClosePastDeadlines(c)

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// UpdateEventRequest carries the editable event fields.
type UpdateEventRequest struct {
	EventAt    time.Time `json:"event_at" binding:"required"`
	DeadlineAt time.Time `json:"deadline_at" binding:"required"`
}

// UpdateEvent updates an event's dates.
func (h *EventHandler) UpdateEvent(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-events-update")
	defer h.tracer.EndTransaction(txn)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}
	var req UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.events.UpdateEvent(c, id, req.EventAt, req.DeadlineAt); err != nil {
		log.Error().Err(err).Str("event_id", id.String()).Msg("Failed to update event")
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	// A save can move a deadline into the past, so sweep right away instead of
	// waiting for the timer.
	h.events.AutoClosePastDeadlines(c)
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// DeleteEvent deletes an event and its product assignments.
func (h *EventHandler) DeleteEvent(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-events-delete")
	defer h.tracer.EndTransaction(txn)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	if err := h.events.DeleteEvent(c, id); err != nil {
		log.Error().Err(err).Str("event_id", id.String()).Msg("Failed to delete event")
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PublishEvent makes a draft event orderable.
func (h *EventHandler) PublishEvent(c *gin.Context) {
	h.transition(c, "api-events-publish", h.events.Publish)
}

// CreateInvoices moves a closed event into invoicing.
func (h *EventHandler) CreateInvoices(c *gin.Context) {
	h.transition(c, "api-events-create-invoices", h.events.CreateInvoices)
}

// SendInvoices marks an event's invoices as sent.
func (h *EventHandler) SendInvoices(c *gin.Context) {
	h.transition(c, "api-events-send-invoices", h.events.SendInvoices)
}

func (h *EventHandler) transition(c *gin.Context, name string, fn func(ctx context.Context, id uuid.UUID) error) {
	txn := h.tracer.StartTransaction(name)
	defer h.tracer.EndTransaction(txn)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	if err := fn(c, id); err != nil {
		log.Error().Err(err).Str("event_id", id.String()).Msg("Status transition failed")
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// RegisterRoutes registers the handler's routes
func (h *EventHandler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	v1.GET("/events/open", h.ListOpenEvents)
	v1.POST("/events/open/more", h.FetchMoreOpenEvents)
	v1.GET("/events/closed", h.ListClosedEvents)
	v1.POST("/events/closed/more", h.FetchMoreClosedEvents)
	v1.POST("/events", h.CreateEvent)
	v1.PUT("/events/:id", h.UpdateEvent)
	v1.DELETE("/events/:id", h.DeleteEvent)
	v1.POST("/events/:id/publish", h.PublishEvent)
	v1.POST("/events/:id/invoices", h.CreateInvoices)
	v1.POST("/events/:id/invoices/send", h.SendInvoices)
}
