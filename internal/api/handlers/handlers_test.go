package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aah91/bbq-buddy/config"
	"github.com/aah91/bbq-buddy/internal/clock"
	"github.com/aah91/bbq-buddy/internal/messaging"
	"github.com/aah91/bbq-buddy/internal/metrics"
	"github.com/aah91/bbq-buddy/internal/models"
	"github.com/aah91/bbq-buddy/internal/repository"
	"github.com/aah91/bbq-buddy/internal/search"
	"github.com/aah91/bbq-buddy/internal/services"
	"github.com/aah91/bbq-buddy/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type apiFixture struct {
	db          *gorm.DB
	router      *gin.Engine
	events      *services.EventService
	assignments *services.AssignmentService
	eventRepo   repository.EventRepository
	assignRepo  repository.AssignmentRepository
	clk         *clock.Fake
}

func setupAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_fk=1"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.SetupModels(db))
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		require.NoError(t, err)
		require.NoError(t, sqlDB.Close())
	})

	eventRepo := repository.NewEventRepository(db, db)
	assignRepo := repository.NewAssignmentRepository(db, db)
	productRepo := repository.NewProductRepository(db, db)
	categoryRepo := repository.NewCategoryRepository(db, db)

	notifier, err := messaging.NewStatusNotifier(config.ServiceBusConfig{})
	require.NoError(t, err)
	clk := &clock.Fake{Time: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	m := metrics.NewMetrics()

	catalog := services.NewCatalogService(productRepo, categoryRepo, nil)
	eventService := services.NewEventService(eventRepo, assignRepo, productRepo, clk, notifier, search.NewNopIndexer(), m)
	assignmentService := services.NewAssignmentService(assignRepo, eventRepo, productRepo, catalog, eventService, m)

	router := gin.New()
	tracer := tracing.NewNopTracer()
	NewEventHandler(eventService, assignmentService, tracer).RegisterRoutes(router)
	NewAssignmentHandler(eventService, assignmentService, catalog, tracer).RegisterRoutes(router)

	return &apiFixture{
		db:          db,
		router:      router,
		events:      eventService,
		assignments: assignmentService,
		eventRepo:   eventRepo,
		assignRepo:  assignRepo,
		clk:         clk,
	}
}

func (f *apiFixture) request(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *apiFixture) seedProduct(t *testing.T, name string, isStandard bool) models.Product {
	t.Helper()
	category := models.Category{ID: uuid.New(), Name: "Fleisch"}
	require.NoError(t, f.db.Create(&category).Error)
	product := models.Product{ID: uuid.New(), Name: name, CategoryID: category.ID, IsStandard: isStandard}
	require.NoError(t, f.db.Create(&product).Error)
	return product
}

func (f *apiFixture) seedAPIEvent(t *testing.T, status models.EventStatus, eventAt, deadlineAt time.Time) models.Event {
	t.Helper()
	event := models.Event{ID: uuid.New(), EventAt: eventAt, DeadlineAt: deadlineAt, Status: status}
	require.NoError(t, f.eventRepo.Create(context.Background(), &event))
	return event
}

func TestAssignTargetsEventFromPath(t *testing.T) {
	f := setupAPIFixture(t)
	now := f.clk.Now()

	steak := f.seedProduct(t, "Steak", false)
	eventX := f.seedAPIEvent(t, models.StatusDraft, now.Add(24*time.Hour), now.Add(12*time.Hour))
	eventY := f.seedAPIEvent(t, models.StatusDraft, now.Add(48*time.Hour), now.Add(36*time.Hour))

	// Open X's products tab, then have a stale client post against Y.
	w := f.request(t, http.MethodGet, "/api/v1/events/"+eventX.ID.String()+"/products", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.request(t, http.MethodPost, "/api/v1/events/"+eventY.ID.String()+"/products",
		gin.H{"product_id": steak.ID})
	require.Equal(t, http.StatusOK, w.Code)

	ctx := context.Background()
	yAssignments, err := f.assignRepo.ListByEvent(ctx, eventY.ID)
	require.NoError(t, err)
	require.Len(t, yAssignments, 1)
	require.Equal(t, steak.ID, yAssignments[0].ProductID)

	xAssignments, err := f.assignRepo.ListByEvent(ctx, eventX.ID)
	require.NoError(t, err)
	require.Empty(t, xAssignments)
}

func TestProductsTabReportsEditability(t *testing.T) {
	f := setupAPIFixture(t)
	now := f.clk.Now()

	steak := f.seedProduct(t, "Steak", false)
	published := f.seedAPIEvent(t, models.StatusPublished, now.Add(24*time.Hour), now.Add(12*time.Hour))

	w := f.request(t, http.MethodGet, "/api/v1/events/"+published.ID.String()+"/products", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view AssignmentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	require.False(t, view.Editable)

	w = f.request(t, http.MethodPost, "/api/v1/events/"+published.ID.String()+"/products",
		gin.H{"product_id": steak.ID})
	require.Equal(t, http.StatusConflict, w.Code)

	w = f.request(t, http.MethodGet, "/api/v1/draft/products", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	require.True(t, view.Editable)
}

func TestUpdateEventClosesOverdueDeadline(t *testing.T) {
	f := setupAPIFixture(t)
	ctx := context.Background()
	now := f.clk.Now()

	event := f.seedAPIEvent(t, models.StatusPublished, now.Add(48*time.Hour), now.Add(24*time.Hour))
	require.NoError(t, f.events.FetchOpenPage(ctx))

	// Saving a deadline that already passed must close the event immediately,
	// not on the next sweep tick.
	w := f.request(t, http.MethodPut, "/api/v1/events/"+event.ID.String(), gin.H{
		"event_at":    now.Add(48 * time.Hour),
		"deadline_at": now.Add(-time.Hour),
	})
	require.Equal(t, http.StatusOK, w.Code)

	stored, err := f.eventRepo.FindByID(ctx, event.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusOrdersClosed, stored.Status)

	page := f.events.OpenPage()
	require.Len(t, page.Items, 1)
	require.Equal(t, models.StatusOrdersClosed, page.Items[0].Status)
}
