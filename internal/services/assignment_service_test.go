package services

import (
	"context"
	"sync"
	"testing"

	"github.com/aah91/bbq-buddy/internal/metrics"
	"github.com/aah91/bbq-buddy/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type countRecorder struct {
	bumps map[uuid.UUID]int
}

func (r *countRecorder) BumpProductsCount(eventID uuid.UUID, delta int) {
	if r.bumps == nil {
		r.bumps = make(map[uuid.UUID]int)
	}
	r.bumps[eventID] += delta
}

type assignmentFixture struct {
	service     *AssignmentService
	assignments *MockAssignmentRepository
	events      *MockEventRepository
	products    *MockProductRepository
	categories  *MockCategoryRepository
	counter     *countRecorder
}

func newAssignmentFixture() *assignmentFixture {
	f := &assignmentFixture{
		assignments: new(MockAssignmentRepository),
		events:      new(MockEventRepository),
		products:    new(MockProductRepository),
		categories:  new(MockCategoryRepository),
		counter:     &countRecorder{},
	}
	catalog := NewCatalogService(f.products, f.categories, nil)
	f.service = NewAssignmentService(f.assignments, f.events, f.products, catalog, f.counter, metrics.NewMetrics())
	return f
}

func fixtureCatalog() (models.Product, models.Product, models.Product) {
	catID := uuid.New()
	return models.Product{ID: uuid.New(), Name: "Bratwurst", CategoryID: catID, IsStandard: true},
		models.Product{ID: uuid.New(), Name: "Steak", CategoryID: catID},
		models.Product{ID: uuid.New(), Name: "Halloumi", CategoryID: catID}
}

func TestAddRejectedOutsideDraftStatusWithoutAnyCall(t *testing.T) {
	f := newAssignmentFixture()
	ctx := context.Background()
	eventID := uuid.New()

	f.assignments.On("ListByEvent", ctx, eventID).Return([]models.EventProduct{}, nil).Once()
	require.NoError(t, f.service.Bind(ctx, eventID, models.StatusPublished))

	err := f.service.Add(ctx, uuid.New())
	require.ErrorIs(t, err, ErrNotEditable)
	err = f.service.Remove(ctx, uuid.New())
	require.ErrorIs(t, err, ErrNotEditable)

	f.assignments.AssertNotCalled(t, "Add", mock.Anything, mock.Anything)
	f.assignments.AssertNotCalled(t, "Remove", mock.Anything, mock.Anything, mock.Anything)
	f.events.AssertNotCalled(t, "IncrementProductsCount", mock.Anything, mock.Anything, mock.Anything)
}

func TestCommittedAddWritesThroughAndBumpsCount(t *testing.T) {
	f := newAssignmentFixture()
	ctx := context.Background()
	eventID := uuid.New()
	bratwurst, steak, _ := fixtureCatalog()

	f.assignments.On("ListByEvent", ctx, eventID).
		Return([]models.EventProduct{{EventID: eventID, ProductID: bratwurst.ID}}, nil).Once()
	require.NoError(t, f.service.Bind(ctx, eventID, models.StatusDraft))
	require.Equal(t, 1, f.service.Count())

	f.products.On("List", ctx).Return([]models.Product{bratwurst, steak}, nil).Once()
	f.assignments.On("Add", ctx, mock.MatchedBy(func(a *models.EventProduct) bool {
		return a.EventID == eventID && a.ProductID == steak.ID && a.CategoryID == steak.CategoryID
	})).Return(nil).Once()
	f.events.On("IncrementProductsCount", ctx, eventID, 1).Return(nil).Once()

	require.NoError(t, f.service.Add(ctx, steak.ID))
	require.Equal(t, 2, f.service.Count())
	require.Equal(t, 1, f.counter.bumps[eventID])
	f.assignments.AssertExpectations(t)
}

func TestCommittedAddIsIdempotent(t *testing.T) {
	f := newAssignmentFixture()
	ctx := context.Background()
	eventID := uuid.New()
	bratwurst, _, _ := fixtureCatalog()

	f.assignments.On("ListByEvent", ctx, eventID).
		Return([]models.EventProduct{{EventID: eventID, ProductID: bratwurst.ID}}, nil).Once()
	require.NoError(t, f.service.Bind(ctx, eventID, models.StatusDraft))

	require.NoError(t, f.service.Add(ctx, bratwurst.ID))
	f.assignments.AssertNotCalled(t, "Add", mock.Anything, mock.Anything)
}

func TestCommittedRemoveWritesThroughAndBumpsCount(t *testing.T) {
	f := newAssignmentFixture()
	ctx := context.Background()
	eventID := uuid.New()
	bratwurst, _, _ := fixtureCatalog()

	f.assignments.On("ListByEvent", ctx, eventID).
		Return([]models.EventProduct{{EventID: eventID, ProductID: bratwurst.ID}}, nil).Once()
	require.NoError(t, f.service.Bind(ctx, eventID, models.StatusDraft))

	f.assignments.On("Remove", ctx, eventID, bratwurst.ID).Return(nil).Once()
	f.events.On("IncrementProductsCount", ctx, eventID, -1).Return(nil).Once()

	require.NoError(t, f.service.Remove(ctx, bratwurst.ID))
	require.Equal(t, 0, f.service.Count())
	require.Equal(t, -1, f.counter.bumps[eventID])
}

func TestDraftModeSeedsStandardProductsOnce(t *testing.T) {
	f := newAssignmentFixture()
	ctx := context.Background()
	bratwurst, steak, _ := fixtureCatalog()

	f.products.On("ListStandard", ctx).Return([]models.Product{bratwurst}, nil).Once()

	require.NoError(t, f.service.BindDraft(ctx))
	require.Equal(t, []uuid.UUID{bratwurst.ID}, f.service.DraftIDs())

	require.NoError(t, f.service.Add(ctx, steak.ID))
	require.NoError(t, f.service.Remove(ctx, bratwurst.ID))
	require.Equal(t, []uuid.UUID{steak.ID}, f.service.DraftIDs())

	// Rebinding without a discard keeps the edited draft.
	require.NoError(t, f.service.BindDraft(ctx))
	require.Equal(t, []uuid.UUID{steak.ID}, f.service.DraftIDs())
	f.products.AssertNumberOfCalls(t, "ListStandard", 1)

	// Draft edits never touch the gateway.
	f.assignments.AssertNotCalled(t, "Add", mock.Anything, mock.Anything)
	f.assignments.AssertNotCalled(t, "Remove", mock.Anything, mock.Anything, mock.Anything)
}

func TestDiscardResetsDraft(t *testing.T) {
	f := newAssignmentFixture()
	ctx := context.Background()
	bratwurst, _, _ := fixtureCatalog()

	f.products.On("ListStandard", ctx).Return([]models.Product{bratwurst}, nil).Twice()

	require.NoError(t, f.service.BindDraft(ctx))
	require.NoError(t, f.service.Remove(ctx, bratwurst.ID))
	require.Empty(t, f.service.DraftIDs())

	f.service.Discard()
	require.NoError(t, f.service.BindDraft(ctx))
	require.Equal(t, []uuid.UUID{bratwurst.ID}, f.service.DraftIDs())
}

func TestConcurrentDraftEditsAreSafe(t *testing.T) {
	f := newAssignmentFixture()
	ctx := context.Background()

	f.products.On("ListStandard", ctx).Return([]models.Product{}, nil).Once()
	require.NoError(t, f.service.BindDraft(ctx))

	ids := make([]uuid.UUID, 8)
	for i := range ids {
		ids[i] = uuid.New()
	}

	// Overlapping requests share the one reconciler instance; edits and reads
	// from multiple goroutines must not corrupt the draft set.
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_ = f.service.Add(ctx, ids[i%len(ids)])
				_ = f.service.Count()
				_ = f.service.DraftIDs()
			}
		}()
	}
	wg.Wait()

	require.Len(t, f.service.DraftIDs(), len(ids))
}

func TestAvailableExcludesAssignedFiltersAndCaps(t *testing.T) {
	f := newAssignmentFixture()
	ctx := context.Background()
	eventID := uuid.New()

	catID := uuid.New()
	assigned := models.Product{ID: uuid.New(), Name: "Bratwurst", CategoryID: catID}
	catalog := []models.Product{assigned}
	for i := 0; i < 12; i++ {
		catalog = append(catalog, models.Product{
			ID:         uuid.New(),
			Name:       "Beilage " + string(rune('A'+i)),
			CategoryID: catID,
		})
	}

	f.assignments.On("ListByEvent", ctx, eventID).
		Return([]models.EventProduct{{EventID: eventID, ProductID: assigned.ID}}, nil).Once()
	require.NoError(t, f.service.Bind(ctx, eventID, models.StatusDraft))

	f.products.On("List", ctx).Return(catalog, nil).Once()

	available, err := f.service.Available(ctx, "", false)
	require.NoError(t, err)
	require.Len(t, available, availablePickerLimit)
	for _, p := range available {
		require.NotEqual(t, assigned.ID, p.ID)
	}

	// Search narrows within the same catalog snapshot.
	narrowed, err := f.service.Available(ctx, "beilage a", false)
	require.NoError(t, err)
	require.Len(t, narrowed, 1)
	require.Equal(t, "Beilage A", narrowed[0].Name)
}

func TestAssignedSortedByName(t *testing.T) {
	f := newAssignmentFixture()
	ctx := context.Background()
	eventID := uuid.New()
	bratwurst, steak, halloumi := fixtureCatalog()

	f.assignments.On("ListByEvent", ctx, eventID).Return([]models.EventProduct{
		{EventID: eventID, ProductID: steak.ID},
		{EventID: eventID, ProductID: halloumi.ID},
		{EventID: eventID, ProductID: bratwurst.ID},
	}, nil).Once()
	require.NoError(t, f.service.Bind(ctx, eventID, models.StatusPublished))

	f.products.On("List", ctx).Return([]models.Product{steak, bratwurst, halloumi}, nil).Once()

	got, err := f.service.Assigned(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "Bratwurst", got[0].Name)
	require.Equal(t, "Halloumi", got[1].Name)
	require.Equal(t, "Steak", got[2].Name)
}
