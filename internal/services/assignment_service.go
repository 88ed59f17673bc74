package services

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/aah91/bbq-buddy/internal/metrics"
	"github.com/aah91/bbq-buddy/internal/models"
	"github.com/aah91/bbq-buddy/internal/repository"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// availablePickerLimit caps how many unassigned products the picker offers at
// once; the operator narrows the rest down by searching.
const availablePickerLimit = 8

// ListCounter receives denormalized count adjustments after committed
// assignment changes.
type ListCounter interface {
	BumpProductsCount(eventID uuid.UUID, delta int)
}

// AssignmentService reconciles the product set of one event at a time. Bound
// to a committed event it writes every change through immediately; in draft
// mode (before an event exists) it only mutates an in-memory set that the
// creation flow consumes. Handlers share one instance, so all binding state is
// guarded by the mutex.
type AssignmentService struct {
	mu          sync.Mutex
	assignments repository.AssignmentRepository
	events      repository.EventRepository
	products    repository.ProductRepository
	catalog     *CatalogService
	lists       ListCounter
	metrics     *metrics.Metrics

	eventID  uuid.UUID
	status   models.EventStatus
	assigned map[uuid.UUID]struct{}
	draft    map[uuid.UUID]struct{} // nil until seeded
}

// NewAssignmentService creates a new assignment service
func NewAssignmentService(
	assignments repository.AssignmentRepository,
	events repository.EventRepository,
	products repository.ProductRepository,
	catalog *CatalogService,
	lists ListCounter,
	m *metrics.Metrics,
) *AssignmentService {
	return &AssignmentService{
		assignments: assignments,
		events:      events,
		products:    products,
		catalog:     catalog,
		lists:       lists,
		metrics:     m,
	}
}

// Bind points the reconciler at a committed event, loading its current
// assignment set. Any draft state is discarded.
func (s *AssignmentService) Bind(ctx context.Context, eventID uuid.UUID, status models.EventStatus) error {
	records, err := s.assignments.ListByEvent(ctx, eventID)
	if err != nil {
		s.metrics.OperationError()
		return errors.Wrap(err, "failed to load assignments")
	}

	assigned := make(map[uuid.UUID]struct{}, len(records))
	for _, r := range records {
		assigned[r.ProductID] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventID = eventID
	s.status = status
	s.assigned = assigned
	s.draft = nil
	return nil
}

// BindDraft switches to draft mode for the creation flow. The draft set is
// seeded once with the standard products and survives until Discard or Bind.
func (s *AssignmentService) BindDraft(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventID = uuid.Nil
	s.status = models.StatusDraft
	s.assigned = nil

	if s.draft != nil {
		return nil
	}

	standard, err := s.products.ListStandard(ctx)
	if err != nil {
		s.metrics.OperationError()
		return errors.Wrap(err, "failed to load standard products")
	}
	draft := make(map[uuid.UUID]struct{}, len(standard))
	for _, p := range standard {
		draft[p.ID] = struct{}{}
	}
	s.draft = draft
	return nil
}

// Discard drops all draft state, so the next BindDraft reseeds from scratch.
func (s *AssignmentService) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventID = uuid.Nil
	s.assigned = nil
	s.draft = nil
}

// DraftIDs returns the current draft product set.
func (s *AssignmentService) DraftIDs() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(s.draft))
	for id := range s.draft {
		ids = append(ids, id)
	}
	return ids
}

// BoundEventID returns the event the reconciler is bound to, or uuid.Nil in
// draft mode.
func (s *AssignmentService) BoundEventID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eventID
}

// BoundStatus returns the status of the bound event as of binding time. Draft
// mode reports offen.
func (s *AssignmentService) BoundStatus() models.EventStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *AssignmentService) inDraftMode() bool {
	return s.eventID == uuid.Nil
}

func (s *AssignmentService) current() map[uuid.UUID]struct{} {
	if s.inDraftMode() {
		return s.draft
	}
	return s.assigned
}

// Add assigns a product to the bound event. Rejected before any gateway call
// unless the event is still editable. Already-assigned products are a no-op.
func (s *AssignmentService) Add(ctx context.Context, productID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.status.Editable() {
		return errors.Wrapf(ErrNotEditable, "status %s", s.status)
	}

	set := s.current()
	if _, ok := set[productID]; ok {
		return nil
	}

	if s.inDraftMode() {
		if s.draft == nil {
			s.draft = make(map[uuid.UUID]struct{})
		}
		s.draft[productID] = struct{}{}
		return nil
	}

	product, err := s.catalog.ProductByID(ctx, productID)
	if err != nil {
		return errors.Wrap(ErrValidation, "unknown product")
	}

	err = s.assignments.Add(ctx, &models.EventProduct{
		EventID:         s.eventID,
		ProductID:       product.ID,
		CategoryID:      product.CategoryID,
		AddedAsStandard: product.IsStandard,
	})
	if err != nil {
		s.metrics.OperationError()
		return errors.Wrap(err, "failed to assign product")
	}
	if err := s.events.IncrementProductsCount(ctx, s.eventID, 1); err != nil {
		// The assignment record exists but the count is stale. Later count
		// writes go through the same atomic increment, so the drift stays
		// bounded to this one failure.
		s.metrics.OperationError()
		log.Error().Err(err).Str("event_id", s.eventID.String()).Msg("products count increment failed")
	}

	s.assigned[productID] = struct{}{}
	s.lists.BumpProductsCount(s.eventID, 1)
	s.metrics.AssignmentAdded()
	return nil
}

// Remove unassigns a product from the bound event. Same editability gate and
// no-op semantics as Add.
func (s *AssignmentService) Remove(ctx context.Context, productID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.status.Editable() {
		return errors.Wrapf(ErrNotEditable, "status %s", s.status)
	}

	set := s.current()
	if _, ok := set[productID]; !ok {
		return nil
	}

	if s.inDraftMode() {
		delete(s.draft, productID)
		return nil
	}

	if err := s.assignments.Remove(ctx, s.eventID, productID); err != nil {
		s.metrics.OperationError()
		return errors.Wrap(err, "failed to unassign product")
	}
	if err := s.events.IncrementProductsCount(ctx, s.eventID, -1); err != nil {
		s.metrics.OperationError()
		log.Error().Err(err).Str("event_id", s.eventID.String()).Msg("products count decrement failed")
	}

	delete(s.assigned, productID)
	s.lists.BumpProductsCount(s.eventID, -1)
	s.metrics.AssignmentRemoved()
	return nil
}

// snapshotCurrent copies the active set so resolve can iterate it without
// holding the lock across catalog loads.
func (s *AssignmentService) snapshotCurrent() map[uuid.UUID]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.current()
	out := make(map[uuid.UUID]struct{}, len(set))
	for id := range set {
		out[id] = struct{}{}
	}
	return out
}

// Assigned returns the bound event's products, name-sorted.
func (s *AssignmentService) Assigned(ctx context.Context) ([]models.Product, error) {
	return s.resolve(ctx, s.snapshotCurrent(), true, "", false, 0)
}

// Available returns products not yet assigned to the bound event, filtered by
// the search term and the standard-only toggle, capped for the picker.
func (s *AssignmentService) Available(ctx context.Context, term string, onlyStandard bool) ([]models.Product, error) {
	return s.resolve(ctx, s.snapshotCurrent(), false, term, onlyStandard, availablePickerLimit)
}

func (s *AssignmentService) resolve(ctx context.Context, set map[uuid.UUID]struct{}, member bool, term string, onlyStandard bool, limit int) ([]models.Product, error) {
	catalog, err := s.catalog.Products(ctx)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(term))
	out := make([]models.Product, 0, len(set))
	for _, p := range catalog {
		if _, ok := set[p.ID]; ok != member {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(p.Name), needle) {
			continue
		}
		if onlyStandard && !p.IsStandard {
			continue
		}
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Count returns the size of the current assignment set.
func (s *AssignmentService) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.current())
}
