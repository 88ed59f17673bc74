package services

import (
	"context"
	"sync"
	"time"

	"github.com/aah91/bbq-buddy/internal/clock"
	"github.com/aah91/bbq-buddy/internal/messaging"
	"github.com/aah91/bbq-buddy/internal/metrics"
	"github.com/aah91/bbq-buddy/internal/models"
	"github.com/aah91/bbq-buddy/internal/repository"
	"github.com/aah91/bbq-buddy/internal/search"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// PageSize is the fixed number of events fetched per list page.
const PageSize = 5

// PageState is the in-memory state of one paginated event list. Items only
// ever accumulate; the cursor marks the last fetched event; Exhausted is
// permanent once a fetch comes back empty; Loading guards against duplicate
// in-flight fetches.
type PageState struct {
	Items     []models.Event
	Cursor    *repository.Cursor
	Exhausted bool
	Loading   bool
}

// EventService owns the event status lifecycle, the paginated open and closed
// lists, and the side effects of status and membership changes. It is
// session-scoped: one instance per operator session, created at startup and
// discarded with it.
type EventService struct {
	mu     sync.Mutex
	open   PageState
	closed PageState

	events      repository.EventRepository
	assignments repository.AssignmentRepository
	products    repository.ProductRepository
	clk         clock.Clock
	notifier    messaging.StatusNotifier
	indexer     search.EventIndexer
	metrics     *metrics.Metrics
}

// NewEventService creates a new event service
func NewEventService(
	events repository.EventRepository,
	assignments repository.AssignmentRepository,
	products repository.ProductRepository,
	clk clock.Clock,
	notifier messaging.StatusNotifier,
	indexer search.EventIndexer,
	m *metrics.Metrics,
) *EventService {
	return &EventService{
		events:      events,
		assignments: assignments,
		products:    products,
		clk:         clk,
		notifier:    notifier,
		indexer:     indexer,
		metrics:     m,
	}
}

// FetchOpenPage loads the next page of open events. No-op while a fetch is in
// flight or once the list is exhausted.
func (s *EventService) FetchOpenPage(ctx context.Context) error {
	return s.fetchPage(ctx, &s.open, models.OpenStatuses())
}

// FetchClosedPage loads the next page of closed events.
func (s *EventService) FetchClosedPage(ctx context.Context) error {
	return s.fetchPage(ctx, &s.closed, models.ClosedStatuses())
}

func (s *EventService) fetchPage(ctx context.Context, page *PageState, statuses []models.EventStatus) error {
	s.mu.Lock()
	if page.Loading || page.Exhausted {
		s.mu.Unlock()
		return nil
	}
	page.Loading = true
	cursor := page.Cursor
	s.mu.Unlock()

	items, err := s.events.ListPage(ctx, statuses, PageSize, cursor)

	s.mu.Lock()
	defer s.mu.Unlock()
	page.Loading = false
	if err != nil {
		s.metrics.OperationError()
		return errors.Wrap(err, "failed to fetch event page")
	}

	if len(items) == 0 {
		page.Exhausted = true
		return nil
	}

	page.Items = append(page.Items, items...)
	last := items[len(items)-1]
	page.Cursor = &repository.Cursor{EventAt: last.EventAt, ID: last.ID}
	s.metrics.PageFetched()
	return nil
}

// OpenPage returns a snapshot of the open list state.
func (s *EventService) OpenPage() PageState {
	return s.snapshot(&s.open)
}

// ClosedPage returns a snapshot of the closed list state.
func (s *EventService) ClosedPage() PageState {
	return s.snapshot(&s.closed)
}

func (s *EventService) snapshot(page *PageState) PageState {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]models.Event, len(page.Items))
	copy(items, page.Items)
	return PageState{
		Items:     items,
		Cursor:    page.Cursor,
		Exhausted: page.Exhausted,
		Loading:   page.Loading,
	}
}

// ResetOpenList discards the open list state so the next fetch starts from the
// top. Used after creating an event.
func (s *EventService) ResetOpenList() {
	s.mu.Lock()
	s.open = PageState{}
	s.mu.Unlock()
}

// SetStatus persists a status change and then moves the event between the
// in-memory lists when the open/closed boundary is crossed. The lists are
// touched only after a successful write; a failed write surfaces the error
// and leaves them unchanged.
func (s *EventService) SetStatus(ctx context.Context, eventID uuid.UUID, from, to models.EventStatus) error {
	if from == to {
		return nil
	}

	if err := s.events.UpdateStatus(ctx, eventID, to); err != nil {
		s.metrics.OperationError()
		return errors.Wrap(err, "failed to persist status change")
	}

	s.mu.Lock()
	moved, inLists := s.applyStatusLocked(eventID, from, to)
	s.mu.Unlock()

	s.metrics.StatusTransition()

	event := &moved
	if !inLists {
		fetched, err := s.events.FindByID(ctx, eventID)
		if err != nil {
			log.Warn().Err(err).Str("event_id", eventID.String()).Msg("could not load event for notification")
			return nil
		}
		event = fetched
	}

	if err := s.notifier.NotifyStatusChange(ctx, event, from, to); err != nil {
		log.Error().Err(err).Str("event_id", eventID.String()).Msg("failed to publish status change")
	}
	if err := s.indexer.IndexEvent(ctx, event); err != nil {
		log.Error().Err(err).Str("event_id", eventID.String()).Msg("failed to index event")
	}
	return nil
}

// applyStatusLocked updates the in-memory lists for a persisted transition.
// When the open/closed boundary is crossed the event moves to the front of the
// opposite list, otherwise its status is updated in place.
func (s *EventService) applyStatusLocked(eventID uuid.UUID, from, to models.EventStatus) (models.Event, bool) {
	update := func(page *PageState) (models.Event, bool) {
		for i := range page.Items {
			if page.Items[i].ID == eventID {
				page.Items[i].Status = to
				return page.Items[i], true
			}
		}
		return models.Event{}, false
	}
	move := func(src, dst *PageState) (models.Event, bool) {
		for i := range src.Items {
			if src.Items[i].ID == eventID {
				moved := src.Items[i]
				moved.Status = to
				src.Items = append(src.Items[:i], src.Items[i+1:]...)
				dst.Items = append([]models.Event{moved}, dst.Items...)
				return moved, true
			}
		}
		return models.Event{}, false
	}

	switch {
	case from.IsOpen() && to.IsOpen():
		return update(&s.open)
	case from.IsOpen() && to.IsClosed():
		return move(&s.open, &s.closed)
	case from.IsClosed() && to.IsOpen():
		return move(&s.closed, &s.open)
	default:
		return update(&s.closed)
	}
}

// Publish moves a draft event to bestellbar.
func (s *EventService) Publish(ctx context.Context, eventID uuid.UUID) error {
	return s.advanceFrom(ctx, eventID, models.StatusDraft)
}

// CreateInvoices moves a geschlossen event to rechnung_offen.
func (s *EventService) CreateInvoices(ctx context.Context, eventID uuid.UUID) error {
	return s.advanceFrom(ctx, eventID, models.StatusOrdersClosed)
}

// SendInvoices moves a rechnung_offen event to zahlung_offen.
func (s *EventService) SendInvoices(ctx context.Context, eventID uuid.UUID) error {
	return s.advanceFrom(ctx, eventID, models.StatusInvoicePending)
}

// advanceFrom fires a named transition after checking the event is still in
// the expected source status.
func (s *EventService) advanceFrom(ctx context.Context, eventID uuid.UUID, expected models.EventStatus) error {
	event, ok := s.findInLists(eventID)
	if !ok || event.Status != expected {
		return errors.Wrapf(ErrStatusConflict, "expected status %s", expected)
	}
	to, ok := expected.Next()
	if !ok {
		return errors.Wrapf(ErrStatusConflict, "status %s is terminal", expected)
	}
	return s.SetStatus(ctx, eventID, expected, to)
}

// AutoClosePastDeadlines closes every bestellbar event in the open list whose
// deadline has passed. Each candidate's current status is re-read immediately
// before the write so overlapping sweeps stay idempotent; one candidate
// failing does not abort the sweep.
func (s *EventService) AutoClosePastDeadlines(ctx context.Context) {
	now := s.clk.Now()

	s.mu.Lock()
	var candidates []uuid.UUID
	for _, event := range s.open.Items {
		if event.Status == models.StatusPublished && event.DeadlineAt.Before(now) {
			candidates = append(candidates, event.ID)
		}
	}
	s.mu.Unlock()

	for _, id := range candidates {
		current, err := s.events.FindByID(ctx, id)
		if err != nil {
			log.Error().Err(err).Str("event_id", id.String()).Msg("auto-close: could not re-read event")
			continue
		}
		if current.Status != models.StatusPublished {
			// Another sweep or operator got here first; sync the list copy.
			s.mu.Lock()
			s.applyStatusLocked(id, models.StatusPublished, current.Status)
			s.mu.Unlock()
			continue
		}
		if err := s.SetStatus(ctx, id, models.StatusPublished, models.StatusOrdersClosed); err != nil {
			log.Error().Err(err).Str("event_id", id.String()).Msg("auto-close failed")
			continue
		}
		s.metrics.AutoClosed()
		log.Info().Str("event_id", id.String()).Msg("event auto-closed after deadline")
	}
}

// ReconcileOverdue closes overdue bestellbar events store-wide, regardless of
// list membership. Fallback for deadlines that pass while no operator session
// is active. Returns the number of events closed.
func (s *EventService) ReconcileOverdue(ctx context.Context, batch int) (int, error) {
	overdue, err := s.events.ListDeadlinePassed(ctx, models.StatusPublished, s.clk.Now(), batch)
	if err != nil {
		s.metrics.OperationError()
		return 0, errors.Wrap(err, "failed to list overdue events")
	}

	closed := 0
	for _, event := range overdue {
		current, err := s.events.FindByID(ctx, event.ID)
		if err != nil {
			log.Error().Err(err).Str("event_id", event.ID.String()).Msg("reconcile: could not re-read event")
			continue
		}
		if current.Status != models.StatusPublished {
			continue
		}
		if err := s.SetStatus(ctx, event.ID, models.StatusPublished, models.StatusOrdersClosed); err != nil {
			log.Error().Err(err).Str("event_id", event.ID.String()).Msg("reconcile: auto-close failed")
			continue
		}
		s.metrics.AutoClosed()
		closed++
	}
	return closed, nil
}

// CreateEventInput carries the fields for a new event.
type CreateEventInput struct {
	EventAt         time.Time
	DeadlineAt      time.Time
	DraftProductIDs []uuid.UUID
}

// CreateEvent creates the event document first, then assigns the union of all
// standard products and the caller's draft set, then sets the denormalized
// count. The event is not rolled back when the assignment phase fails; the
// partial state is logged for operational reconciliation.
func (s *EventService) CreateEvent(ctx context.Context, in CreateEventInput) (uuid.UUID, error) {
	if in.EventAt.IsZero() {
		return uuid.Nil, errors.Wrap(ErrValidation, "event date is required")
	}
	deadline := in.DeadlineAt
	if deadline.IsZero() {
		// Default deadline: 10:00 on the event day.
		deadline = time.Date(in.EventAt.Year(), in.EventAt.Month(), in.EventAt.Day(), 10, 0, 0, 0, in.EventAt.Location())
	}

	event := &models.Event{
		ID:            uuid.New(),
		EventAt:       in.EventAt,
		DeadlineAt:    deadline,
		Status:        models.StatusDraft,
		ProductsCount: 0,
	}
	if err := s.events.Create(ctx, event); err != nil {
		s.metrics.OperationError()
		return uuid.Nil, errors.Wrap(err, "failed to create event")
	}
	s.metrics.EventCreated()

	if err := s.assignInitialProducts(ctx, event, in.DraftProductIDs); err != nil {
		// Documented partial-failure policy: the event stays, with whatever
		// assignment subset was written.
		s.metrics.OperationError()
		log.Error().Err(err).Str("event_id", event.ID.String()).
			Msg("initial product assignment incomplete; event persisted with partial assignments")
	}

	if err := s.indexer.IndexEvent(ctx, event); err != nil {
		log.Error().Err(err).Str("event_id", event.ID.String()).Msg("failed to index event")
	}
	return event.ID, nil
}

func (s *EventService) assignInitialProducts(ctx context.Context, event *models.Event, draftIDs []uuid.UUID) error {
	standard, err := s.products.ListStandard(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to load standard products")
	}
	all, err := s.products.List(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to load product catalog")
	}
	metaByID := make(map[uuid.UUID]models.Product, len(all))
	for _, p := range all {
		metaByID[p.ID] = p
	}

	union := make(map[uuid.UUID]struct{}, len(standard)+len(draftIDs))
	for _, p := range standard {
		union[p.ID] = struct{}{}
	}
	for _, id := range draftIDs {
		// A draft id that no longer resolves to a catalog product is dropped:
		// assignments must never reference a nonexistent product.
		if _, ok := metaByID[id]; ok {
			union[id] = struct{}{}
		}
	}
	if len(union) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for id := range union {
		meta := metaByID[id]
		g.Go(func() error {
			return s.assignments.Add(gctx, &models.EventProduct{
				EventID:         event.ID,
				ProductID:       meta.ID,
				CategoryID:      meta.CategoryID,
				AddedAsStandard: meta.IsStandard,
			})
		})
	}
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "failed to write assignment records")
	}

	if err := s.events.SetProductsCount(ctx, event.ID, len(union)); err != nil {
		return errors.Wrap(err, "failed to set products count")
	}
	event.ProductsCount = len(union)
	return nil
}

// UpdateEvent updates an event's date fields and reflects the change into
// whichever list holds it.
func (s *EventService) UpdateEvent(ctx context.Context, eventID uuid.UUID, eventAt, deadlineAt time.Time) error {
	if eventAt.IsZero() || deadlineAt.IsZero() {
		return errors.Wrap(ErrValidation, "event date and deadline are required")
	}

	if err := s.events.UpdateDates(ctx, eventID, eventAt, deadlineAt); err != nil {
		s.metrics.OperationError()
		return errors.Wrap(err, "failed to update event")
	}

	s.mu.Lock()
	for _, page := range []*PageState{&s.open, &s.closed} {
		for i := range page.Items {
			if page.Items[i].ID == eventID {
				page.Items[i].EventAt = eventAt
				page.Items[i].DeadlineAt = deadlineAt
			}
		}
	}
	s.mu.Unlock()
	return nil
}

// DeleteEvent deletes an event and all its assignment records. Only draft and
// bestellbar events may be deleted; anything else is rejected before any
// gateway call. Assignments are removed first (concurrently, order
// independent), then the event document; there is no cross-document
// transaction, so an interruption between the two steps leaves an event
// without assignments, which remains visible and deletable.
func (s *EventService) DeleteEvent(ctx context.Context, eventID uuid.UUID) error {
	event, inLists := s.findInLists(eventID)
	status := event.Status
	if !inLists {
		fetched, err := s.events.FindByID(ctx, eventID)
		if err != nil {
			s.metrics.OperationError()
			return errors.Wrap(err, "failed to load event")
		}
		status = fetched.Status
	}

	if !status.Deletable() {
		return errors.Wrapf(ErrNotDeletable, "status %s", status)
	}

	assignments, err := s.assignments.ListByEvent(ctx, eventID)
	if err != nil {
		s.metrics.OperationError()
		return errors.Wrap(err, "failed to list assignments for deletion")
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, a := range assignments {
		a := a
		g.Go(func() error {
			return s.assignments.Remove(gctx, a.EventID, a.ProductID)
		})
	}
	if err := g.Wait(); err != nil {
		s.metrics.OperationError()
		log.Error().Err(err).Str("event_id", eventID.String()).
			Msg("assignment cascade incomplete; event not deleted")
		return errors.Wrap(err, "failed to delete assignments")
	}

	if err := s.events.Delete(ctx, eventID); err != nil {
		s.metrics.OperationError()
		log.Error().Err(err).Str("event_id", eventID.String()).
			Msg("event delete failed after assignment cascade; event row left without assignments")
		return errors.Wrap(err, "failed to delete event")
	}

	s.mu.Lock()
	for _, page := range []*PageState{&s.open, &s.closed} {
		for i := range page.Items {
			if page.Items[i].ID == eventID {
				page.Items = append(page.Items[:i], page.Items[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()

	s.metrics.EventDeleted()
	return nil
}

// BumpProductsCount adjusts the denormalized count on the in-memory list copy
// of an event. Called by the assignment reconciler after committed changes.
func (s *EventService) BumpProductsCount(eventID uuid.UUID, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, page := range []*PageState{&s.open, &s.closed} {
		for i := range page.Items {
			if page.Items[i].ID == eventID {
				page.Items[i].ProductsCount += delta
			}
		}
	}
}

// Event returns the event's current state, preferring the in-memory list copy
// and falling back to the store for events outside the fetched pages.
func (s *EventService) Event(ctx context.Context, eventID uuid.UUID) (models.Event, error) {
	if event, ok := s.findInLists(eventID); ok {
		return event, nil
	}
	fetched, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		return models.Event{}, errors.Wrap(err, "failed to load event")
	}
	return *fetched, nil
}

// findInLists returns the in-memory copy of an event from either list.
func (s *EventService) findInLists(eventID uuid.UUID) (models.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, page := range []*PageState{&s.open, &s.closed} {
		for i := range page.Items {
			if page.Items[i].ID == eventID {
				return page.Items[i], true
			}
		}
	}
	return models.Event{}, false
}
