package metrics

import (
	"sync/atomic"
	"time"
)

// Metrics tracks in-process operation counters for the back office. Counters
// are monotonically increasing; Snapshot returns a point-in-time copy.
type Metrics struct {
	startedAt time.Time

	eventsCreated      int64
	eventsDeleted      int64
	statusTransitions  int64
	autoClosed         int64
	pagesFetched       int64
	assignmentsAdded   int64
	assignmentsRemoved int64
	operationErrors    int64
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	return &Metrics{startedAt: time.Now()}
}

// EventCreated records a successful event creation.
func (m *Metrics) EventCreated() { atomic.AddInt64(&m.eventsCreated, 1) }

// EventDeleted records a successful event deletion.
func (m *Metrics) EventDeleted() { atomic.AddInt64(&m.eventsDeleted, 1) }

// StatusTransition records a successful status transition.
func (m *Metrics) StatusTransition() { atomic.AddInt64(&m.statusTransitions, 1) }

// AutoClosed records an event closed by the deadline sweep.
func (m *Metrics) AutoClosed() { atomic.AddInt64(&m.autoClosed, 1) }

// PageFetched records a completed list page fetch.
func (m *Metrics) PageFetched() { atomic.AddInt64(&m.pagesFetched, 1) }

// AssignmentAdded records a committed product assignment.
func (m *Metrics) AssignmentAdded() { atomic.AddInt64(&m.assignmentsAdded, 1) }

// AssignmentRemoved records a committed product unassignment.
func (m *Metrics) AssignmentRemoved() { atomic.AddInt64(&m.assignmentsRemoved, 1) }

// OperationError records a failed gateway operation.
func (m *Metrics) OperationError() { atomic.AddInt64(&m.operationErrors, 1) }

// Snapshot is a point-in-time view of all counters.
type Snapshot struct {
	UptimeSeconds      int64 `json:"uptime_seconds"`
	EventsCreated      int64 `json:"events_created"`
	EventsDeleted      int64 `json:"events_deleted"`
	StatusTransitions  int64 `json:"status_transitions"`
	AutoClosed         int64 `json:"auto_closed"`
	PagesFetched       int64 `json:"pages_fetched"`
	AssignmentsAdded   int64 `json:"assignments_added"`
	AssignmentsRemoved int64 `json:"assignments_removed"`
	OperationErrors    int64 `json:"operation_errors"`
}

// Snapshot returns a copy of the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		UptimeSeconds:      int64(time.Since(m.startedAt).Seconds()),
		EventsCreated:      atomic.LoadInt64(&m.eventsCreated),
		EventsDeleted:      atomic.LoadInt64(&m.eventsDeleted),
		StatusTransitions:  atomic.LoadInt64(&m.statusTransitions),
		AutoClosed:         atomic.LoadInt64(&m.autoClosed),
		PagesFetched:       atomic.LoadInt64(&m.pagesFetched),
		AssignmentsAdded:   atomic.LoadInt64(&m.assignmentsAdded),
		AssignmentsRemoved: atomic.LoadInt64(&m.assignmentsRemoved),
		OperationErrors:    atomic.LoadInt64(&m.operationErrors),
	}
}
