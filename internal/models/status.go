package models

// EventStatus is the lifecycle status of an event. The wire values are the
// German terms the ordering workflow was built around.
type EventStatus string

const (
	StatusDraft          EventStatus = "offen"
	StatusPublished      EventStatus = "bestellbar"
	StatusOrdersClosed   EventStatus = "geschlossen"
	StatusInvoicePending EventStatus = "rechnung_offen"
	StatusPaymentPending EventStatus = "zahlung_offen"
	StatusSettled        EventStatus = "abgerechnet"
)

// StatusFlow is the total order of the lifecycle. Status only advances forward
// along this sequence; no transition skips a step.
var StatusFlow = []EventStatus{
	StatusDraft,
	StatusPublished,
	StatusOrdersClosed,
	StatusInvoicePending,
	StatusPaymentPending,
	StatusSettled,
}

// Rank returns the position of the status in the flow, or -1 for an unknown
// status. Open/closed membership is derived from the rank so adding a status
// to the flow cannot leave the two views out of sync.
func (s EventStatus) Rank() int {
	for i, st := range StatusFlow {
		if st == s {
			return i
		}
	}
	return -1
}

// Known reports whether the status is part of the lifecycle.
func (s EventStatus) Known() bool {
	return s.Rank() >= 0
}

// IsOpen reports whether an event with this status belongs in the open list.
// Everything before zahlung_offen is open.
func (s EventStatus) IsOpen() bool {
	r := s.Rank()
	return r >= 0 && r < StatusPaymentPending.Rank()
}

// IsClosed reports whether an event with this status belongs in the closed list.
func (s EventStatus) IsClosed() bool {
	return s.Known() && !s.IsOpen()
}

// Editable reports whether the event's product assignments may be changed.
// Products are editable only while the event is a draft.
func (s EventStatus) Editable() bool {
	return s == StatusDraft
}

// Deletable reports whether an event with this status may be deleted.
func (s EventStatus) Deletable() bool {
	return s == StatusDraft || s == StatusPublished
}

// Next returns the following status in the flow, and false when the status is
// terminal or unknown.
func (s EventStatus) Next() (EventStatus, bool) {
	r := s.Rank()
	if r < 0 || r >= len(StatusFlow)-1 {
		return "", false
	}
	return StatusFlow[r+1], true
}

// OpenStatuses returns the statuses that make up the open list, in flow order.
func OpenStatuses() []EventStatus {
	var out []EventStatus
	for _, s := range StatusFlow {
		if s.IsOpen() {
			out = append(out, s)
		}
	}
	return out
}

// ClosedStatuses returns the statuses that make up the closed list, in flow order.
func ClosedStatuses() []EventStatus {
	var out []EventStatus
	for _, s := range StatusFlow {
		if s.IsClosed() {
			out = append(out, s)
		}
	}
	return out
}

// PrimaryAction names the single valid primary affordance for an event in this
// status, or "" when there is none.
func (s EventStatus) PrimaryAction() string {
	switch s {
	case StatusDraft:
		return "publish"
	case StatusOrdersClosed:
		return "create-invoices"
	case StatusInvoicePending:
		return "send-invoices"
	default:
		return ""
	}
}

// Label is the human-readable status label used by the back office.
func (s EventStatus) Label() string {
	switch s {
	case StatusDraft:
		return "Entwurf"
	case StatusPublished:
		return "Veröffentlicht"
	case StatusOrdersClosed:
		return "Bestellung geschlossen"
	case StatusInvoicePending:
		return "Rechnung offen"
	case StatusPaymentPending:
		return "Zahlung offen"
	case StatusSettled:
		return "Abgerechnet"
	default:
		return string(s)
	}
}
