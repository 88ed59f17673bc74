package services

import "github.com/pkg/errors"

// Precondition violations. These are rejected synchronously, before any
// gateway call is attempted, and map to user-facing messages at the API
// boundary.
var (
	ErrValidation     = errors.New("missing or invalid input")
	ErrNotDeletable   = errors.New("event can only be deleted while offen or bestellbar")
	ErrNotEditable    = errors.New("products can only be changed while the event is offen")
	ErrStatusConflict = errors.New("event is not in the expected status")
)
