package engine

import (
	"errors"

	"questboard/core"
)

// Storage errors live in core so adapters need not import engine.
var (
	ErrNotFound = core.ErrNotFound
	ErrConflict = core.ErrConflict
)

var (
	// ErrInvalidInput wraps request values the service cannot accept.
	ErrInvalidInput = errors.New("invalid input")
	// ErrForbidden is returned when a task belongs to another user.
	ErrForbidden = errors.New("forbidden")
)
