package core

import "errors"

var (
	// ErrInvalidAmount is returned when an XP delta is zero or not finite.
	ErrInvalidAmount = errors.New("xp amount must be a non-zero finite number")
	// ErrDuplicateClaim is returned when the daily reward was already claimed today.
	ErrDuplicateClaim = errors.New("daily reward already claimed today")

	errNilPlayer = errors.New("nil player state")
)

// Storage errors shared by every adapter.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)
