package errors

import "errors"

var (
	// ErrNotFound indicates the booking does not exist.
	ErrNotFound = errors.New("booking not found")

	// ErrStatusChanged indicates a conditional status update matched no
	// document because the booking is no longer in the expected status.
	ErrStatusChanged = errors.New("booking status changed")

	// ErrLockHeld indicates another request holds the load's allocation lock.
	ErrLockHeld = errors.New("allocation lock already held")
)
