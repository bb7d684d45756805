package errors

import "errors"

var (
	ErrNotFound = errors.New("bid not found")

	// ErrStatusChanged means a conditional status write found the bid no
	// longer in the expected status.
	ErrStatusChanged = errors.New("bid status changed concurrently")
)
