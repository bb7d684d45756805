package errors

import "errors"

var (
	ErrNotFound = errors.New("load not found")

	// ErrVersionMismatch means a status write targeted a stale version.
	ErrVersionMismatch = errors.New("load version mismatch")
)
