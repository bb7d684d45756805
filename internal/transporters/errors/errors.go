package errors

import "errors"

var (
	ErrNotFound = errors.New("transporter not found")

	ErrCapacityNotFound = errors.New("no capacity declared for truck type")

	ErrInsufficientCapacity = errors.New("insufficient truck capacity")
)
