package scheduler

import "errors"

var (
	// ErrInvalidConfig is returned when the trigger time is out of range
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrDuplicateTask is returned when two tasks share a name
	ErrDuplicateTask = errors.New("task already registered")
)
