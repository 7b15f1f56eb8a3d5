package task

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrBoundary   = errors.New("move out of bounds")
)

// ValidationError reports malformed input for one field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Msg) }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// BoundaryError is returned when a task is already at the top or bottom.
type BoundaryError struct {
	ID        int64
	Direction Direction
}

func (e *BoundaryError) Error() string {
	if e.Direction == Up {
		return fmt.Sprintf("task %d already at top", e.ID)
	}
	return fmt.Sprintf("task %d already at bottom", e.ID)
}

func (e *BoundaryError) Is(target error) bool { return target == ErrBoundary }
