package manager

import (
	"errors"
	"fmt"

	"github.com/studymatch/studymatch/libs/schedule"
)

// ErrNotFound is returned when the referenced slot does not exist.
var ErrNotFound = errors.New("slot not found")

// ErrNotOwner is returned when the caller does not own the referenced slot.
var ErrNotOwner = errors.New("slot owned by another user")

// ValidationError rejects malformed input before any store interaction:
// empty batches, out-of-range weekdays, or end-not-after-start ranges.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid availability input: " + e.Reason
}

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ConflictError reports which requested ranges collide with which stored
// (or, for batches, sibling) ranges. Nothing is persisted alongside it.
type ConflictError struct {
	Conflicts []schedule.Conflict
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("availability conflict: %d candidate(s) overlap existing slots", len(e.Conflicts))
}

// StoreError wraps a slot store failure. The manager never retries; retry
// policy belongs to the store or the caller.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return "slot store " + e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
