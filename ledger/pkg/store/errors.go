package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the referenced row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicatePayment is returned when a payment already exists for a
// submission. It is the idempotency guard against replayed acceptances.
var ErrDuplicatePayment = errors.New("payment already exists for submission")

// ValidationError is a malformed-input error, rejected before any state
// mutation is attempted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StateConflictError is returned when a guarded transition finds the row in
// a state other than the one the caller read. The mutation is not applied;
// Current tells the caller what is actually persisted.
type StateConflictError struct {
	Entity  string // "submission" or "payment"
	Current string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("%s already finalized: current status is %s", e.Entity, e.Current)
}

// IsStateConflict reports whether err is a StateConflictError.
func IsStateConflict(err error) bool {
	var sc *StateConflictError
	return errors.As(err, &sc)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
