/*
errors.go - Centralized error types for the payroll engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The calculation functions in the payroll package never fail; these errors
  are raised only by the ledger, the stores and the command boundary.

ERROR CATEGORIES:
  1. Precondition errors - worker not allocated to the event
  2. Validation errors - out-of-range command input
  3. Ledger/store errors - missing rows, duplicate idempotency keys

USAGE:
  if errors.Is(err, generic.ErrNotAllocated) {
      // show "worker is not allocated to this event"
  }

SEE ALSO:
  - ledger.go: Uses these errors
  - closing/service.go: Raises validation and precondition errors
  - api/handlers.go: Maps errors to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicateIdempotencyKey is returned when a ledger entry with the same
	// idempotency key already exists. Expected for retries and double-clicks.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrNotAllocated is returned when a payment is registered for a worker
	// that has no allocation in the event.
	ErrNotAllocated = errors.New("worker not allocated to event")

	// ErrEntryNotFound is returned when a ledger entry does not exist.
	ErrEntryNotFound = errors.New("ledger entry not found")

	// ErrEventNotFound is returned when an event has no allocations at all.
	ErrEventNotFound = errors.New("event not found")

	// ErrWorkerNotFound is returned when a personnel record is missing.
	ErrWorkerNotFound = errors.New("worker not found")

	// ErrInvalidAmount is returned for zero or negative payment amounts.
	ErrInvalidAmount = errors.New("invalid payment amount")

	// ErrExceedsPending is returned when a partial payment is larger than
	// the pending balance.
	ErrExceedsPending = errors.New("payment exceeds pending amount")

	// ErrInvalidSettings is returned for malformed team overtime settings.
	ErrInvalidSettings = errors.New("invalid overtime settings")

	// ErrInvalidRecord is returned when a record fails input validation
	// (negative hours, empty work days, unknown employment kind).
	ErrInvalidRecord = errors.New("invalid record")

	// ErrStoreRequired is returned when an operation requires a store capability
	// that the configured store does not provide.
	ErrStoreRequired = errors.New("operation requires transactional store")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotAllocatedError reports a rejected ledger write.
type NotAllocatedError struct {
	WorkerID WorkerID
	EventID  EventID
}

func (e *NotAllocatedError) Error() string {
	return fmt.Sprintf("worker %s has no allocation in event %s", e.WorkerID, e.EventID)
}

func (e *NotAllocatedError) Unwrap() error { return ErrNotAllocated }

// ExceedsPendingError provides details about an oversized partial payment.
type ExceedsPendingError struct {
	WorkerID  WorkerID
	EventID   EventID
	Pending   Amount
	Requested Amount
}

func (e *ExceedsPendingError) Error() string {
	return fmt.Sprintf("payment of %v exceeds pending amount %v for worker %s",
		e.Requested.Value, e.Pending.Value, e.WorkerID)
}

func (e *ExceedsPendingError) Unwrap() error { return ErrExceedsPending }

// FieldError names the offending field of an invalid record or command.
type FieldError struct {
	Field  string
	Reason string
	Err    error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrExceedsPending) ||
		errors.Is(err, ErrInvalidSettings) ||
		errors.Is(err, ErrInvalidRecord)
}

// IsPreconditionFailure returns true if the mutation was rejected before
// touching the ledger because the worker is not part of the event.
func IsPreconditionFailure(err error) bool {
	return errors.Is(err, ErrNotAllocated)
}

// IsConflict returns true for retried writes.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateIdempotencyKey)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrEventNotFound) ||
		errors.Is(err, ErrWorkerNotFound)
}
