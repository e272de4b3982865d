/*
errors.go - Centralized error types for the core engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Collaborators (HTTP handlers etc.) map these onto their own surface.

ERROR CATEGORIES:
  1. Lookup errors      - Unknown ids
  2. Lifecycle errors   - Writes against superseded entities
  3. Concurrency errors - Precondition mismatches and lost CAS races
  4. Storage errors     - I/O and integrity failures (fatal, never retried
                          internally)

USAGE:
  Callers branch with errors.Is / errors.As:

    var conflict *core.ConflictError
    if errors.As(err, &conflict) {
        // render 409 with conflict.CurrentHash / conflict.CurrentVersion
    }

SEE ALSO:
  - store.go: Operations returning these errors
  - api/handlers.go: HTTP status mapping
*/
package core

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when an id resolves to nothing.
	ErrNotFound = errors.New("entity not found")

	// ErrConflict is returned when an update's precondition does not match
	// the current state, or when a concurrent writer won the CAS race.
	ErrConflict = errors.New("concurrent modification detected")

	// ErrImmutableRecord is returned when a write targets a superseded
	// entity. Superseded is terminal; the caller should not retry.
	ErrImmutableRecord = errors.New("record is superseded and immutable")

	// ErrAlreadySuperseded is returned on a duplicate supersession.
	// Supersession is one-shot; whether to treat a repeat delete as a
	// no-op is the caller's policy decision.
	ErrAlreadySuperseded = errors.New("entity already superseded")

	// ErrStorage wraps I/O and integrity failures from the underlying
	// store. Fatal from the core's point of view; never retried here.
	ErrStorage = errors.New("storage failure")

	// ErrInvalidFields is returned when a payload fails validation before
	// it reaches storage.
	ErrInvalidFields = errors.New("invalid fields")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConflictError reports an optimistic-locking failure with enough state for
// the caller to refetch and retry. Exactly one of ClientHash/ClientVersion
// is set when the caller supplied a precondition; both are nil when a
// concurrent writer won the race under Precondition None.
type ConflictError struct {
	Message        string
	CurrentHash    string
	CurrentVersion int64
	ClientHash     *string
	ClientVersion  *int64
}

func (e *ConflictError) Error() string {
	if e.ClientVersion != nil {
		return fmt.Sprintf("%s: current version %d, client version %d",
			e.Message, e.CurrentVersion, *e.ClientVersion)
	}
	if e.ClientHash != nil {
		return fmt.Sprintf("%s: current hash %s, client hash %s",
			e.Message, e.CurrentHash, *e.ClientHash)
	}
	return fmt.Sprintf("%s: current version %d", e.Message, e.CurrentVersion)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// StorageError wraps a failure from the underlying storage engine with the
// operation that hit it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure in %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return ErrStorage
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing entity or record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true for precondition mismatches and lost CAS races.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsRetryable returns true if refetching current state and reapplying might
// succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsClientError returns true if the error is the caller's doing rather than
// a storage fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrImmutableRecord) ||
		errors.Is(err, ErrAlreadySuperseded) ||
		errors.Is(err, ErrInvalidFields)
}
