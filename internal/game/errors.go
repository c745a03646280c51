package game

import "errors"

// Failure categories for room and round operations. Handlers pick a
// status code with errors.Is; operations wrap these with %w and a
// human-readable reason.
var (
	// ErrValidation marks malformed or out-of-range input.
	ErrValidation = errors.New("invalid input")
	// ErrAuthorization marks an actor lacking the required role.
	ErrAuthorization = errors.New("not allowed")
	// ErrSequence marks an operation invoked in the wrong phase or state.
	ErrSequence = errors.New("wrong phase")
	// ErrPrecondition marks a required prior step not yet satisfied.
	ErrPrecondition = errors.New("precondition not met")
	// ErrInvariant marks an update that would break a monotonic guarantee.
	ErrInvariant = errors.New("invariant violation")
	// ErrNotFound marks a missing room, member, round or entry.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a concurrent-round or duplicate-resource conflict.
	ErrConflict = errors.New("conflict")
	// ErrCapacity marks a full room.
	ErrCapacity = errors.New("room full")
)
