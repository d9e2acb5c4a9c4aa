package session

import "errors"

var (
	// ErrPoolExhausted is returned when no free sequence instances remain.
	// This is a capacity-planning bug, not a transient condition.
	ErrPoolExhausted = errors.New("no free sequence instances")

	// ErrConcurrencyExceeded is returned when a spawn would exceed the
	// sequence's concurrency factor under the FAIL policy.
	ErrConcurrencyExceeded = errors.New("sequence concurrency limit exceeded")

	// ErrNotConcurrent is returned when a non-concurrent sequence is spawned
	// while an instance of it is already running.
	ErrNotConcurrent = errors.New("sequence is not concurrent")

	// ErrConcurrencyMismatch is returned when a forced-index spawn targets a
	// sequence whose concurrency factor differs from the spawning one's.
	ErrConcurrencyMismatch = errors.New("sequence concurrency factor mismatch")

	// ErrIndexInUse is returned when a forced-index spawn lands on an index
	// that is already executing, under the FAIL policy.
	ErrIndexInUse = errors.New("cannot start sequence with forced index")

	// ErrTooManySequences is returned when the running-sequence table
	// overflows, which indicates a bad static concurrency bound.
	ErrTooManySequences = errors.New("maximum number of scheduled sequences exceeded")

	// ErrNoCurrentSequence is returned when a forced-index spawn happens
	// outside of a running sequence.
	ErrNoCurrentSequence = errors.New("current sequence is not set")

	// ErrPhaseMismatch is returned by ResetPhase when the new phase does not
	// share the scenario and shared resources of the previous one, or the
	// previous one has not terminated.
	ErrPhaseMismatch = errors.New("incompatible phase for session reuse")
)
