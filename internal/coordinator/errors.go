package coordinator

import "errors"

// Domain errors for the polling coordinator.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNoSnapshot is returned by Snapshot() before the first
	// successful fetch cycle has completed.
	ErrNoSnapshot = errors.New("coordinator: no snapshot available yet")

	// ErrStopped is returned when a refresh is requested after Stop().
	ErrStopped = errors.New("coordinator: stopped")

	// ErrCycleFailed is returned when a fetch cycle could not produce a
	// snapshot. The underlying transport error is wrapped.
	ErrCycleFailed = errors.New("coordinator: fetch cycle failed")

	// ErrCommandUnauthorized is returned by the dispatcher when the API
	// rejects the credential on a write operation.
	ErrCommandUnauthorized = errors.New("coordinator: command rejected, credential invalid")

	// ErrCommandFailed is returned by the dispatcher for any other write
	// failure. The underlying transport error is wrapped.
	ErrCommandFailed = errors.New("coordinator: command failed")
)
