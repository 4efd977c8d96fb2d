package bridge

import "errors"

// Domain errors for the bridge package.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrUnknownEntity is returned when a command targets an entity that
	// is not in the catalog or is not commandable.
	ErrUnknownEntity = errors.New("bridge: unknown or read-only entity")

	// ErrUnknownCommand is returned when a command name is not valid for
	// the target entity.
	ErrUnknownCommand = errors.New("bridge: unknown command for entity")
)
