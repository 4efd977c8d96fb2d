package biocat

import "errors"

// Domain errors for the BIOCAT API client package.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrUnauthorized is returned when the API rejects the credential
	// (HTTP 401/403). This is fatal, not transient: the API key needs
	// re-entry and retrying will not help.
	ErrUnauthorized = errors.New("biocat: unauthorized (invalid or expired API key)")

	// ErrNotFound is returned when the requested resource does not exist
	// (HTTP 404).
	ErrNotFound = errors.New("biocat: resource not found")

	// ErrRateLimited is returned when the API throttles the client
	// (HTTP 429). The caller should let the next scheduled cycle retry.
	ErrRateLimited = errors.New("biocat: rate limited by upstream API")

	// ErrTimeout is returned when a request exceeds the per-call timeout.
	ErrTimeout = errors.New("biocat: request timed out")

	// ErrUnreachable is returned on connection failures or upstream
	// server errors (HTTP 5xx).
	ErrUnreachable = errors.New("biocat: API unreachable")

	// ErrMalformedResponse is returned when a response body cannot be
	// decoded as JSON.
	ErrMalformedResponse = errors.New("biocat: malformed response body")

	// ErrUnknownOperation is returned when an operation has no endpoint
	// binding in the catalog.
	ErrUnknownOperation = errors.New("biocat: unknown operation")
)
