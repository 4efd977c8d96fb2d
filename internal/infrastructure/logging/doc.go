// Package logging provides structured logging for the BIOCAT bridge.
//
// It wraps log/slog with level parsing, format selection (JSON or text)
// and default service/version fields. The upstream API credential must
// never reach a log line; callers log connection targets and status, not
// headers.
package logging
