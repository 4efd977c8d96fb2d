package biocat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Transport limits.
const (
	// defaultRequestTimeout bounds a single API call.
	defaultRequestTimeout = 10 * time.Second

	// maxResponseBytes caps response bodies to protect against a
	// misbehaving upstream. Real bodies are well under 4KB.
	maxResponseBytes = 1 << 20 // 1MB
)

// Transport executes authenticated requests against the BIOCAT cloud API.
//
// It adds the credential header, resolves operation paths through the
// endpoint catalog, applies a per-call timeout and converts failures into
// the package's typed errors. It never retries: retry and backoff policy
// belongs to the polling coordinator so cross-call state stays in one
// place.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - The Transport is stateless beyond the shared http.Client.
type Transport struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
}

// TransportConfig holds the settings for creating a Transport.
type TransportConfig struct {
	// BaseURL is the API endpoint base, no trailing slash.
	BaseURL string

	// APIKey is the static per-device credential. Owned exclusively by
	// the Transport; never logged.
	APIKey string

	// Timeout bounds each request. Defaults to 10s when zero.
	Timeout time.Duration

	// HTTPClient optionally overrides the HTTP client (used in tests).
	HTTPClient *http.Client
}

// NewTransport creates a Transport for the given endpoint and credential.
func NewTransport(cfg TransportConfig) (*Transport, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultRequestTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Transport{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		timeout:    timeout,
		httpClient: httpClient,
	}, nil
}

// Execute performs one API operation and returns the raw JSON body.
//
// The operation is resolved through the endpoint catalog; an optional
// payload is serialized as the JSON request body. An empty response body
// (204 or empty 200, typical for write operations) returns nil without
// error.
//
// Parameters:
//   - ctx: Context for cancellation; a per-call timeout is layered on top
//   - op: Logical operation from the endpoint catalog
//   - payload: Optional request body, marshalled to JSON (nil for none)
//
// Returns:
//   - json.RawMessage: Decoded-validated response body (nil if empty)
//   - error: One of the package's typed errors on failure
func (t *Transport) Execute(ctx context.Context, op Operation, payload any) (json.RawMessage, error) {
	ep, ok := endpoints[op]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, op)
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding %s payload: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, ep.method, t.baseURL+ep.path, body)
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-KEY", t.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, classifyRequestError(op, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Read-side close, nothing to handle

	if err := classifyStatus(op, resp.StatusCode); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s body: %w", ErrUnreachable, op, err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, op)
	}

	return json.RawMessage(data), nil
}

// CloseIdleConnections releases pooled connections.
// Call on shutdown after the coordinator has stopped.
func (t *Transport) CloseIdleConnections() {
	t.httpClient.CloseIdleConnections()
}

// classifyRequestError maps network-level failures to typed errors.
func classifyRequestError(op Operation, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrTimeout, op)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrUnreachable, op, err)
}

// classifyStatus maps non-2xx HTTP statuses to typed errors.
func classifyStatus(op Operation, status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %s (HTTP %d)", ErrUnauthorized, op, status)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, op)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, op)
	case status >= 500:
		return fmt.Errorf("%w: %s (HTTP %d)", ErrUnreachable, op, status)
	default:
		return fmt.Errorf("%w: %s (HTTP %d)", ErrMalformedResponse, op, status)
	}
}
