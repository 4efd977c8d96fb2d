package biocat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestTransport(t *testing.T, handler http.HandlerFunc) *Transport {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tr, err := NewTransport(TransportConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Timeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewTransport: %v", err)
	}
	return tr
}

func TestNewTransportValidation(t *testing.T) {
	if _, err := NewTransport(TransportConfig{APIKey: "k"}); err == nil {
		t.Error("expected error for missing base URL")
	}
	if _, err := NewTransport(TransportConfig{BaseURL: "https://example.com"}); err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestExecuteSendsCredentialAndPath(t *testing.T) {
	var gotKey, gotPath, gotMethod string
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-KEY")
		gotPath = r.URL.Path
		gotMethod = r.Method
		w.Write([]byte(`{"temperature": 18.5}`)) //nolint:errcheck
	})

	body, err := tr.Execute(context.Background(), OpReadMeasurements, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if gotKey != "test-key" {
		t.Errorf("X-API-KEY = %q, want %q", gotKey, "test-key")
	}
	if gotPath != "/v1/measurements/direct" {
		t.Errorf("path = %q, want /v1/measurements/direct", gotPath)
	}
	if gotMethod != http.MethodGet {
		t.Errorf("method = %q, want GET", gotMethod)
	}
	if body == nil {
		t.Error("expected non-nil body")
	}
}

func TestExecuteMarshalsPayload(t *testing.T) {
	var gotBody map[string]bool
	var gotContentType string
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&gotBody) //nolint:errcheck
		w.WriteHeader(http.StatusNoContent)
	})

	body, err := tr.Execute(context.Background(), OpSetAbsenceMode, map[string]bool{"active": true})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if body != nil {
		t.Errorf("expected nil body for 204, got %s", body)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotContentType)
	}
	if !gotBody["active"] {
		t.Error("payload not delivered")
	}
}

func TestExecuteStatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrUnauthorized},
		{"forbidden", http.StatusForbidden, ErrUnauthorized},
		{"not found", http.StatusNotFound, ErrNotFound},
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited},
		{"server error", http.StatusInternalServerError, ErrUnreachable},
		{"bad gateway", http.StatusBadGateway, ErrUnreachable},
		{"unexpected client error", http.StatusBadRequest, ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			_, err := tr.Execute(context.Background(), OpReadState, nil)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Execute error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestExecuteTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	tr, err := NewTransport(TransportConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Timeout: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewTransport: %v", err)
	}

	_, err = tr.Execute(context.Background(), OpReadState, nil)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Execute error = %v, want ErrTimeout", err)
	}
}

func TestExecuteUnreachable(t *testing.T) {
	tr, err := NewTransport(TransportConfig{
		BaseURL: "http://127.0.0.1:1", // nothing listens here
		APIKey:  "test-key",
		Timeout: time.Second,
	})
	if err != nil {
		t.Fatalf("NewTransport: %v", err)
	}

	_, err = tr.Execute(context.Background(), OpReadState, nil)
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("Execute error = %v, want ErrUnreachable", err)
	}
}

func TestExecuteMalformedBody(t *testing.T) {
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>")) //nolint:errcheck
	})

	_, err := tr.Execute(context.Background(), OpReadState, nil)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("Execute error = %v, want ErrMalformedResponse", err)
	}
}

func TestExecuteUnknownOperation(t *testing.T) {
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := tr.Execute(context.Background(), Operation("bogus"), nil)
	if !errors.Is(err, ErrUnknownOperation) {
		t.Errorf("Execute error = %v, want ErrUnknownOperation", err)
	}
}

func TestExecuteEmptyBodyIsNil(t *testing.T) {
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	body, err := tr.Execute(context.Background(), OpRunSelfTest, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if body != nil {
		t.Errorf("expected nil body, got %s", body)
	}
}
