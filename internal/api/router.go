package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-biocat/internal/coordinator"
	"github.com/nerrad567/gray-logic-biocat/internal/history"
)

// defaultHistoryLimit caps the history endpoint's response size.
const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes (read-only, no auth: bind to localhost or firewall it)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/snapshot", s.handleSnapshot)
		r.Get("/device", s.handleDevice)
		r.Get("/history", s.handleHistory)
		r.Get("/history/latest", s.handleHistoryLatest)
		r.Get("/statistics", s.handleStatistics)
	})

	return r
}

// handleHealth returns the bridge health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	stats := s.provider.Stats()

	status := "ok"
	if stats.Offline {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         status,
		"version":        s.version,
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
		"upstream":       stats,
	})
}

// handleSnapshot returns the current appliance snapshot.
func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	snap, err := s.provider.Snapshot()
	if err != nil {
		if errors.Is(err, coordinator.ErrNoSnapshot) {
			writeUnavailable(w, "no snapshot available yet")
			return
		}
		writeInternalError(w, "reading snapshot")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"snapshot": snap,
		"upstream": s.provider.Stats(),
	})
}

// handleDevice returns the appliance metadata fetched at startup.
func (s *Server) handleDevice(w http.ResponseWriter, _ *http.Request) {
	if s.device == nil {
		writeNotFound(w, "device info not available")
		return
	}
	writeJSON(w, http.StatusOK, s.device)
}

// handleHistory returns recent snapshot history, most recent first.
//
// Query parameters:
//   - limit: Maximum entries to return (default 100, max 1000)
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeNotFound(w, "history is disabled")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = min(parsed, maxHistoryLimit)
	}

	entries, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("querying history", "error", err)
		writeInternalError(w, "querying history")
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}

	total, err := s.history.Count(r.Context())
	if err != nil {
		s.logger.Error("counting history", "error", err)
		writeInternalError(w, "querying history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(entries),
		"total":   total,
		"entries": entries,
	})
}

// handleHistoryLatest returns the single most recent history entry.
func (s *Server) handleHistoryLatest(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeNotFound(w, "history is disabled")
		return
	}

	entry, err := s.history.Latest(r.Context())
	if errors.Is(err, history.ErrNotFound) {
		writeNotFound(w, "no history recorded yet")
		return
	}
	if err != nil {
		s.logger.Error("querying latest history entry", "error", err)
		writeInternalError(w, "querying history")
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

// handleStatistics returns consumption aggregates derived from history.
//
// The weekly and monthly figures are the growth of the lifetime total
// over the trailing window; null until the window holds recorded totals.
func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeNotFound(w, "history is disabled")
		return
	}

	now := time.Now().UTC()

	weekly, haveWeekly, err := s.history.ConsumptionSince(r.Context(), now.AddDate(0, 0, -7))
	if err != nil {
		s.logger.Error("aggregating weekly consumption", "error", err)
		writeInternalError(w, "aggregating statistics")
		return
	}
	monthly, haveMonthly, err := s.history.ConsumptionSince(r.Context(), now.AddDate(0, -1, 0))
	if err != nil {
		s.logger.Error("aggregating monthly consumption", "error", err)
		writeInternalError(w, "aggregating statistics")
		return
	}

	resp := map[string]any{
		"weekly_consumption_l":  nil,
		"monthly_consumption_l": nil,
	}
	if haveWeekly {
		resp["weekly_consumption_l"] = weekly
	}
	if haveMonthly {
		resp["monthly_consumption_l"] = monthly
	}

	writeJSON(w, http.StatusOK, resp)
}
