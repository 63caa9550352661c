package api

import (
	"fmt"
	"net/http"

	"github.com/daimoniac/securevision/internal/errors"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

// handleDashboard returns the full dashboard view
// @Summary Get dashboard view
// @Description Current metrics, series, posture decision, poller status and staleness
// @Tags Dashboard
// @Produce json
// @Success 200 {object} dashboard.View
// @Failure 405 {object} map[string]string "Method not allowed"
// @Router /dashboard [get]
func (s *APIServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.respondJSON(w, http.StatusOK, s.dashboard.View())
}

// handleMetrics returns the current snapshot in the upstream wire shape
// @Summary Get current security metrics
// @Description The most recently applied snapshot; all zero before the first successful poll
// @Tags Metrics
// @Produce json
// @Success 200 {object} metrics.SecurityMetrics
// @Failure 405 {object} map[string]string "Method not allowed"
// @Router /metrics [get]
func (s *APIServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.respondJSON(w, http.StatusOK, s.dashboard.Metrics().Load())
}

// handleHistory lists recorded snapshots
// @Summary List snapshot history
// @Description Recorded snapshots, newest first
// @Tags Metrics
// @Produce json
// @Param limit query int false "Maximum number of results" default(100)
// @Success 200 {array} statestore.Record
// @Failure 400 {object} map[string]string "Invalid limit"
// @Failure 404 {object} map[string]string "History disabled"
// @Failure 405 {object} map[string]string "Method not allowed"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /metrics/history [get]
func (s *APIServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	store := s.dashboard.History()
	if store == nil {
		s.respondError(w, http.StatusNotFound, "Snapshot history is not enabled")
		return
	}

	limit, err := historyLimit(r)
	if err != nil {
		s.respondError(w, statusForError(err), err.Error())
		return
	}

	records, err := store.ListSnapshots(r.Context(), limit)
	if err != nil {
		s.respondError(w, statusForError(err), fmt.Sprintf("Failed to list snapshots: %v", err))
		return
	}

	s.respondJSON(w, http.StatusOK, records)
}

// historyLimit reads the limit query parameter; out of range values are
// ErrInvalidInput
func historyLimit(r *http.Request) (int, error) {
	limit, err := parseQueryParamInt(r, "limit", defaultHistoryLimit)
	if err != nil {
		return 0, err
	}
	if limit <= 0 || limit > maxHistoryLimit {
		return 0, fmt.Errorf("%w: limit must be between 1 and %d", errors.ErrInvalidInput, maxHistoryLimit)
	}
	return limit, nil
}

// handleTimeline returns the threat timeline series
// @Summary Get threat timeline
// @Tags Series
// @Produce json
// @Success 200 {array} metrics.ThreatSample
// @Failure 405 {object} map[string]string "Method not allowed"
// @Router /timeline [get]
func (s *APIServer) handleTimeline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.respondJSON(w, http.StatusOK, s.dashboard.Timeline())
}

// handleVulnerabilities returns the vulnerability distribution
// @Summary Get vulnerability distribution
// @Tags Series
// @Produce json
// @Success 200 {array} metrics.VulnerabilityBucket
// @Failure 405 {object} map[string]string "Method not allowed"
// @Router /vulnerabilities [get]
func (s *APIServer) handleVulnerabilities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.respondJSON(w, http.StatusOK, s.dashboard.Vulnerabilities())
}
