package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/windfleet/turbinewatch/internal/domain"
	"github.com/windfleet/turbinewatch/internal/ingest"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.QuickCheck(r.Context()); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "turbinewatch",
	})
}

// handleTurbineSummaries returns a turbine's recent daily summaries.
func (s *Server) handleTurbineSummaries(w http.ResponseWriter, r *http.Request) {
	turbineID, err := strconv.Atoi(chi.URLParam(r, "turbineID"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "turbine id must be numeric")
		return
	}

	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		days, err = strconv.Atoi(v)
		if err != nil || days <= 0 {
			s.writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
	}

	summaries, err := s.store.Summaries.Recent(turbineID, days)
	if err != nil {
		s.log.Error().Err(err).Int("turbine_id", turbineID).Msg("Failed to load summaries")
		s.writeError(w, http.StatusInternalServerError, "failed to load summaries")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"turbine_id": turbineID,
		"summaries":  summaries,
	})
}

// handleAnomalies returns anomaly records, either for one date or the most
// recently flagged ones.
func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	if date := r.URL.Query().Get("date"); date != "" {
		if _, err := domain.ParseDate(date); err != nil {
			s.writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		records, err := s.store.Anomalies.ByDate(date)
		if err != nil {
			s.log.Error().Err(err).Str("date", date).Msg("Failed to load anomalies")
			s.writeError(w, http.StatusInternalServerError, "failed to load anomalies")
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"date": date, "anomalies": records})
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := s.store.Anomalies.Flagged(limit)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load flagged anomalies")
		s.writeError(w, http.StatusInternalServerError, "failed to load anomalies")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"anomalies": records})
}

// ingestRequest is the POST /api/ingest payload.
type ingestRequest struct {
	File  string `json:"file"`
	Group int    `json:"group"`
	Date  string `json:"date,omitempty"`
}

// handleIngest triggers a pipeline run for one CSV file.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.File == "" {
		s.writeError(w, http.StatusBadRequest, "file is required")
		return
	}

	group, err := domain.GroupByID(req.Group)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var targetDate time.Time
	if req.Date != "" {
		targetDate, err = domain.ParseDate(req.Date)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
	}

	result, err := s.runner.RunFile(req.File, group, targetDate)
	if err != nil {
		var schemaErr *ingest.SchemaError
		var groupErr *ingest.GroupMismatchError
		if errors.As(err, &schemaErr) || errors.As(err, &groupErr) {
			s.writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.log.Error().Err(err).Str("file", req.File).Msg("Ingest run failed")
		s.writeError(w, http.StatusInternalServerError, "ingest run failed")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":    result.RunID,
		"stage":     result.Stage,
		"rows_in":   result.RowsIn,
		"rows_kept": result.RowsKept,
		"summaries": len(result.Summaries),
		"anomalies": len(result.Anomalies),
	})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
