package web

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/nyc-collisions/internal/audit"
	"github.com/nyc-collisions/internal/config"
	"github.com/nyc-collisions/internal/warehouse"
)

// Handler serves the read-only API endpoints.
type Handler struct {
	DB     *sql.DB
	Config config.Config
}

// Health pings the warehouse connection.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.DB.PingContext(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// GetSummary recounts the target table and returns the totals.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := warehouse.Summarize(r.Context(), h.DB, h.Config)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, summary)
}

// ListRuns returns run history, newest first. ?limit= caps the result.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, errInvalidLimit)
			return
		}
		limit = n
	}

	runs, err := audit.NewTracker(h.DB).RecentRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []audit.RunRecord{}
	}
	writeJSON(w, runs)
}

var errInvalidLimit = &limitError{}

type limitError struct{}

func (*limitError) Error() string { return "limit must be a positive integer" }

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
