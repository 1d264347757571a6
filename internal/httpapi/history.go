package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/Hamza-Xoho/digital-surveyor/internal/postcode"
	"github.com/Hamza-Xoho/digital-surveyor/internal/sqlcgen"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

type historyEntry struct {
	ID            string          `json:"id"`
	Postcode      string          `json:"postcode"`
	OverallRating string          `json:"overall_rating"`
	Outcome       string          `json:"outcome"`
	AssessmentID  *string         `json:"assessment_id,omitempty"`
	Latitude      float64         `json:"latitude"`
	Longitude     float64         `json:"longitude"`
	VehicleCount  int32           `json:"vehicle_count"`
	Notes         *string         `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	Result        json.RawMessage `json:"result,omitempty"`
}

func (h *Handler) ensureHistory(w http.ResponseWriter) bool {
	if h.history == nil {
		h.writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not configured", nil)
		return false
	}
	return true
}

func toHistoryEntry(s sqlcgen.AssessmentSnapshot) historyEntry {
	e := historyEntry{
		ID:            s.ID,
		Postcode:      s.Postcode,
		OverallRating: s.OverallRating,
		Outcome:       s.Outcome,
		AssessmentID:  s.AssessmentID,
		Latitude:      s.Latitude,
		Longitude:     s.Longitude,
		VehicleCount:  s.VehicleCount,
		Notes:         s.Notes,
		CreatedAt:     s.CreatedAt,
	}
	if len(s.Document) > 0 {
		e.Result = json.RawMessage(s.Document)
	}
	return e
}

func (h *Handler) handleListHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := parseLimitParam(q.Get("limit"), defaultHistoryLimit, maxHistoryLimit)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid limit", map[string]any{"limit": q.Get("limit"), "error": err.Error()})
		return
	}

	var filter *string
	if raw := strings.TrimSpace(q.Get("postcode")); raw != "" {
		pc, err := postcode.Validate(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "validation_failed", "Please enter a valid UK postcode", map[string]any{"postcode": raw})
			return
		}
		s := pc.String()
		filter = &s
	}

	if !h.ensureHistory(w) {
		return
	}

	rows, err := h.history.ListRecentAssessments(r.Context(), sqlcgen.ListRecentAssessmentsParams{
		Postcode: filter,
		Limit:    int32(limit),
	})
	if err != nil {
		h.log.Error().Err(err).Msg("list history failed")
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to list history", nil)
		return
	}

	resp := make([]historyEntry, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, toHistoryEntry(row))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.ensureHistory(w) {
		return
	}

	row, err := h.history.GetAssessmentSnapshot(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			h.writeError(w, http.StatusNotFound, "not_found", "assessment not found", map[string]any{"id": id})
		case isInvalidUUID(err):
			h.writeError(w, http.StatusBadRequest, "invalid_id", "assessment id is not a valid uuid", map[string]any{"id": id})
		default:
			h.log.Error().Err(err).Str("id", id).Msg("get history failed")
			h.writeError(w, http.StatusInternalServerError, "db_error", "failed to fetch assessment", nil)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, toHistoryEntry(row))
}
