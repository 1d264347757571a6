package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/Hamza-Xoho/digital-surveyor/internal/postcode"
)

type sessionStatus struct {
	LoggedIn  bool       `json:"logged_in"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type sessionLogin struct {
	Token string `json:"token"`
}

type formattedPostcode struct {
	Formatted string `json:"formatted"`
	Valid     bool   `json:"valid"`
	Canonical string `json:"canonical,omitempty"`
}

func (h *Handler) ensureSession(w http.ResponseWriter) bool {
	if h.session == nil {
		h.writeError(w, http.StatusServiceUnavailable, "session_unavailable", "session not configured", nil)
		return false
	}
	return true
}

func (h *Handler) currentSession() sessionStatus {
	st := sessionStatus{LoggedIn: h.session.IsLoggedIn()}
	if st.LoggedIn {
		if exp, ok := h.session.Expiry(); ok {
			st.ExpiresAt = &exp
		}
	}
	return st
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if !h.ensureSession(w) {
		return
	}
	h.writeJSON(w, http.StatusOK, h.currentSession())
}

// handlePutSession stores a bearer credential. Tokens that are malformed or already
// inside the expiry buffer are refused.
func (h *Handler) handlePutSession(w http.ResponseWriter, r *http.Request) {
	var req sessionLogin
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	if !h.ensureSession(w) {
		return
	}

	token := strings.TrimSpace(req.Token)
	if !h.session.IsValid(token) {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "token is malformed or expired", nil)
		return
	}
	if err := h.session.Set(token); err != nil {
		h.log.Error().Err(err).Msg("store session failed")
		h.writeError(w, http.StatusInternalServerError, "session_error", "failed to store session", nil)
		return
	}

	h.refreshCatalogue(r, "login")
	h.writeJSON(w, http.StatusOK, h.currentSession())
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !h.ensureSession(w) {
		return
	}
	if err := h.session.Clear(); err != nil {
		h.log.Error().Err(err).Msg("clear session failed")
		h.writeError(w, http.StatusInternalServerError, "session_error", "failed to clear session", nil)
		return
	}
	h.refreshCatalogue(r, "logout")
	w.WriteHeader(http.StatusNoContent)
}

// refreshCatalogue reloads vehicle profiles after the session changes, since custom
// profiles are only listed with a session.
func (h *Handler) refreshCatalogue(r *http.Request, after string) {
	if h.catalogue == nil {
		return
	}
	if err := h.catalogue.Refresh(r.Context()); err != nil {
		h.log.Warn().Err(err).Str("after", after).Msg("catalogue refresh failed")
	}
}

func (h *Handler) handleFormatPostcode(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("raw")
	resp := formattedPostcode{Formatted: postcode.FormatInput(raw)}
	if pc, err := postcode.Validate(raw); err == nil {
		resp.Valid = true
		resp.Canonical = pc.String()
	}
	h.writeJSON(w, http.StatusOK, resp)
}
