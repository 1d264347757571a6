package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Hamza-Xoho/digital-surveyor/internal/assessclient"
	"github.com/Hamza-Xoho/digital-surveyor/internal/postcode"
	"github.com/Hamza-Xoho/digital-surveyor/internal/view"
)

type postcodeRequest struct {
	Postcode string `json:"postcode"`
}

type selectionRequest struct {
	VehicleClass string `json:"vehicle_class"`
}

type notesRequest struct {
	Notes string `json:"notes"`
}

type enterResponse struct {
	Submitted bool          `json:"submitted"`
	View      view.Snapshot `json:"view"`
}

func (h *Handler) ensureView(w http.ResponseWriter) bool {
	if h.view == nil {
		h.writeError(w, http.StatusServiceUnavailable, "view_unavailable", "view not configured", nil)
		return false
	}
	return true
}

func (h *Handler) handleGetView(w http.ResponseWriter, r *http.Request) {
	if !h.ensureView(w) {
		return
	}
	h.writeJSON(w, http.StatusOK, h.view.Snapshot())
}

func (h *Handler) handleViewSubmit(w http.ResponseWriter, r *http.Request) {
	var req postcodeRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	if !h.ensureView(w) {
		return
	}

	snap, err := h.view.Submit(r.Context(), req.Postcode)
	if err != nil {
		h.writeViewError(w, err, snap)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleViewEnter(w http.ResponseWriter, r *http.Request) {
	var req postcodeRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	if !h.ensureView(w) {
		return
	}

	snap, submitted, err := h.view.Enter(r.Context(), req.Postcode)
	if err != nil {
		h.writeViewError(w, err, snap)
		return
	}
	h.writeJSON(w, http.StatusOK, enterResponse{Submitted: submitted, View: snap})
}

func (h *Handler) handleViewSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	if !h.ensureView(w) {
		return
	}

	class := strings.TrimSpace(req.VehicleClass)
	if class == "" {
		h.writeJSON(w, http.StatusOK, h.view.ClearSelection())
		return
	}

	snap, err := h.view.ToggleVehicle(class)
	if err != nil {
		h.writeViewError(w, err, snap)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleDismissError(w http.ResponseWriter, r *http.Request) {
	if !h.ensureView(w) {
		return
	}
	snap, err := h.view.DismissError(r.Context())
	if err != nil {
		h.writeViewError(w, err, snap)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleViewNotes(w http.ResponseWriter, r *http.Request) {
	var req notesRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	if !h.ensureView(w) {
		return
	}

	snap, err := h.view.UpdateNotes(r.Context(), req.Notes)
	if err != nil {
		h.writeViewError(w, err, snap)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

// writeViewError maps view and client errors onto the error envelope. Upstream failures
// carry the resulting view so the page can keep showing the previous result.
func (h *Handler) writeViewError(w http.ResponseWriter, err error, snap view.Snapshot) {
	var upErr *assessclient.Error
	switch {
	case errors.Is(err, postcode.ErrEmpty):
		h.writeError(w, http.StatusBadRequest, "validation_failed", "Please enter a postcode", map[string]any{"reason": "empty"})
	case errors.Is(err, postcode.ErrMalformed):
		h.writeError(w, http.StatusBadRequest, "validation_failed", "Please enter a valid UK postcode", map[string]any{"reason": "malformed"})
	case errors.Is(err, view.ErrBusy):
		h.writeError(w, http.StatusConflict, "busy", err.Error(), nil)
	case errors.Is(err, view.ErrNoResult):
		h.writeError(w, http.StatusConflict, "no_result", err.Error(), nil)
	case errors.Is(err, view.ErrUnknownVehicle):
		h.writeError(w, http.StatusNotFound, "unknown_vehicle", err.Error(), nil)
	case errors.Is(err, view.ErrNotPersisted):
		h.writeError(w, http.StatusConflict, "not_persisted", err.Error(), nil)
	case errors.Is(err, assessclient.ErrNotAuthenticated):
		h.writeError(w, http.StatusUnauthorized, "unauthenticated", err.Error(), nil)
	case errors.Is(err, view.ErrClosed):
		h.writeError(w, http.StatusServiceUnavailable, "view_closed", err.Error(), nil)
	case errors.Is(err, view.ErrRender):
		h.writeError(w, http.StatusBadGateway, "unrenderable_result", err.Error(), map[string]any{"view": snap})
	case errors.As(err, &upErr):
		h.writeError(w, http.StatusBadGateway, "upstream_failed", upErr.Message, map[string]any{
			"upstream_status": upErr.Status,
			"view":            snap,
		})
	default:
		h.log.Error().Err(err).Msg("view operation failed")
		h.writeError(w, http.StatusInternalServerError, "internal", "view operation failed", nil)
	}
}
