package httpapi

import (
	"net/http"
	"time"

	"github.com/Hamza-Xoho/digital-surveyor/internal/domain"
)

type vehicleList struct {
	Vehicles    []domain.VehicleProfile `json:"vehicles"`
	RefreshedAt *time.Time              `json:"refreshed_at,omitempty"`
}

// handleListVehicles serves the profile catalogue, refreshing it from the backend when it
// is empty or when asked with ?refresh=true.
func (h *Handler) handleListVehicles(w http.ResponseWriter, r *http.Request) {
	if h.catalogue == nil {
		h.writeError(w, http.StatusServiceUnavailable, "catalogue_unavailable", "vehicle catalogue not configured", nil)
		return
	}

	profiles := h.catalogue.List()
	if len(profiles) == 0 || r.URL.Query().Get("refresh") == "true" {
		if err := h.catalogue.Refresh(r.Context()); err != nil {
			h.log.Warn().Err(err).Msg("vehicle catalogue refresh failed")
			if len(profiles) == 0 {
				h.writeError(w, http.StatusBadGateway, "upstream_failed", "failed to load vehicle profiles", map[string]any{"error": err.Error()})
				return
			}
		}
		profiles = h.catalogue.List()
	}

	resp := vehicleList{Vehicles: profiles}
	if at := h.catalogue.RefreshedAt(); !at.IsZero() {
		resp.RefreshedAt = &at
	}
	if resp.Vehicles == nil {
		resp.Vehicles = []domain.VehicleProfile{}
	}
	h.writeJSON(w, http.StatusOK, resp)
}
