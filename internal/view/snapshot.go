package view

import (
	"sort"
	"strconv"
	"time"

	"github.com/Hamza-Xoho/digital-surveyor/internal/assessclient"
	"github.com/Hamza-Xoho/digital-surveyor/internal/domain"
	"github.com/Hamza-Xoho/digital-surveyor/internal/mapsurface"
)

// Snapshot is a read-only copy of the view.
type Snapshot struct {
	State           State                    `json:"state"`
	Postcode        string                   `json:"postcode,omitempty"`
	Outcome         assessclient.Kind        `json:"outcome,omitempty"`
	Result          *domain.AssessmentResult `json:"result,omitempty"`
	DisplayRating   domain.Rating            `json:"display_rating,omitempty"`
	Error           string                   `json:"error,omitempty"`
	SelectedVehicle string                   `json:"selected_vehicle,omitempty"`
	CanEditNotes    bool                     `json:"can_edit_notes"`
	Notes           string                   `json:"notes,omitempty"`
	Inspector       *Inspector               `json:"inspector,omitempty"`
	DataSources     []DataSource             `json:"data_sources,omitempty"`
	Recent          []RecentEntry            `json:"recent"`
	Camera          *mapsurface.Camera       `json:"camera,omitempty"`
}

// Inspector describes the selected vehicle.
type Inspector struct {
	Title    string           `json:"title"`
	Rating   domain.Rating    `json:"rating"`
	Identity []InspectorField `json:"identity"`
	Status   []InspectorField `json:"status"`
	Checks   []domain.Check   `json:"checks"`
}

type InspectorField struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type DataSource struct {
	Stage string `json:"stage"`
	domain.DataSourceInfo
}

// RecentEntry is one successful assessment in this session.
type RecentEntry struct {
	Postcode string            `json:"postcode"`
	Rating   domain.Rating     `json:"rating"`
	Outcome  assessclient.Kind `json:"outcome"`
	At       time.Time         `json:"at"`
}

func buildInspector(r *domain.AssessmentResult, class string, profile *domain.VehicleProfile) *Inspector {
	va, ok := r.Vehicle(class)
	if !ok {
		return nil
	}
	insp := &Inspector{
		Title:  va.VehicleName,
		Rating: va.OverallRating,
		Identity: []InspectorField{
			{Label: "Class", Value: va.VehicleClass},
		},
		Status: []InspectorField{
			{Label: "Rating", Value: string(va.OverallRating)},
			{Label: "Confidence", Value: strconv.Itoa(int(va.Confidence*100+0.5)) + "%"},
		},
		Checks: append([]domain.Check(nil), va.Checks...),
	}
	if va.Recommendation != "" {
		insp.Status = append(insp.Status, InspectorField{Label: "Recommendation", Value: va.Recommendation})
	}
	if profile != nil {
		insp.Identity = append(insp.Identity,
			InspectorField{Label: "Width", Value: metres(profile.WidthM)},
			InspectorField{Label: "Length", Value: metres(profile.LengthM)},
			InspectorField{Label: "Height", Value: metres(profile.HeightM)},
			InspectorField{Label: "Weight", Value: strconv.Itoa(profile.WeightKg) + " kg"},
			InspectorField{Label: "Turning radius", Value: metres(profile.TurningRadiusM)},
		)
		if profile.MirrorWidthM > 0 {
			insp.Identity = append(insp.Identity, InspectorField{Label: "Mirror width", Value: metres(profile.MirrorWidthM)})
		}
	}
	return insp
}

func metres(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + " m"
}

func dataSources(r *domain.AssessmentResult) []DataSource {
	if r == nil || len(r.DataSources) == 0 {
		return nil
	}
	out := make([]DataSource, 0, len(r.DataSources))
	for stage, info := range r.DataSources {
		out = append(out, DataSource{Stage: stage, DataSourceInfo: info})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stage < out[j].Stage })
	return out
}
