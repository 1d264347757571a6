package app

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/gosuri/uitable"

	"github.com/Hamza-Xoho/digital-surveyor/internal/assessclient"
	"github.com/Hamza-Xoho/digital-surveyor/internal/domain"
	"github.com/Hamza-Xoho/digital-surveyor/internal/overlay"
)

func renderAssessment(w io.Writer, out assessclient.Outcome) {
	r := out.Result

	summary := uitable.New()
	summary.MaxColWidth = 60
	summary.AddRow("Postcode:", r.Postcode)
	summary.AddRow("Rating:", r.DisplayRating())
	summary.AddRow("Location:", fmt.Sprintf("%.5f, %.5f", r.Latitude, r.Longitude))
	summary.AddRow("Source:", out.Kind)
	if r.Persisted() {
		summary.AddRow("Assessment ID:", *r.ID)
	}
	if r.WidthAnalysis != nil {
		summary.AddRow("Width:", fmt.Sprintf("min %sm, mean %sm", decimal(r.WidthAnalysis.MinWidthM), decimal(r.WidthAnalysis.MeanWidthM)))
	}
	if r.GradientAnalysis != nil {
		summary.AddRow("Gradient:", fmt.Sprintf("max %s%%", decimal(r.GradientAnalysis.MaxGradientPct)))
	}
	if n := len(overlay.PinchPoints(r.Overlays.WidthMeasurements).Features); n > 0 {
		summary.AddRow("Pinch points:", n)
	}
	fmt.Fprintln(w, summary)
	fmt.Fprintln(w)

	vehicles := uitable.New()
	vehicles.MaxColWidth = 50
	vehicles.Wrap = true
	vehicles.AddRow("CLASS", "VEHICLE", "RATING", "CONFIDENCE", "RECOMMENDATION")
	for _, va := range r.VehicleAssessments {
		vehicles.AddRow(va.VehicleClass, va.VehicleName, va.OverallRating, percent(va.Confidence), va.Recommendation)
	}
	fmt.Fprintln(w, vehicles)

	if len(r.DataSources) > 0 {
		stages := make([]string, 0, len(r.DataSources))
		for stage := range r.DataSources {
			stages = append(stages, stage)
		}
		sort.Strings(stages)

		sources := uitable.New()
		sources.AddRow("STAGE", "SOURCE", "STATUS", "NOTE")
		for _, stage := range stages {
			ds := r.DataSources[stage]
			sources.AddRow(stage, ds.Source, ds.Status, ds.Note)
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, sources)
	}
}

func renderChecks(w io.Writer, va domain.VehicleAssessment) {
	t := uitable.New()
	t.MaxColWidth = 70
	t.Wrap = true
	t.AddRow("CHECK", "RATING", "VALUE", "THRESHOLD", "DETAIL")
	for _, c := range va.Checks {
		t.AddRow(c.Name, c.Rating, optional(c.Value), optional(c.Threshold), c.Detail)
	}
	fmt.Fprintln(w, t)
}

func renderProfiles(w io.Writer, profiles []domain.VehicleProfile) {
	t := uitable.New()
	t.AddRow("CLASS", "NAME", "WIDTH", "LENGTH", "HEIGHT", "TURNING RADIUS", "CUSTOM")
	for _, p := range profiles {
		t.AddRow(p.VehicleClass, p.Name, decimal(p.WidthM)+"m", decimal(p.LengthM)+"m", decimal(p.HeightM)+"m", decimal(p.TurningRadiusM)+"m", p.Custom())
	}
	fmt.Fprintln(w, t)
}

func decimal(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func percent(v float64) string {
	return strconv.Itoa(int(v*100+0.5)) + "%"
}

func optional(v *float64) string {
	if v == nil {
		return "-"
	}
	return decimal(*v)
}
