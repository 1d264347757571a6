package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

const sampleDocument = `{
  "postcode": "BN1 1AB",
  "latitude": 50.8225,
  "longitude": -0.1372,
  "easting": 531000,
  "northing": 104000,
  "overall_rating": "AMBER",
  "vehicle_assessments": [
    {"vehicle_name": "Luton van", "vehicle_class": "luton_3_5t", "overall_rating": "GREEN", "confidence": 1,
     "checks": [{"name": "Road Width", "rating": "GREEN", "detail": "4.1m available", "value": 4.1, "threshold": 2.6}],
     "recommendation": "Suitable"},
    {"vehicle_name": "7.5t box", "vehicle_class": "box_7_5t", "overall_rating": "AMBER", "confidence": 0.75,
     "checks": [{"name": "Gradient", "rating": "AMBER", "detail": "LiDAR data unavailable"}],
     "recommendation": "Check on site"}
  ],
  "width_analysis": {"min_width_m": 3.2, "max_width_m": 5.1, "mean_width_m": 4.1, "pinch_points": [{"location": [531000, 104000], "width_m": 3.2}]},
  "data_sources": {"geocoding": {"source": "postcodes.io", "status": "ok"}},
  "geojson_overlays": {
    "width_measurements": {"type": "FeatureCollection", "features": [
      {"type": "Feature", "geometry": {"type": "LineString", "coordinates": [[-0.1372, 50.8225], [-0.1371, 50.8225]]}, "properties": {"width_m": 3.2}}
    ]},
    "gradient_profile": {"type": "Feature", "geometry": {"type": "LineString", "coordinates": [[-0.1372, 50.8225], [-0.1372, 50.8234]]}, "properties": {"max_gradient_pct": 6.1}}
  }
}`

func TestAssessmentResult_DecodesBackendDocument(t *testing.T) {
	var r AssessmentResult
	if err := json.Unmarshal([]byte(sampleDocument), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("expected valid document, got %v", err)
	}
	if r.Persisted() {
		t.Fatalf("expected anonymous result without id")
	}
	if len(r.VehicleAssessments) != 2 {
		t.Fatalf("expected 2 vehicle assessments, got %d", len(r.VehicleAssessments))
	}
	if r.Overlays.WidthMeasurements == nil || len(r.Overlays.WidthMeasurements.Features) != 1 {
		t.Fatalf("expected one width measurement feature, got %#v", r.Overlays.WidthMeasurements)
	}
	if r.Overlays.GradientProfile == nil {
		t.Fatalf("expected gradient profile feature")
	}
	if got := r.Overlays.GradientProfile.Properties.MustFloat64("max_gradient_pct", 0); got != 6.1 {
		t.Fatalf("expected max_gradient_pct 6.1, got %v", got)
	}
	if r.Overlays.Roads != nil {
		t.Fatalf("expected absent roads collection to stay nil")
	}
	va, ok := r.Vehicle("box_7_5t")
	if !ok || va.Checks[0].Value != nil {
		t.Fatalf("expected box_7_5t with a value-less check, got %#v ok=%v", va, ok)
	}
}

func TestAssessmentResult_DisplayRatingNeverStricterThanWorstVehicle(t *testing.T) {
	r := AssessmentResult{
		OverallRating: RatingRed,
		VehicleAssessments: []VehicleAssessment{
			{VehicleClass: "a", OverallRating: RatingGreen},
			{VehicleClass: "b", OverallRating: RatingAmber},
		},
	}
	if got := r.DisplayRating(); got != RatingAmber {
		t.Fatalf("expected AMBER, got %s", got)
	}

	r.OverallRating = RatingGreen
	if got := r.DisplayRating(); got != RatingGreen {
		t.Fatalf("expected GREEN to be kept, got %s", got)
	}

	r.VehicleAssessments = nil
	r.OverallRating = RatingRed
	if got := r.DisplayRating(); got != RatingRed {
		t.Fatalf("expected RED with no vehicles, got %s", got)
	}
}

func TestAssessmentResult_ValidateRejectsDuplicateClasses(t *testing.T) {
	r := AssessmentResult{
		OverallRating: RatingGreen,
		VehicleAssessments: []VehicleAssessment{
			{VehicleClass: "luton_3_5t", OverallRating: RatingGreen},
			{VehicleClass: "luton_3_5t", OverallRating: RatingGreen},
		},
	}
	if err := r.Validate(); !errors.Is(err, ErrInvalidResult) {
		t.Fatalf("expected ErrInvalidResult, got %v", err)
	}
}

func TestAssessmentResult_ValidateRejectsConfidenceOutOfRange(t *testing.T) {
	r := AssessmentResult{
		OverallRating:      RatingGreen,
		VehicleAssessments: []VehicleAssessment{{VehicleClass: "x", OverallRating: RatingGreen, Confidence: 1.5}},
	}
	if err := r.Validate(); !errors.Is(err, ErrInvalidResult) {
		t.Fatalf("expected ErrInvalidResult, got %v", err)
	}
}

func TestWorst(t *testing.T) {
	if _, ok := Worst(); ok {
		t.Fatalf("expected ok=false for no ratings")
	}
	got, _ := Worst(RatingGreen, RatingRed, RatingAmber)
	if got != RatingRed {
		t.Fatalf("expected RED, got %s", got)
	}
}

func TestVehicleProfile_MirrorWidthDefaultsToZero(t *testing.T) {
	var p VehicleProfile
	if err := json.Unmarshal([]byte(`{"name":"Luton","vehicle_class":"luton_3_5t","width_m":2.1,"length_m":6.5,"height_m":3.2,"weight_kg":3500,"turning_radius_m":6.8}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.MirrorWidthM != 0 {
		t.Fatalf("expected mirror width 0, got %v", p.MirrorWidthM)
	}
	if p.Custom() {
		t.Fatalf("expected built-in profile")
	}
}
