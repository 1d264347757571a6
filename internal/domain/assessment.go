package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Rating is the traffic-light classification used for checks, vehicles and whole results.
type Rating string

const (
	RatingGreen Rating = "GREEN"
	RatingAmber Rating = "AMBER"
	RatingRed   Rating = "RED"
)

func (r Rating) Valid() bool {
	switch r {
	case RatingGreen, RatingAmber, RatingRed:
		return true
	default:
		return false
	}
}

// Severity orders ratings so that a higher value is stricter.
func (r Rating) Severity() int {
	switch r {
	case RatingAmber:
		return 1
	case RatingRed:
		return 2
	default:
		return 0
	}
}

// Worst returns the strictest rating, or ok=false when none are given.
func Worst(ratings ...Rating) (Rating, bool) {
	if len(ratings) == 0 {
		return "", false
	}
	worst := ratings[0]
	for _, r := range ratings[1:] {
		if r.Severity() > worst.Severity() {
			worst = r
		}
	}
	return worst, true
}

// LatLon is a WGS84 coordinate in degrees.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Point returns the orb representation (lon, lat order).
func (c LatLon) Point() orb.Point {
	return orb.Point{c.Lon, c.Lat}
}

type Check struct {
	Name      string   `json:"name"`
	Rating    Rating   `json:"rating"`
	Detail    string   `json:"detail"`
	Value     *float64 `json:"value,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

type VehicleAssessment struct {
	VehicleName    string  `json:"vehicle_name"`
	VehicleClass   string  `json:"vehicle_class"`
	OverallRating  Rating  `json:"overall_rating"`
	Confidence     float64 `json:"confidence"`
	Checks         []Check `json:"checks"`
	Recommendation string  `json:"recommendation"`
}

type PinchPoint struct {
	Location []float64 `json:"location"`
	WidthM   float64   `json:"width_m"`
}

type WidthAnalysis struct {
	MinWidthM   float64      `json:"min_width_m"`
	MaxWidthM   float64      `json:"max_width_m"`
	MeanWidthM  float64      `json:"mean_width_m"`
	PinchPoints []PinchPoint `json:"pinch_points,omitempty"`
}

type SteepSegment struct {
	StartM      float64 `json:"start_m"`
	EndM        float64 `json:"end_m"`
	GradientPct float64 `json:"gradient_pct"`
}

type GradientAnalysis struct {
	MaxGradientPct  float64        `json:"max_gradient_pct"`
	MeanGradientPct float64        `json:"mean_gradient_pct"`
	SteepSegments   []SteepSegment `json:"steep_segments,omitempty"`
}

// DataSourceInfo describes which upstream source fed one stage of the assessment.
type DataSourceInfo struct {
	Source     string `json:"source"`
	Status     string `json:"status"`
	Note       string `json:"note,omitempty"`
	Resolution string `json:"resolution,omitempty"`
}

// Overlays is the geometry bundle carried by a result. Every collection is optional.
type Overlays struct {
	Roads             *geojson.FeatureCollection `json:"roads,omitempty"`
	Buildings         *geojson.FeatureCollection `json:"buildings,omitempty"`
	RoadLines         *geojson.FeatureCollection `json:"road_lines,omitempty"`
	WidthMeasurements *geojson.FeatureCollection `json:"width_measurements,omitempty"`
	GradientProfile   *geojson.Feature           `json:"gradient_profile,omitempty"`
}

// AssessmentResult is the document returned by the assessment backend.
// ID is only present when the result was persisted for an authenticated user.
type AssessmentResult struct {
	ID                 *string                   `json:"id,omitempty"`
	CreatedAt          *time.Time                `json:"created_at,omitempty"`
	Postcode           string                    `json:"postcode"`
	Latitude           float64                   `json:"latitude"`
	Longitude          float64                   `json:"longitude"`
	Easting            float64                   `json:"easting,omitempty"`
	Northing           float64                   `json:"northing,omitempty"`
	OverallRating      Rating                    `json:"overall_rating"`
	VehicleAssessments []VehicleAssessment       `json:"vehicle_assessments"`
	WidthAnalysis      *WidthAnalysis            `json:"width_analysis,omitempty"`
	GradientAnalysis   *GradientAnalysis         `json:"gradient_analysis,omitempty"`
	DataSources        map[string]DataSourceInfo `json:"data_sources,omitempty"`
	Overlays           Overlays                  `json:"geojson_overlays"`
}

func (r *AssessmentResult) Center() LatLon {
	return LatLon{Lat: r.Latitude, Lon: r.Longitude}
}

// Persisted reports whether the result carries a backend id (notes can be attached).
func (r *AssessmentResult) Persisted() bool {
	return r != nil && r.ID != nil && *r.ID != ""
}

func (r *AssessmentResult) Vehicle(class string) (VehicleAssessment, bool) {
	if r == nil {
		return VehicleAssessment{}, false
	}
	for _, va := range r.VehicleAssessments {
		if va.VehicleClass == class {
			return va, true
		}
	}
	return VehicleAssessment{}, false
}

// WorstVehicleRating returns the strictest vehicle rating in the result.
func (r *AssessmentResult) WorstVehicleRating() (Rating, bool) {
	ratings := make([]Rating, 0, len(r.VehicleAssessments))
	for _, va := range r.VehicleAssessments {
		ratings = append(ratings, va.OverallRating)
	}
	return Worst(ratings...)
}

// DisplayRating is the overall rating the view may show. The overall rating is never
// stricter than the worst vehicle rating, so a stricter claim is clamped down.
func (r *AssessmentResult) DisplayRating() Rating {
	worst, ok := r.WorstVehicleRating()
	if !ok {
		return r.OverallRating
	}
	if r.OverallRating.Severity() > worst.Severity() {
		return worst
	}
	return r.OverallRating
}

var ErrInvalidResult = errors.New("invalid assessment result")

// Validate checks the structural invariants the view relies on.
func (r *AssessmentResult) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: empty document", ErrInvalidResult)
	}
	if !r.OverallRating.Valid() {
		return fmt.Errorf("%w: overall rating %q", ErrInvalidResult, r.OverallRating)
	}
	seen := make(map[string]struct{}, len(r.VehicleAssessments))
	for _, va := range r.VehicleAssessments {
		if _, dup := seen[va.VehicleClass]; dup {
			return fmt.Errorf("%w: duplicate vehicle class %q", ErrInvalidResult, va.VehicleClass)
		}
		seen[va.VehicleClass] = struct{}{}
		if !va.OverallRating.Valid() {
			return fmt.Errorf("%w: vehicle %q rating %q", ErrInvalidResult, va.VehicleClass, va.OverallRating)
		}
		if va.Confidence < 0 || va.Confidence > 1 {
			return fmt.Errorf("%w: vehicle %q confidence %v outside [0,1]", ErrInvalidResult, va.VehicleClass, va.Confidence)
		}
	}
	return nil
}
