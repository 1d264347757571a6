// Package envelope turns a vehicle's metric dimensions into map-space geometry.
package envelope

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/Hamza-Xoho/digital-surveyor/internal/domain"
)

const (
	// MetresPerDegreeLat is the mean length of one degree of latitude.
	MetresPerDegreeLat = 111320.0
	// MetresPerDegreeLonUK is a fixed longitude scale for the UK latitude band.
	MetresPerDegreeLonUK = 69000.0
)

// LonScale returns metres per degree of longitude at the given latitude.
type LonScale func(lat float64) float64

// FixedLonScale ignores latitude and uses MetresPerDegreeLonUK.
func FixedLonScale(float64) float64 { return MetresPerDegreeLonUK }

// GeodesicLonScale corrects the longitude scale for latitude.
func GeodesicLonScale(lat float64) float64 {
	return MetresPerDegreeLat * math.Cos(lat*math.Pi/180)
}

// Circle is a turning circle. RadiusM is in metres; the map surface projects it.
type Circle struct {
	Center  orb.Point `json:"center"`
	RadiusM float64   `json:"radius_m"`
}

// Envelope is the projected footprint of one vehicle at one location.
type Envelope struct {
	VehicleClass string    `json:"vehicle_class"`
	Body         orb.Bound `json:"body"`
	Turning      Circle    `json:"turning"`
}

// Centroid is the centre of the body rectangle.
func (e Envelope) Centroid() orb.Point {
	return e.Body.Center()
}

// HalfExtents returns the half-width (lon degrees) and half-length (lat degrees).
func (e Envelope) HalfExtents() (halfWidthDeg, halfLengthDeg float64) {
	return (e.Body.Max[0] - e.Body.Min[0]) / 2, (e.Body.Max[1] - e.Body.Min[1]) / 2
}

// Features renders the body polygon and the turning-circle centre.
func (e Envelope) Features() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	body := geojson.NewFeature(e.Body.ToPolygon())
	body.Properties["kind"] = "envelope_body"
	body.Properties["vehicle_class"] = e.VehicleClass
	fc.Append(body)

	turning := geojson.NewFeature(e.Turning.Center)
	turning.Properties["kind"] = "turning_circle"
	turning.Properties["vehicle_class"] = e.VehicleClass
	turning.Properties["radius_m"] = e.Turning.RadiusM
	fc.Append(turning)

	return fc
}

// Projector converts profiles into envelopes. The zero value uses FixedLonScale.
type Projector struct {
	LonScale LonScale
}

// NewProjector picks the longitude scale; geodesic=false keeps the fixed UK figure.
func NewProjector(geodesic bool) Projector {
	if geodesic {
		return Projector{LonScale: GeodesicLonScale}
	}
	return Projector{LonScale: FixedLonScale}
}

func (p Projector) Project(profile domain.VehicleProfile, center domain.LatLon) Envelope {
	scale := p.LonScale
	if scale == nil {
		scale = FixedLonScale
	}
	halfW := (profile.WidthM / 2) / scale(center.Lat)
	halfL := (profile.LengthM / 2) / MetresPerDegreeLat

	return Envelope{
		VehicleClass: profile.VehicleClass,
		Body: orb.Bound{
			Min: orb.Point{center.Lon - halfW, center.Lat - halfL},
			Max: orb.Point{center.Lon + halfW, center.Lat + halfL},
		},
		Turning: Circle{
			Center:  center.Point(),
			RadiusM: profile.TurningRadiusM,
		},
	}
}

// Profiles resolves a vehicle class key to a profile.
type Profiles interface {
	Lookup(class string) (domain.VehicleProfile, bool)
}

// Resolve projects the profile for class, or reports false when it is unknown.
// Callers draw nothing in that case.
func (p Projector) Resolve(profiles Profiles, class string, center domain.LatLon) (Envelope, bool) {
	if profiles == nil || class == "" {
		return Envelope{}, false
	}
	profile, ok := profiles.Lookup(class)
	if !ok {
		return Envelope{}, false
	}
	return p.Project(profile, center), true
}

// Project uses the fixed UK longitude scale.
func Project(profile domain.VehicleProfile, center domain.LatLon) Envelope {
	return Projector{}.Project(profile, center)
}
