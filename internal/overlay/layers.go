package overlay

import (
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/Hamza-Xoho/digital-surveyor/internal/domain"
	"github.com/Hamza-Xoho/digital-surveyor/internal/envelope"
	"github.com/Hamza-Xoho/digital-surveyor/internal/mapsurface"
)

// Draw order. Context layers sit beneath data-driven ones, envelopes on top.
const (
	zRoads     = 10
	zBuildings = 20
	zRoadLines = 25
	zWidths    = 40
	zGradient  = 45
	zPinch     = 50
	zEnvelope  = 60
	zTurning   = 61
)

// BuildResultLayers returns the overlay layers for a result, context layers first.
// Absent or empty collections produce no layer.
func BuildResultLayers(r *domain.AssessmentResult) []mapsurface.Layer {
	if r == nil {
		return nil
	}
	ov := r.Overlays
	var out []mapsurface.Layer

	if l, ok := contextLayer(mapsurface.KindRoads, zRoads, RoadStyle, ov.Roads); ok {
		out = append(out, l)
	}
	if l, ok := contextLayer(mapsurface.KindBuildings, zBuildings, BuildingStyle, ov.Buildings); ok {
		out = append(out, l)
	}
	if l, ok := contextLayer(mapsurface.KindRoadLines, zRoadLines, RoadLineStyle, ov.RoadLines); ok {
		out = append(out, l)
	}
	if l, ok := widthLayer(ov.WidthMeasurements); ok {
		out = append(out, l)
	}
	if l, ok := gradientLayer(ov.GradientProfile); ok {
		out = append(out, l)
	}
	if pins := PinchPoints(ov.WidthMeasurements); len(pins.Features) > 0 {
		out = append(out, mapsurface.Layer{
			ID:     uuid.NewString(),
			Kind:   mapsurface.KindPinchPoints,
			ZIndex: zPinch,
			Style:  PinchStyle,
			Data:   pins,
		})
	}
	return out
}

// BuildEnvelopeLayers draws the body and turning circle in the vehicle's rating color.
func BuildEnvelopeLayers(env envelope.Envelope, rating domain.Rating) []mapsurface.Layer {
	c := RatingColor(rating)
	fc := env.Features()

	body := EnvelopeBodyStyle
	body.Color, body.FillColor = c.Hex(), c.Hex()
	turning := TurningCircleStyle
	turning.Color, turning.FillColor = c.Hex(), c.Hex()

	return []mapsurface.Layer{
		{
			ID:     uuid.NewString(),
			Kind:   mapsurface.KindEnvelopeBody,
			ZIndex: zEnvelope,
			Style:  body,
			Data:   geojson.NewFeatureCollection().Append(fc.Features[0]),
		},
		{
			ID:     uuid.NewString(),
			Kind:   mapsurface.KindTurningCircle,
			ZIndex: zTurning,
			Style:  turning,
			Data:   geojson.NewFeatureCollection().Append(fc.Features[1]),
		},
	}
}

func contextLayer(kind string, z int, style mapsurface.Style, src *geojson.FeatureCollection) (mapsurface.Layer, bool) {
	fc := withoutNulls(src)
	if fc == nil || len(fc.Features) == 0 {
		return mapsurface.Layer{}, false
	}
	return mapsurface.Layer{ID: uuid.NewString(), Kind: kind, ZIndex: z, Style: style, Data: fc}, true
}

func widthLayer(src *geojson.FeatureCollection) (mapsurface.Layer, bool) {
	if src == nil || len(src.Features) == 0 {
		return mapsurface.Layer{}, false
	}
	fc := geojson.NewFeatureCollection()
	for _, f := range src.Features {
		if f == nil {
			continue
		}
		styled := cloneFeature(f)
		if w, ok := styled.Properties[widthProperty].(float64); ok {
			styled.Properties[styleProperty] = colorStyle(WidthColor(w))
		}
		if label, ok := WidthLabel(styled); ok {
			styled.Properties[labelProperty] = label
		}
		fc.Append(styled)
	}
	if len(fc.Features) == 0 {
		return mapsurface.Layer{}, false
	}
	return mapsurface.Layer{ID: uuid.NewString(), Kind: mapsurface.KindWidths, ZIndex: zWidths, Style: WidthStyle, Data: fc}, true
}

func gradientLayer(f *geojson.Feature) (mapsurface.Layer, bool) {
	if f == nil || f.Geometry == nil {
		return mapsurface.Layer{}, false
	}
	styled := cloneFeature(f)
	if pct, ok := styled.Properties[gradientProperty].(float64); ok {
		styled.Properties[styleProperty] = colorStyle(GradientColor(pct))
	}
	fc := geojson.NewFeatureCollection().Append(styled)
	return mapsurface.Layer{ID: uuid.NewString(), Kind: mapsurface.KindGradient, ZIndex: zGradient, Style: GradientStyle, Data: fc}, true
}

// PinchPoints marks the narrowest tenth of the width measurements at each line's
// midpoint. Features without a numeric width_m are ignored.
func PinchPoints(src *geojson.FeatureCollection) *geojson.FeatureCollection {
	out := geojson.NewFeatureCollection()
	if src == nil {
		return out
	}

	type measured struct {
		f     *geojson.Feature
		width float64
	}
	var ms []measured
	for _, f := range src.Features {
		if f == nil {
			continue
		}
		if w, ok := f.Properties[widthProperty].(float64); ok {
			ms = append(ms, measured{f: f, width: w})
		}
	}
	if len(ms) == 0 {
		return out
	}

	widths := make([]float64, len(ms))
	for i, m := range ms {
		widths[i] = m.width
	}
	sort.Float64s(widths)
	threshold := widths[max(1, len(widths)/10)-1]

	for _, m := range ms {
		if m.width > threshold {
			continue
		}
		p, ok := midpoint(m.f.Geometry)
		if !ok {
			continue
		}
		marker := geojson.NewFeature(p)
		marker.Properties[widthProperty] = m.width
		marker.Properties["kind"] = pinchPointMarkers
		if label, ok := WidthLabel(marker); ok {
			marker.Properties[labelProperty] = label
		}
		out.Append(marker)
	}
	return out
}

// midpoint is the point halfway along a line, measured in coordinate space.
func midpoint(g orb.Geometry) (orb.Point, bool) {
	switch geom := g.(type) {
	case orb.Point:
		return geom, true
	case orb.LineString:
		return lineMidpoint(geom)
	case orb.MultiLineString:
		if len(geom) == 0 {
			return orb.Point{}, false
		}
		return lineMidpoint(geom[0])
	default:
		if g == nil {
			return orb.Point{}, false
		}
		return g.Bound().Center(), true
	}
}

func lineMidpoint(ls orb.LineString) (orb.Point, bool) {
	switch len(ls) {
	case 0:
		return orb.Point{}, false
	case 1:
		return ls[0], true
	}
	total := 0.0
	for i := 1; i < len(ls); i++ {
		total += segmentLength(ls[i-1], ls[i])
	}
	half := total / 2
	walked := 0.0
	for i := 1; i < len(ls); i++ {
		seg := segmentLength(ls[i-1], ls[i])
		if walked+seg >= half && seg > 0 {
			t := (half - walked) / seg
			a, b := ls[i-1], ls[i]
			return orb.Point{a[0] + (b[0]-a[0])*t, a[1] + (b[1]-a[1])*t}, true
		}
		walked += seg
	}
	return ls[len(ls)-1], true
}

func segmentLength(a, b orb.Point) float64 {
	dx, dy := b[0]-a[0], b[1]-a[1]
	return math.Hypot(dx, dy)
}

// withoutNulls drops null entries a backend collection may carry. src is returned as is
// when it has none.
func withoutNulls(src *geojson.FeatureCollection) *geojson.FeatureCollection {
	if src == nil {
		return nil
	}
	clean := true
	for _, f := range src.Features {
		if f == nil {
			clean = false
			break
		}
	}
	if clean {
		return src
	}
	out := geojson.NewFeatureCollection()
	out.BBox = src.BBox
	for _, f := range src.Features {
		if f != nil {
			out.Append(f)
		}
	}
	return out
}

// cloneFeature copies the property bag so styling never mutates the result document.
func cloneFeature(f *geojson.Feature) *geojson.Feature {
	c := geojson.NewFeature(f.Geometry)
	c.ID = f.ID
	for k, v := range f.Properties {
		c.Properties[k] = v
	}
	return c
}
