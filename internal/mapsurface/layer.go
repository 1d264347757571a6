package mapsurface

import "github.com/paulmach/orb/geojson"

// Style is a fixed path style. Per-feature colors, when data driven, live in the
// feature's "style" property and override Color.
type Style struct {
	Color       string  `json:"color,omitempty"`
	FillColor   string  `json:"fill_color,omitempty"`
	Weight      float64 `json:"weight"`
	Opacity     float64 `json:"opacity"`
	FillOpacity float64 `json:"fill_opacity"`
	DashArray   string  `json:"dash_array,omitempty"`
}

// Layer kinds understood by the browser surface.
const (
	KindTiles         = "tiles"
	KindRoads         = "roads"
	KindBuildings     = "buildings"
	KindRoadLines     = "road_lines"
	KindWidths        = "width_measurements"
	KindGradient      = "gradient_profile"
	KindPinchPoints   = "pinch_points"
	KindEnvelopeBody  = "envelope_body"
	KindTurningCircle = "turning_circle"
)

// Layer is one renderable unit. Higher ZIndex draws on top.
type Layer struct {
	ID     string                     `json:"id"`
	Kind   string                     `json:"kind"`
	ZIndex int                        `json:"z_index"`
	Style  Style                      `json:"style"`
	Data   *geojson.FeatureCollection `json:"data,omitempty"`
	Tiles  *TileSource                `json:"tiles,omitempty"`
}
