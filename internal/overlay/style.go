// Package overlay maps assessment geometry onto styled map layers. Every function here
// is pure.
package overlay

import (
	"strconv"

	"github.com/paulmach/orb/geojson"

	"github.com/Hamza-Xoho/digital-surveyor/internal/domain"
	"github.com/Hamza-Xoho/digital-surveyor/internal/mapsurface"
)

type Color string

const (
	Green Color = "green"
	Amber Color = "amber"
	Red   Color = "red"
)

func (c Color) Hex() string {
	switch c {
	case Green:
		return "#22c55e"
	case Amber:
		return "#f59e0b"
	default:
		return "#ef4444"
	}
}

const (
	widthGreenMin     = 4.0
	widthAmberMin     = 3.0
	gradientGreenMax  = 5.0
	gradientAmberMax  = 8.0
	widthProperty     = "width_m"
	gradientProperty  = "max_gradient_pct"
	styleProperty     = "style"
	labelProperty     = "label"
	pinchPointMarkers = "pinch"
)

// WidthColor bands are inclusive at their lower bound.
func WidthColor(widthM float64) Color {
	switch {
	case widthM >= widthGreenMin:
		return Green
	case widthM >= widthAmberMin:
		return Amber
	default:
		return Red
	}
}

func GradientColor(pct float64) Color {
	switch {
	case pct <= gradientGreenMax:
		return Green
	case pct <= gradientAmberMax:
		return Amber
	default:
		return Red
	}
}

func RatingColor(r domain.Rating) Color {
	switch r {
	case domain.RatingGreen:
		return Green
	case domain.RatingAmber:
		return Amber
	default:
		return Red
	}
}

// Fixed per-kind styles. Only color is data driven.
var (
	RoadStyle = mapsurface.Style{
		Color: "#64748b", FillColor: "#94a3b8", Weight: 1, Opacity: 0.6, FillOpacity: 0.25,
	}
	BuildingStyle = mapsurface.Style{
		Color: "#475569", FillColor: "#cbd5e1", Weight: 1, Opacity: 0.7, FillOpacity: 0.4,
	}
	RoadLineStyle = mapsurface.Style{
		Color: "#334155", Weight: 2, Opacity: 0.5, DashArray: "4 4",
	}
	WidthStyle = mapsurface.Style{
		Weight: 3, Opacity: 0.9,
	}
	GradientStyle = mapsurface.Style{
		Weight: 5, Opacity: 0.8,
	}
	PinchStyle = mapsurface.Style{
		Color: Red.Hex(), FillColor: Red.Hex(), Weight: 2, Opacity: 1, FillOpacity: 0.8,
	}
	EnvelopeBodyStyle = mapsurface.Style{
		Weight: 2, Opacity: 0.9, FillOpacity: 0.3,
	}
	TurningCircleStyle = mapsurface.Style{
		Weight: 2, Opacity: 0.7, FillOpacity: 0.08, DashArray: "6 6",
	}
)

// WidthLabel renders the permanent label for a width-measurement feature, keeping the
// precision the document carried.
func WidthLabel(f *geojson.Feature) (string, bool) {
	if f == nil {
		return "", false
	}
	v, ok := f.Properties[widthProperty].(float64)
	if !ok {
		return "", false
	}
	return strconv.FormatFloat(v, 'f', -1, 64) + "m", true
}

func colorStyle(c Color) map[string]any {
	return map[string]any{"color": c.Hex(), "fill_color": c.Hex()}
}
