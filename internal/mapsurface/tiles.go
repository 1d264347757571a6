package mapsurface

import "strings"

// TileSource is a raster tile endpoint plus the attribution it requires.
type TileSource struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Attribution string `json:"attribution"`
	MaxZoom     int    `json:"max_zoom"`
}

const (
	osMapsURL  = "https://api.os.uk/maps/raster/v1/zxy/Road_3857/{z}/{x}/{y}.png?key="
	osmURL     = "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"
	osMapsAttr = "Contains OS data &copy; Crown copyright and database rights"
	osmAttr    = "&copy; OpenStreetMap contributors"
)

// SelectTileSource picks the Ordnance Survey Maps API when a key is configured and
// OpenStreetMap otherwise.
func SelectTileSource(apiKey string) TileSource {
	key := strings.TrimSpace(apiKey)
	if key == "" {
		return TileSource{Name: "openstreetmap", URL: osmURL, Attribution: osmAttr, MaxZoom: 19}
	}
	return TileSource{Name: "os_maps", URL: osMapsURL + key, Attribution: osMapsAttr, MaxZoom: 20}
}
