package domain

// VehicleProfile is a read-only vehicle definition from the profile catalogue.
// Built-in profiles carry no ID; user-defined ones do.
type VehicleProfile struct {
	ID             *string `json:"id,omitempty"`
	Name           string  `json:"name"`
	VehicleClass   string  `json:"vehicle_class"`
	WidthM         float64 `json:"width_m"`
	LengthM        float64 `json:"length_m"`
	HeightM        float64 `json:"height_m"`
	WeightKg       int     `json:"weight_kg"`
	TurningRadiusM float64 `json:"turning_radius_m"`
	MirrorWidthM   float64 `json:"mirror_width_m"`
}

// Custom reports whether the profile is user-defined.
func (p VehicleProfile) Custom() bool {
	return p.ID != nil && *p.ID != ""
}
