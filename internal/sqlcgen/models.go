package sqlcgen

import "time"

type AssessmentSnapshot struct {
	ID            string
	Postcode      string
	OverallRating string
	Outcome       string
	AssessmentID  *string
	Latitude      float64
	Longitude     float64
	VehicleCount  int32
	Notes         *string
	Document      []byte
	CreatedAt     time.Time
}
