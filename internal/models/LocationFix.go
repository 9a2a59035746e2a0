package models

// LocationFix is a single GPS reading from a ride leader. Transient: it is
// only persisted folded into a RideInstance's current_location and trail.
type LocationFix struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Accuracy  float64 `json:"accuracy,omitempty"`
	Timestamp int64   `json:"timestamp"` // epoch millis
}

// Valid reports whether the fix carries plausible coordinates.
func (f LocationFix) Valid() bool {
	return f.Lat >= -90 && f.Lat <= 90 && f.Lng >= -180 && f.Lng <= 180
}
