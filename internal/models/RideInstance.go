package models

import (
	"time"

	"gorm.io/gorm"
)

// RideInstance statuses. One-way transitions except completed -> live,
// which is allowed only when the instance is dated today (restart).
const (
	StatusScheduled = "scheduled"
	StatusLive      = "live"
	StatusCompleted = "completed"
)

// RideInstance is one occurrence of a Route on a calendar date. At most one
// instance per route may be live at any time.
type RideInstance struct {
	gorm.Model

	RouteID uint  `json:"route_id" gorm:"index"`
	Route   Route `gorm:"foreignKey:RouteID" json:"-"`

	Date   time.Time `json:"date" gorm:"type:date;index"`
	Status string    `json:"status" gorm:"index;default:scheduled"`

	StartedAt *time.Time `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`

	// CurrentLocation holds the last broadcast fix as JSON, or null.
	// LocationTrail is the append-only JSON array of fixes for this run.
	// Both are cleared on every transition into live and into completed.
	CurrentLocation []byte `gorm:"type:jsonb" json:"current_location,omitempty"`
	LocationTrail   []byte `gorm:"type:jsonb" json:"location_trail,omitempty"`

	RegionID uint `json:"region_id" gorm:"index"`
}
