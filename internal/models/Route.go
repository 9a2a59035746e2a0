package models

import (
	"gorm.io/gorm"
)

// Route represents a recurring group ride path identified by a short
// public access code. The live-session engine only reads routes; creation
// and approval happen elsewhere.
type Route struct {
	gorm.Model

	// AccessCode is a 4-letter, case-insensitive token. Stored upper-case,
	// immutable once assigned.
	AccessCode  string `json:"access_code" gorm:"uniqueIndex;size:4"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	RegionID    uint   `json:"region_id" gorm:"index"`

	// Geometry stored in PostGIS as a LINESTRING (SRID 4326), WKB encoded.
	// API responses carry it as GeoJSON.
	Geometry []byte `gorm:"type:bytea" json:"-"`

	Instances []RideInstance `gorm:"foreignKey:RouteID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"instances,omitempty"`
}
