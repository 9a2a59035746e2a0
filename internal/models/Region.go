package models

import (
	"gorm.io/gorm"
)

// Region groups routes by metro area. Rides inherit their region from the
// route so the live feed can be filtered per city.
type Region struct {
	gorm.Model

	Name     string `json:"name" binding:"required"`
	Slug     string `json:"slug" gorm:"uniqueIndex" binding:"required"`
	Timezone string `json:"timezone"`

	Routes []Route `gorm:"foreignKey:RegionID" json:"routes,omitempty"`
}
