package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkb"

	"bike_train/internal/config"
	"bike_train/internal/geo"
	"bike_train/internal/models"
	"bike_train/internal/ride"
	"bike_train/internal/session"
)

var startTime = time.Now()

// RideResponse is the API shape of a ride instance joined with its route.
type RideResponse struct {
	ID            uint                 `json:"id"`
	AccessCode    string               `json:"access_code"`
	RouteName     string               `json:"route_name"`
	Description   string               `json:"route_description,omitempty"`
	Geometry      string               `json:"geometry,omitempty"`
	Date          time.Time            `json:"date"`
	Status        string               `json:"status"`
	StartedAt     *time.Time           `json:"started_at"`
	EndedAt       *time.Time           `json:"ended_at"`
	Current       *models.LocationFix  `json:"current_location"`
	Trail         []models.LocationFix `json:"location_trail"`
	TrailMiles    float64              `json:"trail_miles"`
	FollowerCount int                  `json:"follower_count"`
	RegionID      uint                 `json:"region_id"`
}

// RideController serves the read-only ride API consumed by the web app.
// Follower counts come from the live registry, everything else from the
// database.
type RideController struct {
	registry *session.Registry
}

func NewRideController(registry *session.Registry) *RideController {
	return &RideController{registry: registry}
}

// ListLive returns every currently-live ride, optionally filtered by
// region slug.
func (rc *RideController) ListLive(c *gin.Context) {
	query := config.DB.Preload("Route").Where("status = ?", models.StatusLive)

	if slug := c.Query("region"); slug != "" {
		var region models.Region
		if err := config.DB.Where("slug = ?", slug).First(&region).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid region", "message": "Region '" + slug + "' does not exist"})
				return
			}
			logrus.WithError(err).Error("ListLive: region lookup failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to browse rides"})
			return
		}
		query = query.Where("ride_instances.region_id = ?", region.ID)
	}

	var instances []models.RideInstance
	if err := query.Find(&instances).Error; err != nil {
		logrus.WithError(err).Error("ListLive: query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to browse rides"})
		return
	}

	rides := make([]RideResponse, 0, len(instances))
	for i := range instances {
		rides = append(rides, rc.toRideResponse(&instances[i], &instances[i].Route))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(rides), "data": rides})
}

// GetByCode returns today's scheduled or live ride for an access code,
// the lookup a follower performs before joining the room.
func (rc *RideController) GetByCode(c *gin.Context) {
	code := c.Param("accessCode")

	var route models.Route
	err := config.DB.Where("access_code = ?", ride.NormalizeCode(code)).First(&route).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No active ride found for this code today"})
		return
	}
	if err != nil {
		logrus.WithError(err).Error("GetByCode: route lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch ride"})
		return
	}

	var instance models.RideInstance
	err = config.DB.
		Where("route_id = ? AND date = CURRENT_DATE AND status IN ?", route.ID, []string{models.StatusScheduled, models.StatusLive}).
		First(&instance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No active ride found for this code today"})
		return
	}
	if err != nil {
		logrus.WithError(err).Error("GetByCode: instance lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch ride"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": rc.toRideResponse(&instance, &route)})
}

// Health reports process liveness for the platform health check.
func (rc *RideController) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(startTime).Seconds(),
	})
}

func (rc *RideController) toRideResponse(instance *models.RideInstance, route *models.Route) RideResponse {
	resp := RideResponse{
		ID:            instance.ID,
		AccessCode:    route.AccessCode,
		RouteName:     route.Name,
		Description:   route.Description,
		Date:          instance.Date,
		Status:        instance.Status,
		StartedAt:     instance.StartedAt,
		EndedAt:       instance.EndedAt,
		Trail:         []models.LocationFix{},
		FollowerCount: rc.registry.FollowerCount(route.AccessCode),
		RegionID:      instance.RegionID,
	}

	if jsonGeom, err := convertWKBToGeoJSON(route.Geometry); err == nil {
		resp.Geometry = jsonGeom
	} else {
		logrus.WithError(err).WithField("route_id", route.ID).Warn("Failed to convert route geometry to GeoJSON.")
	}

	if len(instance.CurrentLocation) > 0 {
		var fix models.LocationFix
		if err := json.Unmarshal(instance.CurrentLocation, &fix); err == nil {
			resp.Current = &fix
		}
	}
	if len(instance.LocationTrail) > 0 {
		if err := json.Unmarshal(instance.LocationTrail, &resp.Trail); err != nil {
			resp.Trail = []models.LocationFix{}
		}
	}
	resp.TrailMiles = geo.TrailDistanceMiles(resp.Trail)
	return resp
}

// convertWKBToGeoJSON converts WKB bytes into a GeoJSON string
func convertWKBToGeoJSON(wkbBytes []byte) (string, error) {
	if len(wkbBytes) == 0 {
		return "", nil
	}
	g, err := wkb.Unmarshal(wkbBytes)
	if err != nil {
		return "", err
	}
	b, err := geojson.Marshal(g)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
