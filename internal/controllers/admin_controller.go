package controllers

import (
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"bike_train/internal/config"
	"bike_train/internal/middleware"
	"bike_train/internal/models"
	"bike_train/internal/ride"
)

// AdminController is the minimal administrative surface: a password login
// issuing a short-lived token, and a force-end for rides whose leader
// vanished without sending ride:end.
type AdminController struct {
	coordinator *ride.Coordinator
}

func NewAdminController(coordinator *ride.Coordinator) *AdminController {
	return &AdminController{coordinator: coordinator}
}

// Login verifies the shared admin password against ADMIN_PASSWORD_HASH and
// issues a JWT, optionally scoped to a region.
func (ac *AdminController) Login(c *gin.Context) {
	var input struct {
		Password string `json:"password" binding:"required"`
		Region   string `json:"region"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	hash := os.Getenv("ADMIN_PASSWORD_HASH")
	if hash == "" {
		logrus.Error("AdminLogin: ADMIN_PASSWORD_HASH not configured")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Admin login not configured"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(input.Password)); err != nil {
		logrus.Warn("AdminLogin: incorrect password attempt")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Incorrect password"})
		return
	}

	var regionID *uint
	if input.Region != "" {
		var region models.Region
		if err := config.DB.Where("slug = ?", input.Region).First(&region).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid region"})
				return
			}
			logrus.WithError(err).Error("AdminLogin: region lookup failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
			return
		}
		regionID = &region.ID
	}

	token, err := middleware.GenerateToken("admin", regionID)
	if err != nil {
		logrus.WithError(err).Error("AdminLogin: token generation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "token": token, "region": input.Region})
}

// ForceEndRide completes a stuck live ride and notifies its room.
func (ac *AdminController) ForceEndRide(c *gin.Context) {
	code := ride.NormalizeCode(c.Param("accessCode"))

	rows, err := ac.coordinator.ForceEnd(c.Request.Context(), code)
	if err != nil {
		logrus.WithError(err).WithField("access_code", code).Error("ForceEndRide failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to end ride"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "access_code": code, "completed": rows})
}
