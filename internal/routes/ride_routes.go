package routes

import (
	"github.com/gin-gonic/gin"

	"bike_train/internal/controllers"
)

func RideRoutes(r *gin.Engine, rc *controllers.RideController) {
	api := r.Group("/api")
	{
		api.GET("/health", rc.Health)
		api.GET("/rides/live", rc.ListLive)
		api.GET("/rides/by-code/:accessCode", rc.GetByCode)
	}
}
