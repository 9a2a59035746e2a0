package routes

import (
	"github.com/gin-gonic/gin"

	"bike_train/internal/controllers"
	"bike_train/internal/middleware"
)

func AdminRoutes(r *gin.Engine, ac *controllers.AdminController) {
	admin := r.Group("/admin")
	{
		admin.POST("/login", ac.Login)

		guarded := admin.Group("")
		guarded.Use(middleware.RequireAuthWithRole("admin"))
		{
			guarded.POST("/rides/:accessCode/end", ac.ForceEndRide)
		}
	}
}
