package routes

import (
	ginlogger "github.com/gin-contrib/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bike_train/internal/controllers"
)

func SetupRouter(sc *controllers.SocketController, rc *controllers.RideController, ac *controllers.AdminController) *gin.Engine {
	r := gin.New()
	r.Use(ginlogger.SetLogger(), gin.Recovery())

	RideRoutes(r, rc)
	AdminRoutes(r, ac)
	WebSocketRoutes(r, sc)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
