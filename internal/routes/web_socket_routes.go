package routes

import (
	"github.com/gin-gonic/gin"

	"bike_train/internal/controllers"
)

func WebSocketRoutes(r *gin.Engine, sc *controllers.SocketController) {
	ws := r.Group("/ws")
	{
		ws.GET("/track", sc.HandleTrackWebSocket)
	}
}
