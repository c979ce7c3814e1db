package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/jussrz/SOSit/internal/config"
)

func NewRouter(logger *logrus.Logger, cfg config.Config, h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(CORSMiddleware())
	r.Use(RequestLoggingMiddleware(logger))

	// Alert flows keep the paths the mobile client already calls.
	functions := r.Group("/functions")
	{
		functions.POST("/send-parent-alerts", h.SendParentAlerts)
		functions.POST("/send-station-alerts", h.SendStationAlerts)
	}

	api := r.Group(cfg.API.BasePath)
	{
		api.GET("/notifications/user/:user_id", h.GetNotificationsByUserID)
	}

	r.GET("/ws/notifications/:user_id", h.Subscribe)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
