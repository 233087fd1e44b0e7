package relay_routers

import (
	"github.com/gin-gonic/gin"

	healthCheckApi "github.com/rapidaai/realtime-relay/api/health-check-api"
	internal_session "github.com/rapidaai/realtime-relay/internal/session"
	"github.com/rapidaai/realtime-relay/config"
	"github.com/rapidaai/realtime-relay/pkg/commons"
)

func HealthCheckRoutes(cfg *config.AppConfig, engine *gin.Engine, logger commons.Logger, registry *internal_session.Registry) {
	logger.Info("Internal HealthCheckRoutes added to engine.")
	apiv1 := engine.Group("")
	hcApi := healthCheckApi.New(cfg, logger, registry)
	{
		apiv1.GET("/readiness/", hcApi.Readiness)
		apiv1.GET("/healthz/", hcApi.Healthz)
	}
}
