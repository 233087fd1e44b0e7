package health_check_api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	internal_session "github.com/rapidaai/realtime-relay/internal/session"
	"github.com/rapidaai/realtime-relay/config"
	"github.com/rapidaai/realtime-relay/pkg/commons"
)

// HealthCheckApi exposes liveness and readiness probes.
type HealthCheckApi interface {
	Healthz(c *gin.Context)
	Readiness(c *gin.Context)
}

type healthCheckApi struct {
	cfg      *config.AppConfig
	logger   commons.Logger
	registry *internal_session.Registry
}

// New creates the health check handlers.
func New(cfg *config.AppConfig, logger commons.Logger, registry *internal_session.Registry) HealthCheckApi {
	return &healthCheckApi{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
	}
}

// Healthz reports process liveness.
func (api *healthCheckApi) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": api.cfg.Name,
		"version": api.cfg.Version,
	})
}

// Readiness reports whether the service accepts new sessions, along with
// the live session count.
func (api *healthCheckApi) Readiness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "ready",
		"active_sessions": api.registry.Count(),
	})
}
