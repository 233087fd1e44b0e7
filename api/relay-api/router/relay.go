package relay_routers

import (
	"github.com/gin-gonic/gin"

	internal_session "github.com/rapidaai/realtime-relay/internal/session"
	internal_upstream "github.com/rapidaai/realtime-relay/internal/upstream"
	relay_api "github.com/rapidaai/realtime-relay/api/relay-api/relay"
	"github.com/rapidaai/realtime-relay/config"
	"github.com/rapidaai/realtime-relay/pkg/commons"
)

func RealtimeApiRoute(
	cfg *config.AppConfig, engine *gin.Engine, logger commons.Logger,
	connector internal_upstream.Connector,
	registry *internal_session.Registry,
) {
	apiv1 := engine.Group("v1/realtime")
	relayRpcApi := relay_api.NewRelayApi(cfg, logger, connector, registry)
	{
		// meeting minutes transcription bridge
		apiv1.GET("/meeting", relayRpcApi.MeetingRelay)
	}
}
