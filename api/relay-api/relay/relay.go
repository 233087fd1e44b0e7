// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package relay_api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	internal_session "github.com/rapidaai/realtime-relay/internal/session"
	internal_upstream "github.com/rapidaai/realtime-relay/internal/upstream"
	"github.com/rapidaai/realtime-relay/config"
	"github.com/rapidaai/realtime-relay/pkg/commons"
)

// RelayApi exposes the realtime meeting relay endpoint.
type RelayApi interface {
	MeetingRelay(c *gin.Context)
}

type relayApi struct {
	cfg       *config.AppConfig
	logger    commons.Logger
	connector internal_upstream.Connector
	registry  *internal_session.Registry
	upgrader  websocket.Upgrader
}

// NewRelayApi creates the relay endpoint handler.
func NewRelayApi(
	cfg *config.AppConfig,
	logger commons.Logger,
	connector internal_upstream.Connector,
	registry *internal_session.Registry,
) RelayApi {
	return &relayApi{
		cfg:       cfg,
		logger:    logger,
		connector: connector,
		registry:  registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser clients connect from the web app origin; access
			// control is handled by the opaque endpoint URL and the
			// server-held upstream credential.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// MeetingRelay upgrades the request and runs a relay session until the
// client disconnects.
func (api *relayApi) MeetingRelay(c *gin.Context) {
	if !websocket.IsWebSocketUpgrade(c.Request) {
		c.String(http.StatusUpgradeRequired, "Expected WebSocket")
		return
	}

	conn, err := api.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the handshake error response.
		api.logger.Errorf("websocket upgrade failed: %v", err)
		return
	}
	conn.SetReadLimit(api.cfg.RelayConfig.ReadLimit)

	session := internal_session.New(api.cfg, api.logger, api.connector, conn)
	api.registry.Add(session)
	defer api.registry.Remove(session.ID())

	session.Run(c.Request.Context())
}
