// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"

	"github.com/rapidaai/realtime-relay/config"
	"github.com/rapidaai/realtime-relay/pkg/commons"
	"github.com/rapidaai/realtime-relay/pkg/utils"
)

// Connector opens the outbound connection to the realtime transcription
// endpoint. A session dials at most once; the idempotency guard lives in the
// session state machine, not here.
type Connector interface {
	Dial(ctx context.Context) (*websocket.Conn, error)
}

type connector struct {
	cfg    *config.AppConfig
	logger commons.Logger
}

// NewConnector creates a connector bound to the configured realtime endpoint
// and server-held credential.
func NewConnector(cfg *config.AppConfig, logger commons.Logger) Connector {
	return &connector{cfg: cfg, logger: logger}
}

// Dial establishes the upstream websocket connection. The handshake is
// bounded by the configured timeout; the source this replaces could hang
// forever on a stalled upstream.
func (c *connector) Dial(ctx context.Context) (*websocket.Conn, error) {
	if utils.IsEmpty(c.cfg.OpenAIConfig.ApiKey) {
		return nil, fmt.Errorf("realtime api key is not configured")
	}

	wsURL, err := url.Parse(c.cfg.OpenAIConfig.RealtimeUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to parse realtime endpoint URL: %w", err)
	}

	query := wsURL.Query()
	query.Set("model", c.cfg.OpenAIConfig.Model)
	wsURL.RawQuery = query.Encode()

	// The credential stays on this side of the bridge; the client never
	// sees these headers.
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+c.cfg.OpenAIConfig.ApiKey)
	headers.Set("OpenAI-Beta", "realtime=v1")

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.RelayConfig.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, wsURL.String(), headers)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to realtime endpoint: %w", err)
	}

	conn.SetReadLimit(c.cfg.RelayConfig.ReadLimit)
	c.logger.Debugf("connected to realtime endpoint %s", wsURL.Host)
	return conn, nil
}
