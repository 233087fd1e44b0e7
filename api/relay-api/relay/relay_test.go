package relay_api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internal_session "github.com/rapidaai/realtime-relay/internal/session"
	internal_upstream "github.com/rapidaai/realtime-relay/internal/upstream"
	"github.com/rapidaai/realtime-relay/config"
	"github.com/rapidaai/realtime-relay/pkg/commons"
)

func newTestEngine(t *testing.T) (*gin.Engine, *internal_session.Registry) {
	t.Helper()

	logger, err := commons.NewApplicationLogger()
	require.NoError(t, err)

	cfg := &config.AppConfig{
		Name:     "realtime-relay",
		Version:  "test",
		Host:     "127.0.0.1",
		Port:     0,
		LogLevel: "debug",
		OpenAIConfig: config.OpenAIConfig{
			ApiKey:      "sk-test",
			RealtimeUrl: "ws://127.0.0.1:1",
			Model:       "gpt-4o-realtime-preview-2024-12-17",
		},
		RelayConfig: config.RelayConfig{
			BackpressureThreshold: 2_000_000,
			HandshakeTimeout:      time.Second,
			ReadLimit:             10 * 1024 * 1024,
		},
	}

	gin.SetMode(gin.TestMode)
	engine := gin.New()

	registry := internal_session.NewRegistry(logger)
	connector := internal_upstream.NewConnector(cfg, logger)
	relayApi := NewRelayApi(cfg, logger, connector, registry)
	engine.GET("/v1/realtime/meeting", relayApi.MeetingRelay)

	return engine, registry
}

func TestMeetingRelay_RejectsNonUpgradeRequest(t *testing.T) {
	engine, _ := newTestEngine(t)

	server := httptest.NewServer(engine)
	t.Cleanup(server.Close)

	resp, err := http.Get(server.URL + "/v1/realtime/meeting")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Expected WebSocket", string(body))
}

func TestMeetingRelay_UpgradeCreatesSession(t *testing.T) {
	engine, registry := newTestEngine(t)

	server := httptest.NewServer(engine)
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/realtime/meeting"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && registry.Count() == 0 {
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, 1, registry.Count(), "an upgraded connection must register a session")

	conn.Close()
	for time.Now().Before(deadline) && registry.Count() != 0 {
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, 0, registry.Count(), "a finished session must be deregistered")
}
