package internal_session

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/realtime-relay/pkg/commons"
)

// wsPair returns both ends of a live websocket connection.
func wsPair(t *testing.T) (server *websocket.Conn, client *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	connCh := make(chan *websocket.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Error("upgrade failed:", err)
			return
		}
		connCh <- conn
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	select {
	case server = <-connCh:
	case <-time.After(testTimeout):
		t.Fatal("server connection never established")
	}
	t.Cleanup(func() { server.Close() })
	return server, client
}

// newIdleOutbound builds an outbound without a writer goroutine so that
// queue occupancy can be controlled exactly.
func newIdleOutbound(t *testing.T, threshold int64) *outbound {
	t.Helper()
	logger, err := commons.NewApplicationLogger()
	require.NoError(t, err)
	return &outbound{
		logger:    logger,
		queue:     make(chan frame, outboundQueueSize),
		threshold: threshold,
		closed:    make(chan struct{}),
	}
}

func TestOutbound_TryWriteDropsAtThreshold(t *testing.T) {
	o := newIdleOutbound(t, 2_000_000)
	chunk := bytes.Repeat([]byte("a"), 100_000)

	// Below the threshold the chunk is accepted.
	require.True(t, o.TryWrite(websocket.TextMessage, chunk))
	assert.Equal(t, int64(100_000), o.BufferedAmount())

	// At the threshold every droppable frame is discarded.
	o.pending.Store(2_000_000)
	assert.False(t, o.TryWrite(websocket.TextMessage, chunk))
	assert.False(t, o.TryWrite(websocket.TextMessage, chunk))
	assert.Equal(t, int64(2_000_000), o.BufferedAmount(), "dropped frames must not be queued")

	// One byte under the threshold and frames flow again.
	o.pending.Store(1_999_999)
	assert.True(t, o.TryWrite(websocket.TextMessage, chunk))
}

func TestOutbound_TryWriteExcessAudioDropped(t *testing.T) {
	// 2.5MB of audio chunks against a 2MB ceiling: the overflow is dropped
	// silently, nothing errors.
	o := newIdleOutbound(t, 2_000_000)
	chunk := bytes.Repeat([]byte("a"), 500_000)

	accepted := 0
	for i := 0; i < 5; i++ {
		if o.TryWrite(websocket.TextMessage, chunk) {
			accepted++
		}
	}

	assert.Equal(t, 4, accepted, "the chunk that found the buffer full must be dropped")
	assert.Equal(t, int64(2_000_000), o.BufferedAmount())
}

func TestOutbound_WriteOrderPreserved(t *testing.T) {
	server, client := wsPair(t)

	logger, err := commons.NewApplicationLogger()
	require.NoError(t, err)
	o := newOutbound(logger, server, 2_000_000)
	defer o.Close(websocket.CloseNormalClosure, "")

	var frames []string
	for i := 0; i < 5; i++ {
		frames = append(frames, fmt.Sprintf(`{"type":"event","seq":%d}`, i))
	}
	for _, f := range frames {
		require.NoError(t, o.Write(websocket.TextMessage, []byte(f)))
	}

	for _, want := range frames {
		require.NoError(t, client.SetReadDeadline(time.Now().Add(testTimeout)))
		_, data, err := client.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, want, string(data))
	}
}

func TestOutbound_CloseIsIdempotent(t *testing.T) {
	server, client := wsPair(t)

	logger, err := commons.NewApplicationLogger()
	require.NoError(t, err)
	o := newOutbound(logger, server, 2_000_000)

	o.Close(websocket.CloseNormalClosure, "")
	o.Close(websocket.CloseNormalClosure, "")

	require.ErrorIs(t, o.Write(websocket.TextMessage, []byte("late")), ErrOutboundClosed)

	// The peer observes a normal closure.
	require.NoError(t, client.SetReadDeadline(time.Now().Add(testTimeout)))
	_, _, err = client.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "expected close frame, got %v", err)
}
