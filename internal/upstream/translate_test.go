package internal_upstream

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internal_message "github.com/rapidaai/realtime-relay/internal/message"
)

func translate(t *testing.T, frame string) map[string]interface{} {
	t.Helper()

	in, err := internal_message.ParseInbound([]byte(frame))
	require.NoError(t, err)

	out, err := TranslateSessionUpdate(in)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &decoded))
	return decoded
}

func TestTranslateSessionUpdate_ForcedParameters(t *testing.T) {
	decoded := translate(t, `{"type":"session.update","session":{"instructions":"take minutes"},"agenda_id":"A1"}`)

	assert.Equal(t, "session.update", decoded["type"])

	session, ok := decoded["session"].(map[string]interface{})
	require.True(t, ok, "translated frame must carry a session object")

	assert.Equal(t, []interface{}{"text"}, session["modalities"])
	assert.Equal(t, "pcm16", session["input_audio_format"])
	assert.Equal(t, "take minutes", session["instructions"], "client fields must survive translation")

	turnDetection, ok := session["turn_detection"].(map[string]interface{})
	require.True(t, ok, "translated frame must carry turn detection settings")
	assert.Equal(t, "server_vad", turnDetection["type"])
	assert.Equal(t, 0.5, turnDetection["threshold"])
	assert.Equal(t, float64(800), turnDetection["silence_duration_ms"])
}

func TestTranslateSessionUpdate_ClientOverridesRejected(t *testing.T) {
	decoded := translate(t, `{"type":"session.update","session":{"modalities":["audio"],"input_audio_format":"g711_ulaw"}}`)

	session := decoded["session"].(map[string]interface{})
	assert.Equal(t, []interface{}{"text"}, session["modalities"], "client cannot choose the response modality")
	assert.Equal(t, "pcm16", session["input_audio_format"], "client cannot choose the audio encoding")
}

func TestTranslateSessionUpdate_EmptySession(t *testing.T) {
	decoded := translate(t, `{"type":"session.update"}`)

	session, ok := decoded["session"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "pcm16", session["input_audio_format"])
}

func TestTranslateSessionUpdate_BadSessionPayload(t *testing.T) {
	in, err := internal_message.ParseInbound([]byte(`{"type":"session.update","session":["not","an","object"]}`))
	require.NoError(t, err)

	_, err = TranslateSessionUpdate(in)
	require.Error(t, err)
}
