// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_upstream

import (
	"encoding/json"
	"fmt"

	internal_message "github.com/rapidaai/realtime-relay/internal/message"
)

// Session parameters forced on every upstream session regardless of what the
// client asked for: text-only responses, pcm16 input, and server-side voice
// activity detection tuned for meeting speech (0.5 amplitude threshold,
// 800ms of silence ends a turn).
const (
	inputAudioFormat = "pcm16"
	vadType          = "server_vad"
	vadThreshold     = 0.5
	vadSilenceMs     = 800
	responseModality = "text"
)

// TranslateSessionUpdate converts the client's configure frame into the
// upstream handshake message. Client-supplied session fields are kept, then
// the forced parameters are applied on top. This is the only place the relay
// rewrites a payload; everything else is forwarded verbatim.
func TranslateSessionUpdate(in *internal_message.Inbound) ([]byte, error) {
	session := map[string]interface{}{}
	if len(in.Session) > 0 {
		if err := json.Unmarshal(in.Session, &session); err != nil {
			return nil, fmt.Errorf("failed to parse session configuration: %w", err)
		}
	}

	session["modalities"] = []string{responseModality}
	session["input_audio_format"] = inputAudioFormat
	session["turn_detection"] = map[string]interface{}{
		"type":                vadType,
		"threshold":           vadThreshold,
		"silence_duration_ms": vadSilenceMs,
	}

	frame, err := json.Marshal(map[string]interface{}{
		"type":    internal_message.TypeSessionUpdate,
		"session": session,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session configuration: %w", err)
	}
	return frame, nil
}
