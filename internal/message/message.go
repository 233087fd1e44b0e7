// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_message

import (
	"encoding/json"
	"fmt"
)

// =============================================================================
// Inbound Frame Model
// =============================================================================

// MessageKind classifies an inbound client frame. The set is closed: anything
// that is not a recognized control frame is KindOpaque and passes through the
// relay untouched, which keeps the relay forward-compatible with upstream
// event types it has never seen.
type MessageKind string

const (
	// KindConfigure is the session configuration frame. The first one opens
	// the upstream leg; later ones are forwarded like any other frame.
	KindConfigure MessageKind = "configure"
	// KindAudioAppend is the high-volume streaming audio frame, the only
	// client frame subject to the backpressure drop policy.
	KindAudioAppend MessageKind = "audio_append"
	// KindOpaque is every other well-formed frame.
	KindOpaque MessageKind = "opaque"
)

// Wire type values recognized on the client leg.
const (
	TypeSessionUpdate    = "session.update"
	TypeInputAudioAppend = "input_audio_buffer.append"
	TypeError            = "error"
)

// Inbound is a parsed client frame. Raw keeps the verbatim bytes so that
// forwarding never re-encodes what the client sent.
type Inbound struct {
	Kind     MessageKind
	Type     string
	AgendaID string
	Session  json.RawMessage
	Raw      []byte
}

type envelope struct {
	Type     string          `json:"type"`
	AgendaID string          `json:"agenda_id,omitempty"`
	Session  json.RawMessage `json:"session,omitempty"`
}

// ParseInbound decodes the frame envelope and classifies it. A frame that is
// not a JSON object with the expected envelope shape is an error; the caller
// reports it to the client and keeps the session open.
func ParseInbound(data []byte) (*Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse inbound frame: %w", err)
	}

	in := &Inbound{
		Type:     env.Type,
		AgendaID: env.AgendaID,
		Session:  env.Session,
		Raw:      data,
	}

	switch env.Type {
	case TypeSessionUpdate:
		in.Kind = KindConfigure
	case TypeInputAudioAppend:
		in.Kind = KindAudioAppend
	default:
		in.Kind = KindOpaque
	}
	return in, nil
}

// =============================================================================
// Synthesized Outbound Frames
// =============================================================================

type errorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// ErrorFrame builds the error frame sent to the client on local failures.
func ErrorFrame(message string) []byte {
	data, _ := json.Marshal(errorFrame{Type: TypeError, Error: message})
	return data
}
