// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	internal_message "github.com/rapidaai/realtime-relay/internal/message"
	internal_upstream "github.com/rapidaai/realtime-relay/internal/upstream"
	"github.com/rapidaai/realtime-relay/config"
	"github.com/rapidaai/realtime-relay/pkg/commons"
	"github.com/rapidaai/realtime-relay/pkg/utils"
)

// =============================================================================
// Session State Machine
// =============================================================================

// State is the lifecycle position of a relay session.
type State int32

const (
	// StateAwaitingUpstream: the client is connected, no upstream leg yet.
	// Only a configure frame moves the session forward.
	StateAwaitingUpstream State = iota
	// StateBridging: both legs are live and frames flow in both directions.
	StateBridging
	// StateClosed is terminal; every handler is a no-op afterwards.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitingUpstream:
		return "awaiting_upstream"
	case StateBridging:
		return "bridging"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session bridges one client websocket to one upstream realtime websocket.
// Each session owns its two connections exclusively; nothing is shared
// across sessions.
type Session struct {
	id     string
	cfg    *config.AppConfig
	logger commons.Logger

	connector internal_upstream.Connector

	clientConn *websocket.Conn
	client     *outbound

	mu           sync.Mutex
	state        State
	agendaID     string
	upstreamConn *websocket.Conn
	upstream     *outbound

	closeOnce sync.Once

	clientDrops   atomic.Uint64
	upstreamDrops atomic.Uint64
}

// New creates a session for an already-upgraded client connection. The
// upstream leg is opened lazily by the first configure frame.
func New(
	cfg *config.AppConfig,
	logger commons.Logger,
	connector internal_upstream.Connector,
	clientConn *websocket.Conn,
) *Session {
	return &Session{
		id:         uuid.New().String(),
		cfg:        cfg,
		logger:     logger,
		connector:  connector,
		clientConn: clientConn,
		client:     newOutbound(logger, clientConn, cfg.RelayConfig.BackpressureThreshold),
		state:      StateAwaitingUpstream,
	}
}

// ID returns the generated session identifier.
func (s *Session) ID() string {
	return s.id
}

// AgendaID returns the business correlation identifier observed on the
// client leg, if any. The relay never interprets it.
func (s *Session) AgendaID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agendaID
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Drops returns the per-direction drop counters (to client, to upstream).
func (s *Session) Drops() (uint64, uint64) {
	return s.clientDrops.Load(), s.upstreamDrops.Load()
}

// transition advances the state machine. Transitions out of the terminal
// state are refused.
func (s *Session) transition(next State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed || s.state == next {
		return false
	}
	s.logger.Debugf("session %s: %s -> %s", s.id, s.state, next)
	s.state = next
	return true
}

// =============================================================================
// Client Leg
// =============================================================================

// Run is the session event loop: it reads the client leg until the client
// disconnects, then tears down both legs. It blocks the caller.
func (s *Session) Run(ctx context.Context) {
	s.logger.Infof("session %s: client connected", s.id)
	defer s.Close()

	for {
		_, data, err := s.clientConn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Infof("session %s: client disconnected", s.id)
			} else {
				s.logger.Debugf("session %s: client read ended: %v", s.id, err)
			}
			return
		}
		s.handleClientFrame(ctx, data)
	}
}

func (s *Session) handleClientFrame(ctx context.Context, data []byte) {
	// A failure handling one frame is reported and contained; it never
	// takes down the session, let alone the process.
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorf("session %s: panic handling client frame: %v", s.id, r)
			_ = s.client.Write(websocket.TextMessage, internal_message.ErrorFrame("internal error"))
		}
	}()

	if s.State() == StateClosed {
		return
	}

	in, err := internal_message.ParseInbound(data)
	if err != nil {
		s.logger.Warnf("session %s: malformed client frame: %v", s.id, err)
		if werr := s.client.Write(websocket.TextMessage, internal_message.ErrorFrame(err.Error())); werr != nil {
			s.logger.Debugf("session %s: failed to report parse error: %v", s.id, werr)
		}
		return
	}

	if in.AgendaID != "" {
		s.mu.Lock()
		if s.agendaID == "" {
			s.agendaID = in.AgendaID
			s.logger.Infof("session %s: minutes for agenda %s", s.id, in.AgendaID)
		}
		s.mu.Unlock()
	}

	switch s.State() {
	case StateAwaitingUpstream:
		if in.Kind == internal_message.KindConfigure {
			s.startBridging(ctx, in)
			return
		}
		// The upstream leg does not exist yet; there is nowhere to forward
		// to and the frame is not queued.
		s.logger.Debugf("session %s: dropping %q frame received before session configuration", s.id, in.Type)

	case StateBridging:
		s.forwardToUpstream(in)
	}
}

// forwardToUpstream relays one client frame to the upstream leg. Audio
// append frames are droppable under backpressure; everything else is always
// queued, verbatim and in arrival order.
func (s *Session) forwardToUpstream(in *internal_message.Inbound) {
	if in.Kind == internal_message.KindAudioAppend {
		if !s.upstream.TryWrite(websocket.TextMessage, in.Raw) {
			dropped := s.upstreamDrops.Add(1)
			s.logger.Warnf("session %s: upstream backpressure, dropped audio chunk (%d total)", s.id, dropped)
		}
		return
	}

	if err := s.upstream.Write(websocket.TextMessage, in.Raw); err != nil {
		s.logger.Debugf("session %s: upstream write rejected: %v", s.id, err)
	}
}

// =============================================================================
// Upstream Leg
// =============================================================================

// startBridging opens the upstream leg exactly once, sends the translated
// session configuration and starts the upstream read loop.
func (s *Session) startBridging(ctx context.Context, in *internal_message.Inbound) {
	configFrame, err := internal_upstream.TranslateSessionUpdate(in)
	if err != nil {
		s.logger.Warnf("session %s: invalid session configuration: %v", s.id, err)
		_ = s.client.Write(websocket.TextMessage, internal_message.ErrorFrame(err.Error()))
		return
	}

	conn, err := s.connector.Dial(ctx)
	if err != nil {
		s.logger.Errorf("session %s: upstream dial failed: %v", s.id, err)
		_ = s.client.Write(websocket.TextMessage, internal_message.ErrorFrame("upstream connection failed"))
		// The client is informed and may stay connected, but the session is
		// done: no retry, no half-initialized state.
		s.transition(StateClosed)
		return
	}

	up := newOutbound(s.logger, conn, s.cfg.RelayConfig.BackpressureThreshold)

	s.mu.Lock()
	s.upstreamConn = conn
	s.upstream = up
	s.mu.Unlock()

	if err := up.Write(websocket.TextMessage, configFrame); err != nil {
		s.logger.Errorf("session %s: failed to send session configuration: %v", s.id, err)
		_ = s.client.Write(websocket.TextMessage, internal_message.ErrorFrame("upstream connection failed"))
		up.Close(websocket.CloseAbnormalClosure, "")
		s.transition(StateClosed)
		return
	}

	s.transition(StateBridging)
	s.logger.Infof("session %s: bridging to realtime endpoint", s.id)

	utils.Go(ctx, func() {
		s.upstreamReadLoop()
	})
}

// upstreamReadLoop forwards every upstream frame to the client, dropping
// frames while the client leg's buffer occupancy is at the threshold.
func (s *Session) upstreamReadLoop() {
	conn := s.upstreamLeg()
	if conn == nil {
		return
	}

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Infof("session %s: upstream closed", s.id)
			} else if s.State() != StateClosed {
				s.logger.Errorf("session %s: upstream read ended: %v", s.id, err)
				_ = s.client.Write(websocket.TextMessage, internal_message.ErrorFrame("upstream connection failed"))
			}
			// The client leg stays open so the final error frame can be
			// delivered, but no further forwarding happens.
			s.transition(StateClosed)
			s.closeUpstream()
			return
		}

		if !s.client.TryWrite(messageType, data) {
			dropped := s.clientDrops.Add(1)
			s.logger.Warnf("session %s: client backpressure, dropped upstream frame (%d total)", s.id, dropped)
		}
	}
}

func (s *Session) upstreamLeg() *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upstreamConn
}

// =============================================================================
// Teardown
// =============================================================================

func (s *Session) closeUpstream() {
	s.mu.Lock()
	up := s.upstream
	s.mu.Unlock()

	if up != nil {
		up.Close(websocket.CloseNormalClosure, "")
	}
}

// Close tears down both legs. Safe to call any number of times, from any
// goroutine.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.transition(StateClosed)
		s.closeUpstream()
		s.client.Close(websocket.CloseNormalClosure, "")

		toClient, toUpstream := s.Drops()
		s.logger.Infof("session %s: closed (dropped %d to client, %d to upstream)", s.id, toClient, toUpstream)
	})
}
