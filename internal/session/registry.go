// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_session

import (
	"sync"

	"github.com/rapidaai/realtime-relay/pkg/commons"
)

// Registry tracks live relay sessions for observability and shutdown.
// Sessions are transient; nothing here is persisted.
type Registry struct {
	logger commons.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty session registry.
func NewRegistry(logger commons.Logger) *Registry {
	return &Registry{
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Add registers a session under its identifier.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID()] = s
	r.logger.Debugf("registry: session %s added (%d active)", s.ID(), len(r.sessions))
}

// Remove forgets a session. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	r.logger.Debugf("registry: session %s removed (%d active)", id, len(r.sessions))
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll closes every live session; used on process shutdown.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	open := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		open = append(open, s)
	}
	r.mu.RUnlock()

	for _, s := range open {
		s.Close()
	}
}
