// Copyright (C) 2025 SDCL Labs (hello@sdclabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package conversation

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/sdclabs/parley/pkg/identity"
	"github.com/sdclabs/parley/pkg/tenant"
)

// Session binds one tenant's conversation state together: the resolved
// tenant config, the two identity values, the timeline, and the vote map.
//
// Construction establishes identity; Reset regenerates the session id and
// empties the local state without ever touching the user id. The session
// id is also the staleness fence for in-flight work: the pipeline captures
// it at request time and discards any response whose captured id no longer
// matches.
type Session struct {
	tenant tenant.Config
	ids    identity.Store
	logger *slog.Logger

	mu        sync.Mutex
	sessionID string
	userID    string
	hydrated  bool

	timeline *Timeline
	votes    *Votes
}

// NewSession establishes identity for the tenant and returns a session
// with an empty timeline and vote map.
func NewSession(cfg tenant.Config, ids identity.Store, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}

	sessionID, err := ids.GetOrCreateSessionID(cfg.ID)
	if err != nil {
		return nil, fmt.Errorf("establish session id: %w", err)
	}
	userID, err := ids.GetOrCreateUserID()
	if err != nil {
		return nil, fmt.Errorf("establish user id: %w", err)
	}

	logger.Info("session established",
		"tenant_id", cfg.ID,
		"session_id", sessionID,
	)

	return &Session{
		tenant:    cfg,
		ids:       ids,
		logger:    logger,
		sessionID: sessionID,
		userID:    userID,
		timeline:  NewTimeline(),
		votes:     NewVotes(),
	}, nil
}

// Tenant returns the immutable tenant config.
func (s *Session) Tenant() tenant.Config {
	return s.tenant
}

// SessionID returns the current session identifier.
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// UserID returns the durable user identifier.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Timeline returns the conversation timeline.
func (s *Session) Timeline() *Timeline {
	return s.timeline
}

// Votes returns the vote map.
func (s *Session) Votes() *Votes {
	return s.votes
}

// Reset clears the session identifier, generates a new one, and empties
// the timeline and vote map. The user id is deliberately untouched: a new
// session never implies a new user.
//
// A fresh session has no server-side history, so the session is marked
// hydrated; the hydrator will not run again.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fresh, err := s.ids.ResetSession(s.tenant.ID)
	if err != nil {
		return fmt.Errorf("reset session: %w", err)
	}

	old := s.sessionID
	s.sessionID = fresh
	s.hydrated = true
	s.timeline.Clear()
	s.votes.Clear()

	s.logger.Info("conversation cleared",
		"tenant_id", s.tenant.ID,
		"old_session_id", old,
		"new_session_id", fresh,
	)
	return nil
}

// beginHydration claims the one hydration slot. Returns false when
// hydration already ran (or a reset made it moot).
func (s *Session) beginHydration() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hydrated {
		return false
	}
	s.hydrated = true
	return true
}
