// Copyright (C) 2025 SDCL Labs (hello@sdclabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package conversation

import (
	"context"
	"log/slog"

	"github.com/sdclabs/parley/pkg/backend"
	"github.com/sdclabs/parley/pkg/verify"
)

// Hydrator seeds a fresh session's timeline from the backend-held history.
//
// Hydration runs exactly once per session, is never retried, and is
// non-fatal by design: any failure — token, network, non-success status —
// leaves the timeline empty and the user free to start a fresh
// conversation. The result is applied only while the timeline has no
// local messages; a user who typed before the history arrived wins and
// the fetched history is dropped.
type Hydrator struct {
	backend backend.Client
	tokens  verify.TokenProvider
	logger  *slog.Logger
}

// NewHydrator creates a hydrator. A nil tokens provider behaves as
// verify.NoopProvider; a nil logger falls back to slog.Default.
func NewHydrator(client backend.Client, tokens verify.TokenProvider, logger *slog.Logger) *Hydrator {
	if tokens == nil {
		tokens = verify.NoopProvider{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hydrator{backend: client, tokens: tokens, logger: logger}
}

// Hydrate fetches prior turns for the session and seeds the timeline.
// Returns the number of messages applied; zero on failure or when the
// result was dropped in favor of local messages.
func (h *Hydrator) Hydrate(ctx context.Context, s *Session) int {
	if !s.beginHydration() {
		return 0
	}

	sessionID := s.SessionID()
	tenantID := s.Tenant().ID

	token, err := h.tokens.Acquire(ctx, verify.ActionHistory)
	if err != nil {
		h.logger.Warn("history token acquisition failed, starting empty",
			"tenant_id", tenantID,
			"session_id", sessionID,
			"error", err,
		)
		return 0
	}

	resp, err := h.backend.History(ctx, backend.HistoryRequest{
		TenantID:  tenantID,
		SessionID: sessionID,
		Token:     token,
	})
	if err != nil {
		h.logger.Warn("history fetch failed, starting empty",
			"tenant_id", tenantID,
			"session_id", sessionID,
			"error", err,
		)
		return 0
	}

	msgs := make([]Message, 0, len(resp.History))
	for _, entry := range resp.History {
		sender, ok := mapRole(entry.Role)
		if !ok {
			h.logger.Warn("skipping history entry with unknown role",
				"session_id", sessionID,
				"role", entry.Role,
			)
			continue
		}
		msgs = append(msgs, Message{
			Sender:   sender,
			Text:     entry.Text,
			ServerID: entry.MessageID,
		})
	}

	if !s.Timeline().Replace(msgs) {
		h.logger.Info("hydration dropped, local messages exist",
			"session_id", sessionID,
			"fetched", len(msgs),
		)
		return 0
	}

	h.logger.Info("session hydrated",
		"tenant_id", tenantID,
		"session_id", sessionID,
		"messages", len(msgs),
	)
	return len(msgs)
}

// mapRole translates a backend role to a Sender.
func mapRole(role string) (Sender, bool) {
	switch role {
	case "user":
		return SenderUser, true
	case "assistant", "ai":
		return SenderAssistant, true
	default:
		return "", false
	}
}
