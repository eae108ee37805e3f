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

// ReasonCategory is one of the fixed down-vote reasons the UI offers
// before falling back to free text.
type ReasonCategory string

const (
	ReasonInaccurate ReasonCategory = "inaccurate"
	ReasonUnhelpful  ReasonCategory = "unhelpful"
	ReasonOffTopic   ReasonCategory = "off-topic"
	ReasonOther      ReasonCategory = "other"
)

// ReasonCategories lists the fixed reason set in display order.
var ReasonCategories = []ReasonCategory{
	ReasonInaccurate,
	ReasonUnhelpful,
	ReasonOffTopic,
	ReasonOther,
}

// FeedbackController manages per-message votes with optimistic locking.
//
// A vote is recorded in the session's vote map before the network call
// resolves; rejection rolls the entry back entirely so the user can
// retry. A confirmed vote is immutable for the lifetime of the session.
// Ineligible votes (no server id, vote already recorded) are no-ops, not
// errors — the UI disables the affordance in those states.
type FeedbackController struct {
	backend backend.Client
	tokens  verify.TokenProvider
	logger  *slog.Logger
}

// NewFeedbackController creates a controller. A nil tokens provider
// behaves as verify.NoopProvider; a nil logger falls back to
// slog.Default.
func NewFeedbackController(client backend.Client, tokens verify.TokenProvider, logger *slog.Logger) *FeedbackController {
	if tokens == nil {
		tokens = verify.NoopProvider{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedbackController{backend: client, tokens: tokens, logger: logger}
}

// CanVote reports whether messageID is currently eligible for a vote:
// feedback enabled for the tenant, a backend-assigned id present, and no
// vote recorded yet. This mirrors the disabled-button state in the UI.
func (f *FeedbackController) CanVote(s *Session, messageID string) bool {
	if messageID == "" || !s.Tenant().ShowFeedback {
		return false
	}
	return s.Votes().State(messageID) == VoteStateUnvoted
}

// Vote records value (and an optional reason) for messageID.
//
// Ineligible calls return nil without touching the vote map. On backend
// rejection the optimistic entry is removed and a *ConnectivityError
// returned; the message becomes eligible again.
func (f *FeedbackController) Vote(ctx context.Context, s *Session, messageID string, value VoteValue, reason string) error {
	if !s.Tenant().ShowFeedback {
		return nil
	}
	if !s.Votes().Begin(messageID, Vote{Value: value, Reason: reason}) {
		// Empty id, invalid value, or a vote already pending/confirmed.
		f.logger.Debug("vote ignored",
			"message_id", messageID,
			"state", s.Votes().State(messageID).String(),
		)
		return nil
	}

	f.logger.Debug("vote recorded optimistically",
		"tenant_id", s.Tenant().ID,
		"message_id", messageID,
		"vote", string(value),
		"reason_present", reason != "",
	)

	token, err := f.tokens.Acquire(ctx, verify.ActionFeedback)
	if err != nil {
		s.Votes().Rollback(messageID)
		f.logger.Error("feedback token acquisition failed, vote rolled back",
			"message_id", messageID,
			"error", err,
		)
		return &ConnectivityError{Op: "token", Err: err}
	}

	err = f.backend.Feedback(ctx, backend.FeedbackRequest{
		TenantID:  s.Tenant().ID,
		MessageID: messageID,
		UserID:    s.UserID(),
		Vote:      string(value),
		Reason:    reason,
		Token:     token,
	})
	if err != nil {
		s.Votes().Rollback(messageID)
		f.logger.Error("feedback rejected, vote rolled back",
			"message_id", messageID,
			"error", err,
		)
		return &ConnectivityError{Op: "feedback", Err: err}
	}

	s.Votes().Confirm(messageID)
	f.logger.Info("vote confirmed",
		"tenant_id", s.Tenant().ID,
		"message_id", messageID,
		"vote", string(value),
	)
	return nil
}
