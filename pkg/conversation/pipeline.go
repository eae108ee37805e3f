// Copyright (C) 2025 SDCL Labs (hello@sdclabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package conversation

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sdclabs/parley/pkg/backend"
	"github.com/sdclabs/parley/pkg/verify"
)

// PipelineState is the submission pipeline's position in its state
// machine. StateFailed is transient: every failure path returns to
// StateIdle before Submit returns.
type PipelineState int

const (
	// StateIdle means no submission is in flight.
	StateIdle PipelineState = iota

	// StateValidating means input is being checked; no network yet.
	StateValidating

	// StateAwaitingToken means a verification token is being acquired.
	StateAwaitingToken

	// StateSending means the chat call is on the wire.
	StateSending

	// StateReconciling means the response is being merged into the
	// timeline.
	StateReconciling

	// StateFailed marks a failed submission on its way back to idle.
	StateFailed
)

// String returns the lowercase state name.
func (s PipelineState) String() string {
	switch s {
	case StateValidating:
		return "validating"
	case StateAwaitingToken:
		return "awaiting_token"
	case StateSending:
		return "sending"
	case StateReconciling:
		return "reconciling"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Result is the outcome of a successful submission.
type Result struct {
	// UserMessage is the optimistic user message, patched with its
	// server id when the backend acknowledged it.
	UserMessage Message

	// Assistant is the appended answer message. Zero when Stale.
	Assistant Message

	// Stale is true when the response arrived after the session it
	// belonged to was reset; the response was discarded and the
	// timeline untouched.
	Stale bool
}

// Pipeline turns a typed question into an optimistic timeline mutation, a
// verification token, a backend call, and a reconciliation of the
// response.
//
// # State machine
//
//	Idle → Validating → AwaitingToken → Sending → Reconciling → Idle
//	                 └──────────────────────────→ Failed ─────→ Idle
//
// Only one submission may be in flight at a time; a second Submit while
// busy fails fast with ErrSubmissionInFlight. The optimistic user message
// is appended synchronously before any suspension point, and is never
// rolled back on failure — a half-sent message beats silently discarding
// user input.
type Pipeline struct {
	backend backend.Client
	tokens  verify.TokenProvider
	logger  *slog.Logger

	mu    sync.Mutex
	state PipelineState
}

// NewPipeline creates a submission pipeline. A nil tokens provider
// behaves as verify.NoopProvider (an empty token is sent); a nil logger
// falls back to slog.Default.
func NewPipeline(client backend.Client, tokens verify.TokenProvider, logger *slog.Logger) *Pipeline {
	if tokens == nil {
		tokens = verify.NoopProvider{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{backend: client, tokens: tokens, logger: logger}
}

// State returns the pipeline's current state.
func (p *Pipeline) State() PipelineState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// InFlight reports whether a submission is being processed. Drivers use
// this to disable input while busy.
func (p *Pipeline) InFlight() bool {
	return p.State() != StateIdle
}

func (p *Pipeline) setState(next PipelineState) {
	p.mu.Lock()
	p.state = next
	p.mu.Unlock()
}

// Submit runs one question through the pipeline against the session.
//
// Errors:
//   - *ValidationError (ErrEmptyQuestion): blank input; nothing appended,
//     no network call made.
//   - ErrSubmissionInFlight: another submission is pending.
//   - *ConnectivityError: token or chat call failed; the optimistic user
//     message remains in the timeline unconfirmed.
//
// A response that arrives after the session was reset is discarded: the
// returned Result has Stale set and the fresh timeline is untouched.
func (p *Pipeline) Submit(ctx context.Context, s *Session, question string) (*Result, error) {
	p.mu.Lock()
	if p.state != StateIdle {
		p.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	p.state = StateValidating
	p.mu.Unlock()

	// Whatever happens below, the pipeline returns to interactive idle.
	defer p.setState(StateIdle)

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	requestID := uuid.New().String()
	tenantID := s.Tenant().ID
	sessionID := s.SessionID() // captured for the staleness fence
	userID := s.UserID()

	// Optimistic append: always visible before any network latency.
	userMsg := s.Timeline().Append(Message{
		Sender:         SenderUser,
		Text:           question,
		CreatedLocally: true,
	})

	p.logger.Debug("submission accepted",
		"request_id", requestID,
		"tenant_id", tenantID,
		"session_id", sessionID,
		"local_index", userMsg.LocalIndex,
		"question_length", len(question),
	)

	p.setState(StateAwaitingToken)
	token, err := p.tokens.Acquire(ctx, verify.ActionChat)
	if err != nil {
		p.setState(StateFailed)
		p.logger.Error("chat token acquisition failed",
			"request_id", requestID,
			"error", err,
		)
		return nil, &ConnectivityError{Op: "token", Err: err}
	}

	p.setState(StateSending)
	resp, err := p.backend.Chat(ctx, backend.ChatRequest{
		TenantID:  tenantID,
		SessionID: sessionID,
		UserID:    userID,
		Question:  question,
		Token:     token,
	})
	if err != nil {
		p.setState(StateFailed)
		p.logger.Error("chat request failed",
			"request_id", requestID,
			"session_id", sessionID,
			"error", err,
		)
		return nil, &ConnectivityError{Op: "chat", Err: err}
	}

	p.setState(StateReconciling)

	// The session may have been reset while the request was in flight.
	// The captured id no longer matching means this response belongs to
	// a dead conversation; merging it into the fresh timeline would be
	// wrong, so it is dropped.
	if current := s.SessionID(); current != sessionID {
		p.logger.Info("discarding response for superseded session",
			"request_id", requestID,
			"stale_session_id", sessionID,
			"current_session_id", current,
		)
		return &Result{Stale: true}, nil
	}

	if resp.UserMessageID != "" {
		if patched, ok := s.Timeline().PatchLastUnconfirmedUser(resp.UserMessageID); ok {
			userMsg = patched
		}
	}

	assistant := s.Timeline().Append(Message{
		Sender:   SenderAssistant,
		Text:     resp.Answer,
		ServerID: resp.MessageID,
		Sources:  resp.Sources,
	})

	p.logger.Debug("submission reconciled",
		"request_id", requestID,
		"session_id", sessionID,
		"user_message_id", userMsg.ServerID,
		"message_id", assistant.ServerID,
		"sources_count", len(assistant.Sources),
	)

	return &Result{UserMessage: userMsg, Assistant: assistant}, nil
}
