// Copyright (C) 2025 SDCL Labs (hello@sdclabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sdclabs/parley/pkg/backend"
	"github.com/sdclabs/parley/pkg/conversation"
	"github.com/sdclabs/parley/pkg/identity"
	"github.com/sdclabs/parley/pkg/tenant"
	"github.com/sdclabs/parley/pkg/ux"
)

// =============================================================================
// Mock Implementations
// =============================================================================

// mockBackendClient implements backend.Client for runner tests.
type mockBackendClient struct {
	chatFunc     func(ctx context.Context, req backend.ChatRequest) (*backend.ChatResponse, error)
	historyFunc  func(ctx context.Context, req backend.HistoryRequest) (*backend.HistoryResponse, error)
	feedbackErr  error
	feedbackReqs []backend.FeedbackRequest
}

func (m *mockBackendClient) Chat(ctx context.Context, req backend.ChatRequest) (*backend.ChatResponse, error) {
	if m.chatFunc != nil {
		return m.chatFunc(ctx, req)
	}
	return &backend.ChatResponse{Answer: "mock answer", UserMessageID: "u1", MessageID: "a1"}, nil
}

func (m *mockBackendClient) History(ctx context.Context, req backend.HistoryRequest) (*backend.HistoryResponse, error) {
	if m.historyFunc != nil {
		return m.historyFunc(ctx, req)
	}
	return &backend.HistoryResponse{}, nil
}

func (m *mockBackendClient) Feedback(ctx context.Context, req backend.FeedbackRequest) error {
	m.feedbackReqs = append(m.feedbackReqs, req)
	return m.feedbackErr
}

// mockReasonPrompter returns a canned down-vote reason.
type mockReasonPrompter struct {
	reason string
	err    error
	calls  int
}

func (m *mockReasonPrompter) PromptReason() (string, error) {
	m.calls++
	return m.reason, m.err
}

// newTestRunner assembles a runner over an in-memory conversation core.
func newTestRunner(t *testing.T, client backend.Client, inputs []string, prompter ReasonPrompter) (ChatRunner, *conversation.Session, *ux.BufferRenderer) {
	t.Helper()

	registry := tenant.NewRegistry()
	session, err := conversation.NewSession(registry.Default(), identity.NewMemoryStore(), nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	renderer := ux.NewBufferRenderer()
	runner := NewSessionChatRunner(SessionRunnerConfig{
		Session:  session,
		Pipeline: conversation.NewPipeline(client, nil, nil),
		Hydrator: conversation.NewHydrator(client, nil, nil),
		Feedback: conversation.NewFeedbackController(client, nil, nil),
		Registry: registry,
		Reader:   NewMockInputReader(inputs),
		Renderer: renderer,
		Reasons:  prompter,
	})
	return runner, session, renderer
}

// =============================================================================
// Chat Loop Tests
// =============================================================================

func TestSessionRunner_ExitsOnCommand(t *testing.T) {
	runner, _, _ := newTestRunner(t, &mockBackendClient{}, []string{"exit"}, nil)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: unexpected error: %v", err)
	}
}

func TestSessionRunner_ExitsOnEOF(t *testing.T) {
	runner, _, _ := newTestRunner(t, &mockBackendClient{}, nil, nil)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: unexpected error: %v", err)
	}
}

func TestSessionRunner_SubmitRendersAnswer(t *testing.T) {
	runner, session, renderer := newTestRunner(t, &mockBackendClient{}, []string{"hello there", "exit"}, nil)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if session.Timeline().Len() != 2 {
		t.Errorf("timeline length: got %d, want 2", session.Timeline().Len())
	}

	found := false
	for _, line := range renderer.Lines() {
		if strings.Contains(line, "mock answer") {
			found = true
		}
	}
	if !found {
		t.Errorf("assistant answer not rendered: %v", renderer.Lines())
	}
}

func TestSessionRunner_BackendFailureKeepsLoopAlive(t *testing.T) {
	client := &mockBackendClient{
		chatFunc: func(context.Context, backend.ChatRequest) (*backend.ChatResponse, error) {
			return nil, errors.New("backend down")
		},
	}
	runner, session, _ := newTestRunner(t, client, []string{"will fail", "exit"}, nil)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run must survive a backend failure: %v", err)
	}

	// The optimistic user message survives the failure.
	msgs := session.Timeline().Messages()
	if len(msgs) != 1 || msgs[0].Text != "will fail" {
		t.Errorf("unexpected timeline after failure: %+v", msgs)
	}
}

func TestSessionRunner_HydrationSeedsTranscript(t *testing.T) {
	client := &mockBackendClient{
		historyFunc: func(context.Context, backend.HistoryRequest) (*backend.HistoryResponse, error) {
			return &backend.HistoryResponse{History: []backend.HistoryEntry{
				{Role: "user", Text: "earlier question", MessageID: "m1"},
				{Role: "assistant", Text: "earlier answer", MessageID: "m2"},
			}}, nil
		},
	}
	runner, session, renderer := newTestRunner(t, client, []string{"exit"}, nil)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if session.Timeline().Len() != 2 {
		t.Errorf("timeline length after hydration: got %d, want 2", session.Timeline().Len())
	}

	lines := renderer.Lines()
	if len(lines) == 0 || !strings.Contains(lines[0], "resumed=2") {
		t.Errorf("banner should report resumed messages: %v", lines)
	}
}

// =============================================================================
// Slash Command Tests
// =============================================================================

func TestSessionRunner_ClearResetsSession(t *testing.T) {
	runner, session, _ := newTestRunner(t, &mockBackendClient{}, []string{"hello", "/clear", "exit"}, nil)

	oldSession := session.SessionID()
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if session.Timeline().Len() != 0 {
		t.Errorf("timeline should be empty after /clear, got %d", session.Timeline().Len())
	}
	if session.SessionID() == oldSession {
		t.Error("/clear should rotate the session id")
	}
}

func TestSessionRunner_VoteUpOnLastAnswer(t *testing.T) {
	client := &mockBackendClient{}
	runner, session, renderer := newTestRunner(t, client, []string{"hello", "/vote up", "exit"}, nil)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(client.feedbackReqs) != 1 {
		t.Fatalf("feedback calls: got %d, want 1", len(client.feedbackReqs))
	}
	req := client.feedbackReqs[0]
	if req.MessageID != "a1" || req.Vote != "up" {
		t.Errorf("unexpected feedback request: %+v", req)
	}
	if session.Votes().State("a1") != conversation.VoteStateConfirmed {
		t.Errorf("vote state: got %v, want confirmed", session.Votes().State("a1"))
	}

	marked := false
	for _, line := range renderer.Lines() {
		if line == "vote confirmed up" {
			marked = true
		}
	}
	if !marked {
		t.Errorf("vote mark not rendered: %v", renderer.Lines())
	}
}

func TestSessionRunner_DownVotePromptsReason(t *testing.T) {
	client := &mockBackendClient{}
	prompter := &mockReasonPrompter{reason: "inaccurate: wrong year"}
	runner, _, _ := newTestRunner(t, client, []string{"hello", "/vote down", "exit"}, prompter)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if prompter.calls != 1 {
		t.Errorf("reason prompter calls: got %d, want 1", prompter.calls)
	}
	if len(client.feedbackReqs) != 1 {
		t.Fatalf("feedback calls: got %d, want 1", len(client.feedbackReqs))
	}
	if client.feedbackReqs[0].Reason != "inaccurate: wrong year" {
		t.Errorf("reason not forwarded: %+v", client.feedbackReqs[0])
	}
}

func TestSessionRunner_CancelledReasonAbandonsVote(t *testing.T) {
	client := &mockBackendClient{}
	prompter := &mockReasonPrompter{err: errors.New("cancelled")}
	runner, session, _ := newTestRunner(t, client, []string{"hello", "/vote down", "exit"}, prompter)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(client.feedbackReqs) != 0 {
		t.Errorf("no feedback call expected, got %d", len(client.feedbackReqs))
	}
	if session.Votes().State("a1") != conversation.VoteStateUnvoted {
		t.Errorf("vote state: got %v, want unvoted", session.Votes().State("a1"))
	}
}

func TestSessionRunner_DoubleVoteIsNoOp(t *testing.T) {
	client := &mockBackendClient{}
	runner, _, _ := newTestRunner(t, client,
		[]string{"hello", "/vote up", "/vote down", "exit"},
		&mockReasonPrompter{})

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(client.feedbackReqs) != 1 {
		t.Errorf("confirmed votes are permanent; got %d feedback calls, want 1", len(client.feedbackReqs))
	}
}

func TestSessionRunner_UnknownCommandKeepsLoopAlive(t *testing.T) {
	runner, _, _ := newTestRunner(t, &mockBackendClient{}, []string{"/bogus", "exit"}, nil)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestSessionRunner_WarningsSurfacedOnce(t *testing.T) {
	registry := tenant.NewRegistry()
	session, err := conversation.NewSession(registry.Default(), identity.NewMemoryStore(), nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	client := &mockBackendClient{}
	renderer := ux.NewBufferRenderer()

	runner := NewSessionChatRunner(SessionRunnerConfig{
		Session:  session,
		Pipeline: conversation.NewPipeline(client, nil, nil),
		Hydrator: conversation.NewHydrator(client, nil, nil),
		Feedback: conversation.NewFeedbackController(client, nil, nil),
		Registry: registry,
		Reader:   NewMockInputReader([]string{"exit"}),
		Renderer: renderer,
		Warnings: []conversation.ConfigurationWarning{
			{Setting: "backend URL", Hint: "set PARLEY_BACKEND_URL"},
		},
	})

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	lines := renderer.Lines()
	if len(lines) == 0 || !strings.HasPrefix(lines[0], "warn backend URL") {
		t.Errorf("configuration warning should render first: %v", lines)
	}
}
