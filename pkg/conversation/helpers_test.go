// Copyright (C) 2025 SDCL Labs (hello@sdclabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package conversation

import (
	"context"
	"testing"

	"github.com/sdclabs/parley/pkg/backend"
	"github.com/sdclabs/parley/pkg/identity"
	"github.com/sdclabs/parley/pkg/tenant"
	"github.com/sdclabs/parley/pkg/verify"
	"github.com/stretchr/testify/require"
)

// mockBackend implements backend.Client with per-test hooks.
type mockBackend struct {
	chatFunc     func(ctx context.Context, req backend.ChatRequest) (*backend.ChatResponse, error)
	historyFunc  func(ctx context.Context, req backend.HistoryRequest) (*backend.HistoryResponse, error)
	feedbackFunc func(ctx context.Context, req backend.FeedbackRequest) error

	chatCalls     int
	historyCalls  int
	feedbackCalls int

	lastChat     backend.ChatRequest
	lastFeedback backend.FeedbackRequest
}

func (m *mockBackend) Chat(ctx context.Context, req backend.ChatRequest) (*backend.ChatResponse, error) {
	m.chatCalls++
	m.lastChat = req
	if m.chatFunc != nil {
		return m.chatFunc(ctx, req)
	}
	return &backend.ChatResponse{Answer: "ok"}, nil
}

func (m *mockBackend) History(ctx context.Context, req backend.HistoryRequest) (*backend.HistoryResponse, error) {
	m.historyCalls++
	if m.historyFunc != nil {
		return m.historyFunc(ctx, req)
	}
	return &backend.HistoryResponse{}, nil
}

func (m *mockBackend) Feedback(ctx context.Context, req backend.FeedbackRequest) error {
	m.feedbackCalls++
	m.lastFeedback = req
	if m.feedbackFunc != nil {
		return m.feedbackFunc(ctx, req)
	}
	return nil
}

var _ backend.Client = (*mockBackend)(nil)

// mockTokens implements verify.TokenProvider with a canned result.
type mockTokens struct {
	token   string
	err     error
	actions []verify.Action
}

func (m *mockTokens) Acquire(ctx context.Context, action verify.Action) (string, error) {
	m.actions = append(m.actions, action)
	return m.token, m.err
}

var _ verify.TokenProvider = (*mockTokens)(nil)

// testTenant is a minimal tenant config for core tests.
var testTenant = tenant.Config{
	ID:           "samuel",
	Label:        "Samuel Kelly - A Real 18th Century Sailor",
	Placeholder:  "Ask Samuel Kelly anything...",
	ShowSources:  false,
	ShowFeedback: true,
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := NewSession(testTenant, identity.NewMemoryStore(), nil)
	require.NoError(t, err)
	return s
}
