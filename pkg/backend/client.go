// Copyright (C) 2025 SDCL Labs (hello@sdclabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package backend is the HTTP client for the Parley answering service.
//
// It covers the three endpoints the conversation core consumes:
//
//	POST {base}/chat      — submit a question, receive the answer
//	POST {base}/history   — fetch prior turns for a session
//	POST {base}/feedback  — record a vote on an answered message
//
// # Architecture
//
//	conversation core → Client interface → HTTPClient interface → http.Client
//
// The HTTPClient indirection exists so tests can inject canned responses
// without a network; production code uses defaultHTTPClient with a bounded
// timeout. Every request carries a context so a superseded session can
// abandon in-flight work.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout bounds every backend round trip. The answering service
// can take a while to produce long persona answers, but a hung connection
// must not hang the client forever.
const DefaultTimeout = 90 * time.Second

// =============================================================================
// Wire Types
// =============================================================================

// ChatRequest is the body of POST /chat.
//
// Field names mirror the production backend: client_id is the tenant and
// chat_id is the session.
type ChatRequest struct {
	TenantID  string `json:"client_id"`
	SessionID string `json:"chat_id"`
	UserID    string `json:"user_id"`
	Question  string `json:"question"`
	Token     string `json:"token,omitempty"`
}

// ChatResponse is the body of a successful POST /chat.
//
// UserMessageID acknowledges the question row the backend stored;
// MessageID identifies the answer row. Either may be absent on older
// backend builds.
type ChatResponse struct {
	Answer        string           `json:"answer"`
	UserMessageID string           `json:"user_message_id,omitempty"`
	MessageID     string           `json:"message_id,omitempty"`
	Sources       []SourceDocument `json:"source_documents,omitempty"`
}

// SourceDocument is one retrieved document backing an answer.
type SourceDocument struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

// HistoryRequest is the body of POST /history.
type HistoryRequest struct {
	TenantID  string `json:"client_id"`
	SessionID string `json:"chat_id"`
	Token     string `json:"token,omitempty"`
}

// HistoryEntry is one prior turn as the backend stores it.
type HistoryEntry struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	MessageID string `json:"message_id"`
}

// HistoryResponse is the body of a successful POST /history.
type HistoryResponse struct {
	History []HistoryEntry `json:"history"`
}

// FeedbackRequest is the body of POST /feedback.
type FeedbackRequest struct {
	TenantID  string `json:"client_id"`
	MessageID string `json:"message_id"`
	UserID    string `json:"user_id"`
	Vote      string `json:"vote"`
	Reason    string `json:"reason,omitempty"`
	Token     string `json:"token,omitempty"`
}

// =============================================================================
// Interfaces
// =============================================================================

// Client is the conversation core's view of the answering service.
//
// All methods translate transport failures and non-2xx statuses into
// errors; callers decide whether a failure is surfaced (chat, feedback)
// or swallowed (history hydration).
type Client interface {
	// Chat submits a question and returns the answer.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// History fetches the prior turns for a session.
	History(ctx context.Context, req HistoryRequest) (*HistoryResponse, error)

	// Feedback records a vote. Only the success/failure status matters.
	Feedback(ctx context.Context, req FeedbackRequest) error
}

// HTTPClient abstracts the HTTP transport for testability.
//
// Production uses defaultHTTPClient; tests inject mocks that capture the
// request and return canned responses.
type HTTPClient interface {
	Post(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error)
}

// defaultHTTPClient wraps http.Client with context plumbing.
type defaultHTTPClient struct {
	client *http.Client
}

func (c *defaultHTTPClient) Post(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	return c.client.Do(req)
}

// =============================================================================
// REST Client
// =============================================================================

// Config holds configuration for the backend client.
type Config struct {
	// BaseURL is the answering service URL without trailing slash.
	// Required; an empty BaseURL makes every call fail with ErrNotConfigured.
	BaseURL string

	// Timeout bounds each round trip. Default: DefaultTimeout.
	Timeout time.Duration

	// Logger receives request diagnostics. If nil, slog.Default is used.
	Logger *slog.Logger
}

// ErrNotConfigured is returned when no backend URL was supplied. The CLI
// shows a configuration warning banner up front; actual submissions then
// fail with this sentinel wrapped in a connectivity error.
var ErrNotConfigured = fmt.Errorf("backend URL not configured")

type restClient struct {
	http    HTTPClient
	baseURL string
	logger  *slog.Logger
}

// NewClient creates a backend client with the production HTTP transport.
func NewClient(cfg Config) Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return NewClientWithHTTP(&defaultHTTPClient{
		client: &http.Client{Timeout: timeout},
	}, cfg)
}

// NewClientWithHTTP creates a backend client with an injected transport.
// Use this constructor in tests.
func NewClientWithHTTP(httpClient HTTPClient, cfg Config) Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &restClient{
		http:    httpClient,
		baseURL: cfg.BaseURL,
		logger:  logger,
	}
}

func (c *restClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	requestID := uuid.New().String()

	c.logger.Debug("sending chat request",
		"request_id", requestID,
		"tenant_id", req.TenantID,
		"session_id", req.SessionID,
		"question_length", len(req.Question),
		"token_present", req.Token != "",
	)

	var resp ChatResponse
	if err := c.post(ctx, requestID, "/chat", req, &resp); err != nil {
		return nil, err
	}

	c.logger.Debug("chat request completed",
		"request_id", requestID,
		"message_id", resp.MessageID,
		"sources_count", len(resp.Sources),
	)
	return &resp, nil
}

func (c *restClient) History(ctx context.Context, req HistoryRequest) (*HistoryResponse, error) {
	requestID := uuid.New().String()

	var resp HistoryResponse
	if err := c.post(ctx, requestID, "/history", req, &resp); err != nil {
		return nil, err
	}

	c.logger.Debug("history fetched",
		"request_id", requestID,
		"session_id", req.SessionID,
		"turns", len(resp.History),
	)
	return &resp, nil
}

func (c *restClient) Feedback(ctx context.Context, req FeedbackRequest) error {
	requestID := uuid.New().String()

	c.logger.Debug("sending feedback",
		"request_id", requestID,
		"tenant_id", req.TenantID,
		"message_id", req.MessageID,
		"vote", req.Vote,
	)

	return c.post(ctx, requestID, "/feedback", req, nil)
}

// post marshals body, issues the request, validates the status, and
// decodes the response into out when out is non-nil.
func (c *restClient) post(ctx context.Context, requestID, path string, body any, out any) error {
	if c.baseURL == "" {
		return ErrNotConfigured
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	targetURL := c.baseURL + path
	resp, err := c.http.Post(ctx, targetURL, "application/json", bytes.NewBuffer(payload))
	if err != nil {
		c.logger.Error("backend request failed",
			"request_id", requestID,
			"url", targetURL,
			"error", err,
		)
		return fmt.Errorf("http post: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Error("failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if readErr != nil {
			return fmt.Errorf("server error (%d): failed to read response body", resp.StatusCode)
		}
		c.logger.Error("backend returned error",
			"request_id", requestID,
			"url", targetURL,
			"status_code", resp.StatusCode,
			"response_body", string(bodyBytes),
		)
		return fmt.Errorf("server error (%d): %s", resp.StatusCode, string(bodyBytes))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

var _ Client = (*restClient)(nil)
