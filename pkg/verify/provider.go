// Copyright (C) 2025 SDCL Labs (hello@sdclabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package verify supplies single-use anti-abuse tokens for protected
// backend actions.
//
// The conversation core treats the provider as an opaque asynchronous
// supplier: it asks for a token scoped to a named action right before the
// corresponding network call and sends whatever comes back. Deployments
// without bot protection configure no provider, which behaves as a
// provider returning empty tokens — the backend decides whether an empty
// token is acceptable.
package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Action names a protected backend operation.
type Action string

const (
	// ActionChat protects question submission.
	ActionChat Action = "chat"

	// ActionHistory protects history hydration.
	ActionHistory Action = "history"

	// ActionFeedback protects vote submission.
	ActionFeedback Action = "feedback"
)

// TokenProvider produces a single-use token for an action.
//
// Acquire is an asynchronous suspension point: it may perform network
// I/O and must honor ctx cancellation. An empty token with a nil error
// is a legal result.
type TokenProvider interface {
	Acquire(ctx context.Context, action Action) (string, error)
}

// =============================================================================
// Noop Provider
// =============================================================================

// NoopProvider returns empty tokens. Used when no verification service is
// configured; absence of a provider is not an error.
type NoopProvider struct{}

// Acquire returns an empty token.
func (NoopProvider) Acquire(ctx context.Context, action Action) (string, error) {
	return "", nil
}

// =============================================================================
// HTTP Provider
// =============================================================================

// HTTPClient abstracts the transport for testability.
type HTTPClient interface {
	Post(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error)
}

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

// Config holds configuration for the HTTP token provider.
type Config struct {
	// Endpoint is the token service URL.
	Endpoint string

	// SiteKey identifies this deployment to the token service.
	SiteKey string

	// Timeout bounds the token round trip. Default: 15s. Token
	// acquisition sits on the critical path of every submission, so it
	// gets a much tighter bound than the chat call itself.
	Timeout time.Duration

	// Logger receives diagnostics. If nil, slog.Default is used.
	Logger *slog.Logger
}

// httpProvider fetches tokens from a verification service.
type httpProvider struct {
	http     HTTPClient
	endpoint string
	siteKey  string
	logger   *slog.Logger
}

// NewHTTPProvider creates a provider with the production transport.
func NewHTTPProvider(cfg Config) TokenProvider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return NewHTTPProviderWithClient(&defaultHTTPClient{
		client: &http.Client{Timeout: timeout},
	}, cfg)
}

// NewHTTPProviderWithClient creates a provider with an injected transport.
// Use this constructor in tests.
func NewHTTPProviderWithClient(client HTTPClient, cfg Config) TokenProvider {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &httpProvider{
		http:     client,
		endpoint: cfg.Endpoint,
		siteKey:  cfg.SiteKey,
		logger:   logger,
	}
}

// Acquire requests a token scoped to action.
func (p *httpProvider) Acquire(ctx context.Context, action Action) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"action":   string(action),
		"site_key": p.siteKey,
	})
	if err != nil {
		return "", fmt.Errorf("marshal token request: %w", err)
	}

	resp, err := p.http.Post(ctx, p.endpoint, "application/json", bytes.NewBuffer(payload))
	if err != nil {
		p.logger.Error("token request failed",
			"action", string(action),
			"error", err,
		)
		return "", fmt.Errorf("http post: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			p.logger.Error("failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token service error (%d)", resp.StatusCode)
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("parse token response: %w", err)
	}

	p.logger.Debug("token acquired",
		"action", string(action),
		"token_present", body.Token != "",
	)
	return body.Token, nil
}

var (
	_ TokenProvider = NoopProvider{}
	_ TokenProvider = (*httpProvider)(nil)
)
