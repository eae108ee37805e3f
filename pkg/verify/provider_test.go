// Copyright (C) 2025 SDCL Labs (hello@sdclabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package verify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockHTTPClient struct {
	response *http.Response
	err      error
	lastURL  string
	lastBody string
}

func (m *mockHTTPClient) Post(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error) {
	m.lastURL = url
	if body != nil {
		b, _ := io.ReadAll(body)
		m.lastBody = string(b)
	}
	return m.response, m.err
}

func TestNoopProvider_ReturnsEmptyToken(t *testing.T) {
	token, err := NoopProvider{}.Acquire(context.Background(), ActionChat)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestHTTPProvider_AcquiresScopedToken(t *testing.T) {
	mock := &mockHTTPClient{
		response: &http.Response{
			StatusCode: 200,
			Body:       io.NopCloser(strings.NewReader(`{"token":"tok-123"}`)),
		},
	}
	provider := NewHTTPProviderWithClient(mock, Config{
		Endpoint: "http://verify.test/token",
		SiteKey:  "site-abc",
	})

	token, err := provider.Acquire(context.Background(), ActionFeedback)

	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)
	assert.Equal(t, "http://verify.test/token", mock.lastURL)

	var sent map[string]string
	require.NoError(t, json.Unmarshal([]byte(mock.lastBody), &sent))
	assert.Equal(t, "feedback", sent["action"])
	assert.Equal(t, "site-abc", sent["site_key"])
}

func TestHTTPProvider_ServerError(t *testing.T) {
	mock := &mockHTTPClient{
		response: &http.Response{
			StatusCode: 503,
			Body:       io.NopCloser(strings.NewReader(``)),
		},
	}
	provider := NewHTTPProviderWithClient(mock, Config{Endpoint: "http://verify.test/token"})

	_, err := provider.Acquire(context.Background(), ActionChat)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestHTTPProvider_TransportError(t *testing.T) {
	mock := &mockHTTPClient{err: errors.New("dial timeout")}
	provider := NewHTTPProviderWithClient(mock, Config{Endpoint: "http://verify.test/token"})

	_, err := provider.Acquire(context.Background(), ActionHistory)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "dial timeout")
}
