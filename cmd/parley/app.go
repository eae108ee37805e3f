// Copyright (C) 2025 SDCL Labs (hello@sdclabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package main wires the Parley CLI together.
//
// This file builds the per-invocation application object: resolved tenant,
// identity store, backend client, token provider, and the conversation
// core. Commands in cmd_chat.go consume it.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sdclabs/parley/pkg/backend"
	"github.com/sdclabs/parley/pkg/conversation"
	"github.com/sdclabs/parley/pkg/identity"
	"github.com/sdclabs/parley/pkg/logging"
	"github.com/sdclabs/parley/pkg/tenant"
	"github.com/sdclabs/parley/pkg/verify"
)

// envOr returns the flag value if set, the environment value otherwise.
func envOr(flagValue, envKey string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(envKey)
}

// defaultStateDir is where identity state lives when no override is given.
func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".parley"
	}
	return filepath.Join(home, ".parley", "state")
}

// app is the assembled per-invocation application.
type app struct {
	tenant   tenant.Config
	registry *tenant.Registry
	ids      identity.Store
	client   backend.Client
	tokens   verify.TokenProvider
	session  *conversation.Session
	pipeline *conversation.Pipeline
	hydrator *conversation.Hydrator
	feedback *conversation.FeedbackController
	logger   *logging.Logger

	// warnings are non-blocking configuration problems to surface once.
	warnings []conversation.ConfigurationWarning
}

// newApp resolves configuration from flags and environment and builds the
// conversation core. Missing backend configuration is a warning, not an
// error; the session still opens so local state behaves normally.
func newApp() (*app, error) {
	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(logLevel),
		Service: "parley",
	})

	registry, err := loadRegistry()
	if err != nil {
		return nil, err
	}

	cfg, err := resolveTenant(registry)
	if err != nil {
		return nil, err
	}

	dir := envOr(stateDir, "PARLEY_STATE_DIR")
	if dir == "" {
		dir = defaultStateDir()
	}
	ids := identity.Open(dir, logger.Logger)

	a := &app{
		tenant:   cfg,
		registry: registry,
		ids:      ids,
		logger:   logger,
	}

	base := envOr(backendURL, "PARLEY_BACKEND_URL")
	if base == "" {
		a.warnings = append(a.warnings, conversation.ConfigurationWarning{
			Setting: "backend URL",
			Hint:    "set PARLEY_BACKEND_URL or --backend-url",
		})
	}
	a.client = backend.NewClient(backend.Config{
		BaseURL: base,
		Logger:  logger.Logger,
	})

	verifyEndpoint := envOr(verifyURL, "PARLEY_VERIFY_URL")
	if verifyEndpoint != "" {
		a.tokens = verify.NewHTTPProvider(verify.Config{
			Endpoint: verifyEndpoint,
			SiteKey:  envOr(verifySiteKey, "PARLEY_SITE_KEY"),
			Logger:   logger.Logger,
		})
	} else {
		a.tokens = verify.NoopProvider{}
	}

	session, err := conversation.NewSession(cfg, ids, logger.Logger)
	if err != nil {
		ids.Close()
		logger.Close()
		return nil, fmt.Errorf("open session: %w", err)
	}
	a.session = session
	a.pipeline = conversation.NewPipeline(a.client, a.tokens, logger.Logger)
	a.hydrator = conversation.NewHydrator(a.client, a.tokens, logger.Logger)
	a.feedback = conversation.NewFeedbackController(a.client, a.tokens, logger.Logger)

	return a, nil
}

func (a *app) close() {
	if a.ids != nil {
		a.ids.Close()
	}
	if a.logger != nil {
		a.logger.Close()
	}
}

// loadRegistry returns the builtin registry or the YAML override.
func loadRegistry() (*tenant.Registry, error) {
	path := envOr(tenantsFile, "PARLEY_TENANTS")
	if path == "" {
		return tenant.NewRegistry(), nil
	}
	reg, err := tenant.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("load tenant registry: %w", err)
	}
	return reg, nil
}

// resolveTenant applies the precedence: explicit --tenant id, then the
// --origin URL resolution chain, then the registry default.
func resolveTenant(registry *tenant.Registry) (tenant.Config, error) {
	if tenantID != "" {
		cfg, ok := registry.Get(tenantID)
		if !ok {
			return tenant.Config{}, fmt.Errorf("unknown tenant %q (try 'parley tenants')", tenantID)
		}
		return cfg, nil
	}
	if originURL != "" {
		return registry.Resolve(originURL), nil
	}
	return registry.Default(), nil
}
