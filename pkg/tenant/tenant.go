// Copyright (C) 2025 SDCL Labs (hello@sdclabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package tenant resolves which configured persona a Parley deployment is
// serving and exposes its immutable configuration record.
//
// A single deployment serves several personas ("tenants"); the active one
// is derived from the portal URL the client points at. Resolution is pure
// and synchronous with no failure mode: an unrecognized or absent tenant id
// always falls back to the registry's default tenant, never to an undefined
// state.
package tenant

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the immutable configuration record for one tenant.
//
// A Config is looked up once per load and never mutated afterwards.
// Presentation fields feed the terminal renderer; the two feature flags
// gate source display and the feedback subsystem.
type Config struct {
	// ID is the tenant identifier as it appears in URLs.
	ID string `yaml:"id" validate:"required,alphanum,lowercase"`

	// Label is the display name shown in the chat header.
	Label string `yaml:"label" validate:"required"`

	// Placeholder is the input prompt hint ("Ask Samuel Kelly anything...").
	Placeholder string `yaml:"placeholder" validate:"required"`

	// AccentColor is a hex color applied to the tenant's styling.
	AccentColor string `yaml:"accent_color" validate:"omitempty,hexcolor"`

	// FontFamily is carried through from the web presentation config.
	// The terminal renderer ignores it; it is kept so one registry file
	// can serve both frontends.
	FontFamily string `yaml:"font_family"`

	// ShowSources enables rendering of source documents under answers.
	ShowSources bool `yaml:"show_sources"`

	// ShowFeedback enables the per-message vote subsystem.
	ShowFeedback bool `yaml:"show_feedback"`
}

// Registry is a validated, read-only mapping from tenant id to Config.
type Registry struct {
	tenants   map[string]Config
	defaultID string
}

// DefaultTenantID is the fallback tenant when resolution yields nothing.
const DefaultTenantID = "samuel"

// builtinTenants mirrors the production persona set.
var builtinTenants = []Config{
	{
		ID:           "maximos",
		Label:        "St. Maximos the Confessor",
		Placeholder:  "Seek counsel from St. Maximos...",
		AccentColor:  "#8A6D3B",
		FontFamily:   "Lato",
		ShowSources:  false,
		ShowFeedback: true,
	},
	{
		ID:           "ordinance",
		Label:        "Anytown USA Ordinance",
		Placeholder:  "Ask about Anytown USA Ordinance...",
		AccentColor:  "#2E6E4E",
		FontFamily:   "Montserrat",
		ShowSources:  true,
		ShowFeedback: true,
	},
	{
		ID:           "marketingasst",
		Label:        "Parish Marketing Assistant",
		Placeholder:  "How can we help you today?",
		AccentColor:  "#F9CA24",
		FontFamily:   "Lato",
		ShowSources:  false,
		ShowFeedback: true,
	},
	{
		ID:           "samuel",
		Label:        "Samuel Kelly - A Real 18th Century Sailor",
		Placeholder:  "Ask Samuel Kelly anything...",
		AccentColor:  "#1D5C8A",
		FontFamily:   "Montserrat",
		ShowSources:  false,
		ShowFeedback: true,
	},
	{
		ID:           "prairiepastorate",
		Label:        "Prairie Catholic Pastorate Assistant",
		Placeholder:  "How can I help you?",
		AccentColor:  "#6B4E8A",
		FontFamily:   "Lato",
		ShowSources:  false,
		ShowFeedback: true,
	},
}

// NewRegistry returns the built-in tenant registry.
//
// The built-in set is validated at construction; a validation failure here
// is a programming error and panics, matching the "always yields a valid
// config" contract.
func NewRegistry() *Registry {
	r, err := newRegistry(builtinTenants, DefaultTenantID)
	if err != nil {
		panic(fmt.Sprintf("built-in tenant registry invalid: %v", err))
	}
	return r
}

// LoadRegistry reads a YAML registry override file.
//
// File shape:
//
//	default: samuel
//	tenants:
//	  - id: samuel
//	    label: ...
//
// Every entry is validated exhaustively; a file that fails validation is
// rejected as a whole rather than partially applied.
func LoadRegistry(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tenant registry: %w", err)
	}

	var doc struct {
		Default string   `yaml:"default"`
		Tenants []Config `yaml:"tenants"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse tenant registry: %w", err)
	}
	if doc.Default == "" {
		doc.Default = DefaultTenantID
	}

	return newRegistry(doc.Tenants, doc.Default)
}

func newRegistry(tenants []Config, defaultID string) (*Registry, error) {
	if len(tenants) == 0 {
		return nil, fmt.Errorf("tenant registry is empty")
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	m := make(map[string]Config, len(tenants))
	for _, cfg := range tenants {
		if err := v.Struct(cfg); err != nil {
			return nil, fmt.Errorf("tenant %q: %w", cfg.ID, err)
		}
		if _, dup := m[cfg.ID]; dup {
			return nil, fmt.Errorf("tenant %q: duplicate id", cfg.ID)
		}
		m[cfg.ID] = cfg
	}

	if _, ok := m[defaultID]; !ok {
		return nil, fmt.Errorf("default tenant %q not in registry", defaultID)
	}

	return &Registry{tenants: m, defaultID: defaultID}, nil
}

// Get returns the config for id and whether it exists.
func (r *Registry) Get(id string) (Config, bool) {
	cfg, ok := r.tenants[id]
	return cfg, ok
}

// Default returns the fallback tenant config.
func (r *Registry) Default() Config {
	return r.tenants[r.defaultID]
}

// IDs returns all tenant ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.tenants))
	for id := range r.tenants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Resolve derives the active tenant from a portal URL.
//
// First-match-wins over three sources:
//
//  1. explicit "tenant" query parameter
//  2. first path segment
//  3. leftmost subdomain label, excluding a conventional "www" prefix
//
// A source that yields an id unknown to the registry is skipped, so
// "/pricing?tenant=samuel" resolves to samuel even though "pricing" is not
// a tenant. When nothing matches, the registry default is returned.
// Resolution is read-only with respect to the URL.
func (r *Registry) Resolve(rawURL string) Config {
	u, err := url.Parse(rawURL)
	if err != nil {
		return r.Default()
	}

	for _, candidate := range []string{
		u.Query().Get("tenant"),
		firstPathSegment(u.Path),
		subdomainLabel(u.Hostname()),
	} {
		if candidate == "" {
			continue
		}
		if cfg, ok := r.Get(strings.ToLower(candidate)); ok {
			return cfg
		}
	}

	return r.Default()
}

// firstPathSegment returns the first non-empty path segment of p.
func firstPathSegment(p string) string {
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			return seg
		}
	}
	return ""
}

// subdomainLabel returns the leftmost host label, skipping "www".
// Bare hosts ("localhost") and single-label domains yield nothing.
func subdomainLabel(host string) string {
	labels := strings.Split(host, ".")
	if len(labels) > 0 && labels[0] == "www" {
		labels = labels[1:]
	}
	// Need at least label + domain + tld for the first label to be a
	// subdomain rather than the domain itself.
	if len(labels) < 3 {
		return ""
	}
	return labels[0]
}
