// Copyright (C) 2025 SDCL Labs (hello@sdclabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package identity creates and persists the two client identifiers that
// scope server-side history and feedback.
//
// Two identifiers with distinct lifetimes:
//
//   - session id: bounded to one conversation session per tenant; cleared
//     and regenerated on explicit reset, and aged out after SessionTTL.
//   - user id: generated once and reused indefinitely across sessions.
//
// Invariant: a new session id never implies a new user id. ResetSession
// must not touch the user identifier.
//
// The production store is an embedded BadgerDB database in the state
// directory. Storage being unavailable is not an error condition: Open
// degrades to an in-memory store for that run, which simply means fresh
// identifiers next time.
package identity

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// SessionTTL bounds how long an idle session id survives before a new one
// is generated. It approximates the browsing-session lifetime of the web
// client; every read refreshes it.
const SessionTTL = 12 * time.Hour

// Store supplies the session and user identifiers.
//
// Implementations must be safe for concurrent use. None of the methods
// have user-facing failure modes; errors indicate storage trouble the
// caller may log but should not surface.
type Store interface {
	// GetOrCreateSessionID returns the persisted session id for the
	// tenant, generating and persisting a fresh one if absent.
	GetOrCreateSessionID(tenantID string) (string, error)

	// GetOrCreateUserID returns the durable user id, generating and
	// persisting it on first use.
	GetOrCreateUserID() (string, error)

	// ResetSession discards the tenant's session id and returns a fresh
	// one. The user id is left untouched.
	ResetSession(tenantID string) (string, error)

	// Close releases the underlying storage.
	Close() error
}

// newID returns a collision-resistant identifier. Not required to be a
// strict UUID by the wire contract, but uuid gives us that for free.
func newID() string {
	return uuid.NewString()
}

func sessionKey(tenantID string) []byte {
	return []byte("session/" + tenantID)
}

var userKey = []byte("user/id")

// =============================================================================
// Badger-backed store
// =============================================================================

// badgerStore persists identifiers in an embedded BadgerDB database.
//
// Session ids are written with SessionTTL so a stale session ages out on
// its own; the user id is written without TTL and survives resets.
type badgerStore struct {
	db     *badger.DB
	logger *slog.Logger
}

// Config holds configuration for the identity store.
type Config struct {
	// Path is the directory for the identity database. Required unless
	// InMemory is set.
	Path string

	// InMemory enables Badger's in-memory mode. Useful for tests.
	InMemory bool

	// Logger receives storage diagnostics. If nil, slog.Default is used.
	Logger *slog.Logger
}

// NewBadgerStore opens the identity database described by cfg.
func NewBadgerStore(cfg Config) (Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("identity store: path is required")
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	// The store holds two tiny keys; keep Badger quiet and lean.
	opts = opts.WithLogger(nil).WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open identity store: %w", err)
	}

	return &badgerStore{db: db, logger: logger}, nil
}

// Open returns a badger-backed store at path, degrading to an in-memory
// store if the database cannot be opened (locked by another process,
// unwritable directory). The degradation is logged at warn level and the
// run proceeds with identifiers that only live for this process.
func Open(path string, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.Default()
	}

	store, err := NewBadgerStore(Config{Path: path, Logger: logger})
	if err != nil {
		logger.Warn("identity storage unavailable, using in-memory identifiers",
			"path", path,
			"error", err,
		)
		return NewMemoryStore()
	}
	return store
}

func (s *badgerStore) GetOrCreateSessionID(tenantID string) (string, error) {
	return s.getOrCreate(sessionKey(tenantID), SessionTTL)
}

func (s *badgerStore) GetOrCreateUserID() (string, error) {
	return s.getOrCreate(userKey, 0)
}

func (s *badgerStore) ResetSession(tenantID string) (string, error) {
	fresh := newID()
	err := s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(sessionKey(tenantID), []byte(fresh)).WithTTL(SessionTTL)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return "", fmt.Errorf("reset session id: %w", err)
	}

	s.logger.Info("session reset",
		"tenant_id", tenantID,
		"session_id", fresh,
	)
	return fresh, nil
}

// getOrCreate reads key, generating and persisting a fresh id when the
// key is absent. A read refreshes the TTL so active sessions do not
// expire mid-conversation.
func (s *badgerStore) getOrCreate(key []byte, ttl time.Duration) (string, error) {
	var id string
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		switch {
		case err == nil:
			if err := item.Value(func(val []byte) error {
				id = string(val)
				return nil
			}); err != nil {
				return err
			}
		case errors.Is(err, badger.ErrKeyNotFound):
			id = newID()
		default:
			return err
		}

		entry := badger.NewEntry(key, []byte(id))
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return "", fmt.Errorf("identity read-modify-write: %w", err)
	}
	return id, nil
}

func (s *badgerStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// In-memory store
// =============================================================================

// memoryStore keeps identifiers for the lifetime of the process. Used as
// the degraded mode when storage is unavailable, and in tests.
type memoryStore struct {
	mu       sync.Mutex
	sessions map[string]string
	userID   string
}

// NewMemoryStore returns a store without any persistence.
func NewMemoryStore() Store {
	return &memoryStore{sessions: make(map[string]string)}
}

func (s *memoryStore) GetOrCreateSessionID(tenantID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.sessions[tenantID]; ok {
		return id, nil
	}
	id := newID()
	s.sessions[tenantID] = id
	return id, nil
}

func (s *memoryStore) GetOrCreateUserID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userID == "" {
		s.userID = newID()
	}
	return s.userID, nil
}

func (s *memoryStore) ResetSession(tenantID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := newID()
	s.sessions[tenantID] = id
	return id, nil
}

func (s *memoryStore) Close() error {
	return nil
}

var (
	_ Store = (*badgerStore)(nil)
	_ Store = (*memoryStore)(nil)
)
