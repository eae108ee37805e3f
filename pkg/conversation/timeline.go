// Copyright (C) 2025 SDCL Labs (hello@sdclabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package conversation implements the session and state reconciliation
// core of the Parley client: the message timeline, the submission
// pipeline that reconciles optimistic local state against asynchronous
// backend responses, history hydration, and the vote subsystem.
//
// # Architecture
//
//	CLI shell → Pipeline ───────→ backend.Client
//	          → FeedbackController → verify.TokenProvider
//	          → Hydrator
//	               ↓
//	            Session (Timeline + Votes + identity)
//
// The Timeline is the central data structure: an ordered, append-only
// (with in-place patch) sequence of message records. Messages are never
// deleted, only patched to attach a server-assigned id once the backend
// acknowledges them.
package conversation

import (
	"sync"

	"github.com/sdclabs/parley/pkg/backend"
)

// Sender distinguishes the two sides of the conversation.
type Sender string

const (
	// SenderUser marks a message typed by the visitor.
	SenderUser Sender = "user"

	// SenderAssistant marks an answer from the backend.
	SenderAssistant Sender = "assistant"
)

// Message is one timeline entry.
//
// ServerID starts absent for a freshly submitted user message and is
// filled in asynchronously once the backend acknowledges it. Assistant
// messages carry the id the backend assigned at creation; when the
// backend omits one the field stays empty and the message is ineligible
// for feedback. ServerID, when present, is unique within a session.
type Message struct {
	// LocalIndex is the message's position in append order.
	LocalIndex int

	// ServerID is the backend-assigned identifier, empty until known.
	ServerID string

	// Sender is who produced the message.
	Sender Sender

	// Text is the message content.
	Text string

	// Sources are the documents backing an assistant answer, if any.
	Sources []backend.SourceDocument

	// CreatedLocally is true for messages born from local input rather
	// than hydration or a backend response.
	CreatedLocally bool
}

// Confirmed reports whether the backend has acknowledged this message.
func (m Message) Confirmed() bool {
	return m.ServerID != ""
}

// Timeline is the ordered conversation record.
//
// Mutations are append and patch only; order is append order. Timeline is
// safe for concurrent use, though the submission pipeline serializes the
// writers in practice.
type Timeline struct {
	mu        sync.Mutex
	msgs      []Message
	serverIDs map[string]struct{}
}

// NewTimeline returns an empty timeline.
func NewTimeline() *Timeline {
	return &Timeline{serverIDs: make(map[string]struct{})}
}

// Append adds msg at the end and returns it with LocalIndex assigned.
//
// Uniqueness of server ids is an invariant of the timeline: if msg
// arrives with a ServerID already present, the id is dropped from the
// new entry (the message itself is kept — user input is never discarded).
func (t *Timeline) Append(msg Message) Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	if msg.ServerID != "" {
		if _, dup := t.serverIDs[msg.ServerID]; dup {
			msg.ServerID = ""
		} else {
			t.serverIDs[msg.ServerID] = struct{}{}
		}
	}

	msg.LocalIndex = len(t.msgs)
	t.msgs = append(t.msgs, msg)
	return msg
}

// PatchLastUnconfirmedUser attaches serverID to the most recent user
// message that has none, matching by position rather than content since
// duplicate text is legal. Returns the patched message and true, or false
// when no unconfirmed user message exists or the id is already taken.
func (t *Timeline) PatchLastUnconfirmedUser(serverID string) (Message, bool) {
	if serverID == "" {
		return Message{}, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, dup := t.serverIDs[serverID]; dup {
		return Message{}, false
	}

	for i := len(t.msgs) - 1; i >= 0; i-- {
		if t.msgs[i].Sender == SenderUser && t.msgs[i].ServerID == "" {
			t.msgs[i].ServerID = serverID
			t.serverIDs[serverID] = struct{}{}
			return t.msgs[i], true
		}
	}
	return Message{}, false
}

// Messages returns a copy of the timeline in append order.
func (t *Timeline) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

// Len returns the number of messages.
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.msgs)
}

// HasLocalMessages reports whether any entry was created from local
// input. Hydration yields to local messages: a user who typed before the
// history arrived wins.
func (t *Timeline) HasLocalMessages() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range t.msgs {
		if m.CreatedLocally {
			return true
		}
	}
	return false
}

// Replace swaps the whole timeline for msgs, reindexing from zero. Used
// only by hydration, which runs before local mutation; Replace refuses to
// overwrite local messages and reports whether it applied.
func (t *Timeline) Replace(msgs []Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, m := range t.msgs {
		if m.CreatedLocally {
			return false
		}
	}

	t.msgs = make([]Message, 0, len(msgs))
	t.serverIDs = make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		if m.ServerID != "" {
			if _, dup := t.serverIDs[m.ServerID]; dup {
				m.ServerID = ""
			} else {
				t.serverIDs[m.ServerID] = struct{}{}
			}
		}
		m.LocalIndex = len(t.msgs)
		t.msgs = append(t.msgs, m)
	}
	return true
}

// Clear empties the timeline. Used on session reset.
func (t *Timeline) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.msgs = nil
	t.serverIDs = make(map[string]struct{})
}
