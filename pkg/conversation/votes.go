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

import "sync"

// VoteValue is the direction of a vote.
type VoteValue string

const (
	// VoteUp approves an answer.
	VoteUp VoteValue = "up"

	// VoteDown rejects an answer, optionally with a reason.
	VoteDown VoteValue = "down"
)

// Valid reports whether v is one of the two known directions.
func (v VoteValue) Valid() bool {
	return v == VoteUp || v == VoteDown
}

// VoteState is the per-message vote lifecycle.
//
// Legal transitions:
//
//	Unvoted → Pending     (optimistic record, before the network call)
//	Pending → Confirmed   (backend accepted; immutable for the session)
//	Pending → Unvoted     (backend rejected; rollback, retry permitted)
//
// Illegal transitions (voting twice, confirming without a pending entry)
// are unrepresentable: the state machine methods refuse them.
type VoteState int

const (
	// VoteStateUnvoted means no vote is recorded for the message.
	VoteStateUnvoted VoteState = iota

	// VoteStatePending means a vote is recorded optimistically and the
	// backend call has not resolved yet.
	VoteStatePending

	// VoteStateConfirmed means the backend accepted the vote; it can
	// never be resubmitted or changed for the lifetime of the session.
	VoteStateConfirmed
)

// String returns the lowercase state name.
func (s VoteState) String() string {
	switch s {
	case VoteStatePending:
		return "pending"
	case VoteStateConfirmed:
		return "confirmed"
	default:
		return "unvoted"
	}
}

// Vote is the recorded payload for one message.
type Vote struct {
	Value  VoteValue
	Reason string
}

type voteEntry struct {
	vote  Vote
	state VoteState
}

// Votes is the sparse mapping from server message id to vote, with the
// per-message state machine enforced. At most one vote exists per id.
// Safe for concurrent use.
type Votes struct {
	mu      sync.Mutex
	entries map[string]voteEntry
}

// NewVotes returns an empty vote map.
func NewVotes() *Votes {
	return &Votes{entries: make(map[string]voteEntry)}
}

// Begin records vote optimistically, transitioning Unvoted → Pending.
// Returns false — leaving the map unchanged — when messageID is empty,
// the value is invalid, or any vote already exists for the id.
func (v *Votes) Begin(messageID string, vote Vote) bool {
	if messageID == "" || !vote.Value.Valid() {
		return false
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if _, exists := v.entries[messageID]; exists {
		return false
	}
	v.entries[messageID] = voteEntry{vote: vote, state: VoteStatePending}
	return true
}

// Confirm transitions Pending → Confirmed. Returns false for any other
// starting state.
func (v *Votes) Confirm(messageID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	entry, ok := v.entries[messageID]
	if !ok || entry.state != VoteStatePending {
		return false
	}
	entry.state = VoteStateConfirmed
	v.entries[messageID] = entry
	return true
}

// Rollback removes a pending entry entirely, restoring Unvoted and
// permitting a retry. Confirmed votes cannot be rolled back.
func (v *Votes) Rollback(messageID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	entry, ok := v.entries[messageID]
	if !ok || entry.state != VoteStatePending {
		return false
	}
	delete(v.entries, messageID)
	return true
}

// State returns the vote state for messageID.
func (v *Votes) State(messageID string) VoteState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.entries[messageID].state
}

// Get returns the recorded vote and its state.
func (v *Votes) Get(messageID string) (Vote, VoteState) {
	v.mu.Lock()
	defer v.mu.Unlock()
	entry := v.entries[messageID]
	return entry.vote, entry.state
}

// Len returns the number of recorded votes (pending or confirmed).
func (v *Votes) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.entries)
}

// Clear empties the map. Used on session reset.
func (v *Votes) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.entries = make(map[string]voteEntry)
}
