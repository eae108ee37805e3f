// Copyright (C) 2025 SDCL Labs (hello@sdclabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeline_AppendAssignsIndexes(t *testing.T) {
	tl := NewTimeline()

	first := tl.Append(Message{Sender: SenderUser, Text: "hello", CreatedLocally: true})
	second := tl.Append(Message{Sender: SenderAssistant, Text: "hi there", ServerID: "m1"})

	assert.Equal(t, 0, first.LocalIndex)
	assert.Equal(t, 1, second.LocalIndex)
	assert.Equal(t, 2, tl.Len())

	msgs := tl.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Text)
	assert.False(t, msgs[0].Confirmed())
	assert.True(t, msgs[1].Confirmed())
}

func TestTimeline_AppendDropsDuplicateServerID(t *testing.T) {
	tl := NewTimeline()
	tl.Append(Message{Sender: SenderAssistant, Text: "first", ServerID: "m1"})

	dup := tl.Append(Message{Sender: SenderAssistant, Text: "second", ServerID: "m1"})

	// The message survives, the colliding id does not.
	assert.Equal(t, "second", dup.Text)
	assert.Empty(t, dup.ServerID)
	assert.Equal(t, 2, tl.Len())
}

func TestTimeline_PatchLastUnconfirmedUser(t *testing.T) {
	tl := NewTimeline()
	tl.Append(Message{Sender: SenderUser, Text: "older", ServerID: "u0"})
	tl.Append(Message{Sender: SenderUser, Text: "newer", CreatedLocally: true})
	tl.Append(Message{Sender: SenderAssistant, Text: "answer", ServerID: "a0"})

	patched, ok := tl.PatchLastUnconfirmedUser("u1")
	require.True(t, ok)
	assert.Equal(t, "newer", patched.Text)
	assert.Equal(t, "u1", patched.ServerID)

	// Stored copy was mutated in place, not just the return value.
	msgs := tl.Messages()
	assert.Equal(t, "u1", msgs[1].ServerID)
}

func TestTimeline_PatchMatchesByPositionNotContent(t *testing.T) {
	tl := NewTimeline()
	tl.Append(Message{Sender: SenderUser, Text: "same words", ServerID: "u0"})
	tl.Append(Message{Sender: SenderUser, Text: "same words", CreatedLocally: true})

	patched, ok := tl.PatchLastUnconfirmedUser("u1")
	require.True(t, ok)
	assert.Equal(t, 1, patched.LocalIndex)

	msgs := tl.Messages()
	assert.Equal(t, "u0", msgs[0].ServerID)
	assert.Equal(t, "u1", msgs[1].ServerID)
}

func TestTimeline_PatchRefusals(t *testing.T) {
	tl := NewTimeline()
	tl.Append(Message{Sender: SenderAssistant, Text: "answer", ServerID: "a0"})

	_, ok := tl.PatchLastUnconfirmedUser("u1")
	assert.False(t, ok, "no unconfirmed user message to patch")

	tl.Append(Message{Sender: SenderUser, Text: "question", CreatedLocally: true})

	_, ok = tl.PatchLastUnconfirmedUser("")
	assert.False(t, ok, "empty id must not patch")

	_, ok = tl.PatchLastUnconfirmedUser("a0")
	assert.False(t, ok, "taken id must not patch")
}

func TestTimeline_ReplaceRefusesLocalMessages(t *testing.T) {
	tl := NewTimeline()
	tl.Append(Message{Sender: SenderUser, Text: "typed first", CreatedLocally: true})

	applied := tl.Replace([]Message{{Sender: SenderUser, Text: "from history", ServerID: "m1"}})

	assert.False(t, applied)
	require.Equal(t, 1, tl.Len())
	assert.Equal(t, "typed first", tl.Messages()[0].Text)
}

func TestTimeline_ReplaceReindexesAndDeduplicates(t *testing.T) {
	tl := NewTimeline()
	tl.Append(Message{Sender: SenderAssistant, Text: "greeting", ServerID: "old"})

	applied := tl.Replace([]Message{
		{Sender: SenderUser, Text: "hi", ServerID: "m1"},
		{Sender: SenderAssistant, Text: "hello", ServerID: "m2"},
		{Sender: SenderUser, Text: "again", ServerID: "m1"},
	})
	require.True(t, applied)

	msgs := tl.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, 0, msgs[0].LocalIndex)
	assert.Equal(t, 1, msgs[1].LocalIndex)
	assert.Equal(t, 2, msgs[2].LocalIndex)
	assert.Empty(t, msgs[2].ServerID, "duplicate id in history must be dropped")

	// The pre-replace id is gone, so it is free again.
	reused := tl.Append(Message{Sender: SenderAssistant, Text: "x", ServerID: "old"})
	assert.Equal(t, "old", reused.ServerID)
}

func TestTimeline_ClearFreesServerIDs(t *testing.T) {
	tl := NewTimeline()
	tl.Append(Message{Sender: SenderAssistant, Text: "answer", ServerID: "m1"})
	tl.Clear()

	assert.Equal(t, 0, tl.Len())
	assert.False(t, tl.HasLocalMessages())

	kept := tl.Append(Message{Sender: SenderAssistant, Text: "again", ServerID: "m1"})
	assert.Equal(t, "m1", kept.ServerID)
}

func TestTimeline_MessagesReturnsCopy(t *testing.T) {
	tl := NewTimeline()
	tl.Append(Message{Sender: SenderUser, Text: "original", CreatedLocally: true})

	msgs := tl.Messages()
	msgs[0].Text = "mutated"

	assert.Equal(t, "original", tl.Messages()[0].Text)
}
