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

func TestVotes_BeginConfirmLifecycle(t *testing.T) {
	v := NewVotes()

	require.True(t, v.Begin("m1", Vote{Value: VoteUp}))
	assert.Equal(t, VoteStatePending, v.State("m1"))

	require.True(t, v.Confirm("m1"))
	assert.Equal(t, VoteStateConfirmed, v.State("m1"))

	vote, state := v.Get("m1")
	assert.Equal(t, VoteUp, vote.Value)
	assert.Equal(t, VoteStateConfirmed, state)
}

func TestVotes_BeginRefusals(t *testing.T) {
	v := NewVotes()

	assert.False(t, v.Begin("", Vote{Value: VoteUp}), "empty id")
	assert.False(t, v.Begin("m1", Vote{Value: "sideways"}), "invalid value")

	require.True(t, v.Begin("m1", Vote{Value: VoteDown, Reason: "wrong century"}))
	assert.False(t, v.Begin("m1", Vote{Value: VoteUp}), "pending vote blocks a second")

	require.True(t, v.Confirm("m1"))
	assert.False(t, v.Begin("m1", Vote{Value: VoteUp}), "confirmed vote blocks a second")
	assert.Equal(t, 1, v.Len())
}

func TestVotes_RollbackPermitsRetry(t *testing.T) {
	v := NewVotes()

	require.True(t, v.Begin("m1", Vote{Value: VoteDown, Reason: "inaccurate"}))
	require.True(t, v.Rollback("m1"))
	assert.Equal(t, VoteStateUnvoted, v.State("m1"))
	assert.Equal(t, 0, v.Len())

	// The id is votable again after rollback.
	assert.True(t, v.Begin("m1", Vote{Value: VoteUp}))
}

func TestVotes_ConfirmedIsImmutable(t *testing.T) {
	v := NewVotes()

	require.True(t, v.Begin("m1", Vote{Value: VoteUp}))
	require.True(t, v.Confirm("m1"))

	assert.False(t, v.Rollback("m1"), "confirmed votes cannot be rolled back")
	assert.False(t, v.Confirm("m1"), "confirm is not idempotent from confirmed")
	assert.Equal(t, VoteStateConfirmed, v.State("m1"))
}

func TestVotes_TransitionsRequirePending(t *testing.T) {
	v := NewVotes()

	assert.False(t, v.Confirm("ghost"))
	assert.False(t, v.Rollback("ghost"))
	assert.Equal(t, VoteStateUnvoted, v.State("ghost"))
}

func TestVotes_Clear(t *testing.T) {
	v := NewVotes()
	require.True(t, v.Begin("m1", Vote{Value: VoteUp}))
	require.True(t, v.Begin("m2", Vote{Value: VoteDown}))
	require.True(t, v.Confirm("m1"))

	v.Clear()

	assert.Equal(t, 0, v.Len())
	assert.Equal(t, VoteStateUnvoted, v.State("m1"))
}

func TestVoteStateString(t *testing.T) {
	assert.Equal(t, "unvoted", VoteStateUnvoted.String())
	assert.Equal(t, "pending", VoteStatePending.String())
	assert.Equal(t, "confirmed", VoteStateConfirmed.String())
}
