// Copyright (C) 2025 SDCL Labs (hello@sdclabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"io"
	"testing"
)

// =============================================================================
// InputReader Tests
// =============================================================================

func TestStdinReader_ImplementsInterface(t *testing.T) {
	// StdinReader wraps os.Stdin which we can't easily mock.
	var _ InputReader = &StdinReader{}
}

func TestMockInputReader_ReadLine_ReturnsInputsInOrder(t *testing.T) {
	inputs := []string{"first", "second", "third"}
	reader := NewMockInputReader(inputs)

	for i, expected := range inputs {
		got, err := reader.ReadLine()
		if err != nil {
			t.Fatalf("ReadLine() %d: unexpected error: %v", i, err)
		}
		if got != expected {
			t.Errorf("ReadLine() %d: got %q, want %q", i, got, expected)
		}
	}
}

func TestMockInputReader_ReadLine_ReturnsEOFWhenExhausted(t *testing.T) {
	reader := NewMockInputReader([]string{"only"})

	if _, err := reader.ReadLine(); err != nil {
		t.Fatalf("first ReadLine(): unexpected error: %v", err)
	}
	if _, err := reader.ReadLine(); err != io.EOF {
		t.Errorf("second ReadLine(): got %v, want io.EOF", err)
	}
}

func TestInteractiveInputReader_AddToHistory(t *testing.T) {
	r := &InteractiveInputReader{
		history:      make([]string, 0, 3),
		historyIndex: -1,
		maxHistory:   3,
	}

	r.addToHistory("one")
	r.addToHistory("one") // duplicate of most recent, skipped
	r.addToHistory("two")
	r.addToHistory("three")
	r.addToHistory("four") // pushes "one" out

	if len(r.history) != 3 {
		t.Fatalf("history length: got %d, want 3", len(r.history))
	}
	if r.history[0] != "two" || r.history[2] != "four" {
		t.Errorf("unexpected history: %v", r.history)
	}
}

// =============================================================================
// Helper Tests
// =============================================================================

func TestIsExitCommand(t *testing.T) {
	cases := []struct {
		input    string
		expected bool
	}{
		{"exit", true},
		{"quit", true},
		{"EXIT", false},
		{"hello", false},
		{"", false},
	}

	for _, tc := range cases {
		if got := isExitCommand(tc.input); got != tc.expected {
			t.Errorf("isExitCommand(%q) = %v, want %v", tc.input, got, tc.expected)
		}
	}
}
