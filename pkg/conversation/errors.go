// Copyright (C) 2025 SDCL Labs (hello@sdclabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package conversation

import "fmt"

// The error taxonomy is deliberately small. A ValidationError is surfaced
// inline and never reaches the network. A ConnectivityError is surfaced as
// a generic user-visible message while local state keeps its pre-failure
// shape. Nothing here is fatal; every failure path returns the caller to
// an interactive idle state.

// ValidationError rejects input before any network call is made.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// ErrEmptyQuestion is returned when the trimmed input is empty.
var ErrEmptyQuestion = &ValidationError{Reason: "question is empty"}

// ConnectivityError wraps a failed network interaction (token acquisition,
// chat call, feedback call). Op names the step that failed for logging;
// the user sees a generic message either way.
type ConnectivityError struct {
	Op  string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("connectivity (%s): %v", e.Op, e.Err)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

// ErrSubmissionInFlight rejects a second submission while one is pending.
// The shell disables input during a submission, so hitting this indicates
// a driver bug rather than a user mistake.
var ErrSubmissionInFlight = fmt.Errorf("a submission is already in flight")

// ConfigurationWarning flags missing optional configuration. It is not an
// error: the shell renders it as a non-blocking informational banner and
// proceeds.
type ConfigurationWarning struct {
	Setting string
	Hint    string
}

// Message returns the banner text.
func (w ConfigurationWarning) Message() string {
	if w.Hint == "" {
		return fmt.Sprintf("%s is not configured", w.Setting)
	}
	return fmt.Sprintf("%s is not configured (%s)", w.Setting, w.Hint)
}
