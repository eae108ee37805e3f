// Copyright (C) 2025 SDCL Labs (hello@sdclabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux provides user experience components for the Parley CLI.
//
// This file contains conversation renderers that display timeline messages
// to various outputs (terminal, buffer).
//
// Single Responsibility:
//
//	Renderers ONLY render. They do not submit, vote, or manage HTTP.
//	Each method handles exactly one display concern, enabling clean
//	composition with the conversation core.
//
// Renderer Types:
//
//   - ConversationRenderer interface: the rendering contract
//   - terminalRenderer: interactive terminal with colors and boxes
//   - bufferRenderer: in-memory capture for testing
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sdclabs/parley/pkg/conversation"
	"github.com/sdclabs/parley/pkg/tenant"
)

// ConversationRenderer renders conversation state to an output destination.
//
// Implementations must be safe for concurrent calls; the chat loop renders
// from the goroutine that owns the terminal, but hydration may complete on
// another.
type ConversationRenderer interface {
	// Banner renders the tenant greeting shown when a chat session opens.
	Banner(cfg tenant.Config, resumed int)

	// Message renders one timeline entry. Sources attached to an assistant
	// message are rendered only when the tenant enables them.
	Message(cfg tenant.Config, msg conversation.Message)

	// Transcript renders the whole timeline, oldest first.
	Transcript(cfg tenant.Config, msgs []conversation.Message)

	// VoteMark renders the vote indicator for a message id.
	VoteMark(state conversation.VoteState, value conversation.VoteValue)

	// ConfigWarning renders a non-blocking configuration banner.
	ConfigWarning(w conversation.ConfigurationWarning)
}

// =============================================================================
// Terminal Renderer
// =============================================================================

// terminalRenderer renders conversation state to an interactive terminal.
//
// Output styling follows the active personality level; the tenant's accent
// color is applied to the speaker labels so each persona keeps its visual
// identity from the web widget.
type terminalRenderer struct {
	writer      io.Writer
	personality PersonalityLevel
	mu          sync.Mutex
}

// NewTerminalRenderer creates a renderer for interactive terminal output.
// A nil writer defaults to os.Stdout.
func NewTerminalRenderer(w io.Writer, personality PersonalityLevel) ConversationRenderer {
	if w == nil {
		w = os.Stdout
	}
	return &terminalRenderer{writer: w, personality: personality}
}

func (r *terminalRenderer) Banner(cfg tenant.Config, resumed int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.personality == PersonalityMachine {
		fmt.Fprintf(r.writer, "TENANT: %s\n", cfg.ID)
		if resumed > 0 {
			fmt.Fprintf(r.writer, "RESUMED: %d\n", resumed)
		}
		return
	}

	accent := AccentStyle(cfg.AccentColor)
	fmt.Fprintln(r.writer, accent.Render(cfg.Label))
	fmt.Fprintln(r.writer, Styles.Muted.Render(cfg.Placeholder))
	if resumed > 0 {
		fmt.Fprintln(r.writer, Styles.Muted.Render(fmt.Sprintf("(resumed %d earlier messages)", resumed)))
	}
	fmt.Fprintln(r.writer)
}

func (r *terminalRenderer) Message(cfg tenant.Config, msg conversation.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renderMessage(cfg, msg)
}

func (r *terminalRenderer) Transcript(cfg tenant.Config, msgs []conversation.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, msg := range msgs {
		r.renderMessage(cfg, msg)
	}
}

// renderMessage assumes the caller holds the mutex.
func (r *terminalRenderer) renderMessage(cfg tenant.Config, msg conversation.Message) {
	if r.personality == PersonalityMachine {
		fmt.Fprintf(r.writer, "%s: %s\n", strings.ToUpper(string(msg.Sender)), msg.Text)
		if cfg.ShowSources {
			for _, src := range msg.Sources {
				fmt.Fprintf(r.writer, "SOURCE: %s\n", src.Source)
			}
		}
		return
	}

	label := "You"
	labelStyle := Styles.Bold
	if msg.Sender == conversation.SenderAssistant {
		label = cfg.Label
		labelStyle = AccentStyle(cfg.AccentColor)
	}

	fmt.Fprintf(r.writer, "%s %s\n", labelStyle.Render(label+":"), msg.Text)

	if msg.Sender == conversation.SenderAssistant && cfg.ShowSources && len(msg.Sources) > 0 {
		r.renderSources(msg)
	}
	fmt.Fprintln(r.writer)
}

func (r *terminalRenderer) renderSources(msg conversation.Message) {
	if r.personality == PersonalityMinimal {
		fmt.Fprintln(r.writer, "Sources:")
		for i, src := range msg.Sources {
			fmt.Fprintf(r.writer, "  %d. %s\n", i+1, src.Source)
		}
		return
	}

	var content strings.Builder
	showText := GetPersonality().ShowSourceText
	for i, src := range msg.Sources {
		content.WriteString(fmt.Sprintf("%d. %s", i+1, src.Source))
		if showText && src.Text != "" {
			content.WriteString("\n   ")
			content.WriteString(Styles.Muted.Render(truncate(src.Text, 120)))
		}
		if i < len(msg.Sources)-1 {
			content.WriteString("\n")
		}
	}
	boxStyle := Styles.InfoBox.Width(60)
	titleLine := Styles.Subtitle.Render("Sources")
	fmt.Fprintln(r.writer, boxStyle.Render(titleLine+"\n"+content.String()))
}

func (r *terminalRenderer) VoteMark(state conversation.VoteState, value conversation.VoteValue) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.personality == PersonalityMachine {
		fmt.Fprintf(r.writer, "VOTE: %s %s\n", state.String(), string(value))
		return
	}

	icon := IconThumbsUp
	if value == conversation.VoteDown {
		icon = IconThumbsDn
	}
	switch state {
	case conversation.VoteStatePending:
		fmt.Fprintf(r.writer, "%s %s\n", string(icon), Styles.Muted.Render("sending..."))
	case conversation.VoteStateConfirmed:
		fmt.Fprintf(r.writer, "%s %s\n", string(icon), Styles.Success.Render("recorded"))
	default:
		fmt.Fprintf(r.writer, "%s\n", string(icon))
	}
}

func (r *terminalRenderer) ConfigWarning(w conversation.ConfigurationWarning) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.personality == PersonalityMachine {
		fmt.Fprintf(r.writer, "WARN: %s\n", w.Message())
		return
	}
	boxStyle := Styles.WarningBox.Width(60)
	titleLine := Styles.Warning.Bold(true).Render("Configuration")
	fmt.Fprintln(r.writer, boxStyle.Render(titleLine+"\n"+w.Message()))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

// =============================================================================
// Buffer Renderer (for testing)
// =============================================================================

// BufferRenderer records render calls as plain lines for assertions.
type BufferRenderer struct {
	mu    sync.Mutex
	lines []string
}

// NewBufferRenderer creates a renderer that records render calls for
// inspection in tests.
func NewBufferRenderer() *BufferRenderer {
	return &BufferRenderer{}
}

func (r *BufferRenderer) record(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
}

func (r *BufferRenderer) Banner(cfg tenant.Config, resumed int) {
	r.record(fmt.Sprintf("banner %s resumed=%d", cfg.ID, resumed))
}

func (r *BufferRenderer) Message(cfg tenant.Config, msg conversation.Message) {
	r.record(fmt.Sprintf("%s: %s", msg.Sender, msg.Text))
}

func (r *BufferRenderer) Transcript(cfg tenant.Config, msgs []conversation.Message) {
	for _, msg := range msgs {
		r.Message(cfg, msg)
	}
}

func (r *BufferRenderer) VoteMark(state conversation.VoteState, value conversation.VoteValue) {
	r.record(fmt.Sprintf("vote %s %s", state.String(), string(value)))
}

func (r *BufferRenderer) ConfigWarning(w conversation.ConfigurationWarning) {
	r.record("warn " + w.Message())
}

// Lines returns a copy of everything recorded so far.
func (r *BufferRenderer) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

// =============================================================================
// Compile-time Interface Checks
// =============================================================================

var _ ConversationRenderer = (*terminalRenderer)(nil)
var _ ConversationRenderer = (*BufferRenderer)(nil)
