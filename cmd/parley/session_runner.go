// Copyright (C) 2025 SDCL Labs (hello@sdclabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sdclabs/parley/pkg/conversation"
	"github.com/sdclabs/parley/pkg/tenant"
	"github.com/sdclabs/parley/pkg/ux"
)

// SessionRunnerConfig holds everything a sessionChatRunner needs. All
// fields are required except Reasons, which defaults to the interactive
// form, Warnings, which may be empty, and Hydrator, which may be nil to
// skip history replay.
type SessionRunnerConfig struct {
	Session  *conversation.Session
	Pipeline *conversation.Pipeline
	Hydrator *conversation.Hydrator
	Feedback *conversation.FeedbackController
	Registry *tenant.Registry
	Reader   InputReader
	Renderer ux.ConversationRenderer
	Reasons  ReasonPrompter
	Warnings []conversation.ConfigurationWarning
}

// sessionChatRunner runs the interactive conversation loop against the
// conversation core. One runner serves one session; it is not reusable
// after Run returns.
type sessionChatRunner struct {
	session  *conversation.Session
	pipeline *conversation.Pipeline
	hydrator *conversation.Hydrator
	feedback *conversation.FeedbackController
	registry *tenant.Registry
	reader   InputReader
	renderer ux.ConversationRenderer
	reasons  ReasonPrompter
	warnings []conversation.ConfigurationWarning
}

// NewSessionChatRunner creates a runner from the assembled conversation
// core.
func NewSessionChatRunner(cfg SessionRunnerConfig) ChatRunner {
	reasons := cfg.Reasons
	if reasons == nil {
		reasons = NewFormReasonPrompter(cfg.Reader)
	}
	return &sessionChatRunner{
		session:  cfg.Session,
		pipeline: cfg.Pipeline,
		hydrator: cfg.Hydrator,
		feedback: cfg.Feedback,
		registry: cfg.Registry,
		reader:   cfg.Reader,
		renderer: cfg.Renderer,
		reasons:  reasons,
		warnings: cfg.Warnings,
	}
}

// Run executes the chat loop until exit, EOF, or context cancellation.
func (r *sessionChatRunner) Run(ctx context.Context) error {
	for _, w := range r.warnings {
		r.renderer.ConfigWarning(w)
	}

	resumed := r.hydrateWithProgress(ctx)
	cfg := r.session.Tenant()
	r.renderer.Banner(cfg, resumed)
	if resumed > 0 {
		r.renderer.Transcript(cfg, r.session.Timeline().Messages())
	}

	if p, ok := r.reader.(PromptingInputReader); ok {
		p.SetPrompt("> ")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if _, ok := r.reader.(PromptingInputReader); !ok {
			fmt.Print("> ")
		}
		line, err := r.reader.ReadLine()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case isExitCommand(line):
			return nil
		case strings.HasPrefix(line, "/"):
			if done := r.handleCommand(ctx, line); done {
				return nil
			}
		default:
			r.submit(ctx, line)
		}
	}
}

// hydrateWithProgress runs the one-shot hydration behind a spinner.
func (r *sessionChatRunner) hydrateWithProgress(ctx context.Context) int {
	if r.hydrator == nil {
		return 0
	}
	if !ux.ShouldShowProgress() {
		return r.hydrator.Hydrate(ctx, r.session)
	}

	var resumed int
	spin := ux.NewSpinner("Fetching your earlier conversation...")
	spin.Start()
	resumed = r.hydrator.Hydrate(ctx, r.session)
	spin.Stop()
	return resumed
}

// submit runs one question through the pipeline and renders the outcome.
func (r *sessionChatRunner) submit(ctx context.Context, question string) {
	cfg := r.session.Tenant()

	var (
		result *conversation.Result
		err    error
	)
	if ux.ShouldShowProgress() {
		spin := ux.NewSpinner(cfg.Label + " is thinking...")
		spin.Start()
		result, err = r.pipeline.Submit(ctx, r.session, question)
		spin.Stop()
	} else {
		result, err = r.pipeline.Submit(ctx, r.session, question)
	}

	if err != nil {
		var verr *conversation.ValidationError
		if errors.As(err, &verr) {
			ux.Warning(verr.Reason)
			return
		}
		// Connectivity and everything else: the optimistic message stays
		// in the timeline, so tell the user and keep going.
		ux.Error("Sorry, something went wrong reaching the assistant. Please try again.")
		return
	}

	if result.Stale {
		ux.Muted("(the conversation was cleared while waiting; answer discarded)")
		return
	}

	r.renderer.Message(cfg, result.Assistant)
	if r.feedback.CanVote(r.session, result.Assistant.ServerID) {
		ux.Muted("(/vote up or /vote down to rate this answer)")
	}
}

// handleCommand dispatches a slash command. Returns true when the loop
// should exit.
func (r *sessionChatRunner) handleCommand(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/help":
		ux.Info("/vote up|down  rate the latest answer")
		ux.Info("/clear         start a fresh conversation")
		ux.Info("/tenants       list available personas")
		ux.Info("exit           leave the chat")
	case "/clear":
		if err := r.session.Reset(); err != nil {
			ux.Error(fmt.Sprintf("Could not clear the conversation: %v", err))
			return false
		}
		ux.Success("Conversation cleared. Same you, fresh start.")
	case "/tenants":
		for _, id := range r.registry.IDs() {
			cfg, _ := r.registry.Get(id)
			ux.Info(fmt.Sprintf("%s — %s", id, cfg.Label))
		}
	case "/vote":
		if len(fields) < 2 {
			ux.Warning("Usage: /vote up|down")
			return false
		}
		r.vote(ctx, conversation.VoteValue(fields[1]))
	default:
		ux.Warning(fmt.Sprintf("Unknown command %s (try /help)", fields[0]))
	}
	return false
}

// vote applies a vote to the most recent assistant answer.
func (r *sessionChatRunner) vote(ctx context.Context, value conversation.VoteValue) {
	if !value.Valid() {
		ux.Warning("Usage: /vote up|down")
		return
	}

	messageID := r.lastVotableAnswer()
	if messageID == "" {
		ux.Warning("Nothing to vote on yet.")
		return
	}

	reason := ""
	if value == conversation.VoteDown {
		var err error
		reason, err = r.reasons.PromptReason()
		if err != nil {
			ux.Warning("Vote cancelled.")
			return
		}
	}

	if err := r.feedback.Vote(ctx, r.session, messageID, value, reason); err != nil {
		ux.Error("Could not record your vote. Please try again.")
		return
	}
	r.renderer.VoteMark(r.session.Votes().State(messageID), value)
}

// lastVotableAnswer returns the server id of the newest assistant message
// that is still eligible for a vote, or "".
func (r *sessionChatRunner) lastVotableAnswer() string {
	msgs := r.session.Timeline().Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.Sender != conversation.SenderAssistant {
			continue
		}
		if r.feedback.CanVote(r.session, m.ServerID) {
			return m.ServerID
		}
		return ""
	}
	return ""
}

var _ ChatRunner = (*sessionChatRunner)(nil)
