// Copyright (C) 2025 SDCL Labs (hello@sdclabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/sdclabs/parley/pkg/conversation"
	"github.com/sdclabs/parley/pkg/ux"
)

// ReasonPrompter collects the optional reason for a down vote. An error
// means the user cancelled; the vote is then abandoned before any state
// changes.
type ReasonPrompter interface {
	PromptReason() (string, error)
}

// FormReasonPrompter asks for a down-vote reason with an interactive form
// when the terminal allows it, falling back to a plain line read.
type FormReasonPrompter struct {
	reader InputReader
}

// NewFormReasonPrompter creates a prompter. The reader serves as the
// non-interactive fallback.
func NewFormReasonPrompter(reader InputReader) *FormReasonPrompter {
	return &FormReasonPrompter{reader: reader}
}

// PromptReason collects a category and optional free-text detail and
// returns them joined as a single reason string. An empty reason is legal.
func (p *FormReasonPrompter) PromptReason() (string, error) {
	if !ux.IsInteractive() {
		fmt.Println("Why the down vote? (enter to skip)")
		line, err := p.reader.ReadLine()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}

	var category string
	var details string

	options := make([]huh.Option[string], 0, len(conversation.ReasonCategories))
	for _, c := range conversation.ReasonCategories {
		options = append(options, huh.NewOption(string(c), string(c)))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("What went wrong with this answer?").
				Options(options...).
				Value(&category),
			huh.NewText().
				Title("Anything to add? (optional)").
				CharLimit(500).
				Value(&details),
		),
	)

	if err := form.Run(); err != nil {
		return "", err
	}

	details = strings.TrimSpace(details)
	if details == "" {
		return category, nil
	}
	return category + ": " + details, nil
}

var _ ReasonPrompter = (*FormReasonPrompter)(nil)
