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
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sdclabs/parley/pkg/ux"
	"github.com/spf13/cobra"
)

func runChatCommand(cmd *cobra.Command, args []string) {
	app, err := newApp()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	defer app.close()

	hydrator := app.hydrator
	if noHydrate {
		hydrator = nil
	}

	runner := NewSessionChatRunner(SessionRunnerConfig{
		Session:  app.session,
		Pipeline: app.pipeline,
		Hydrator: hydrator,
		Feedback: app.feedback,
		Registry: app.registry,
		Reader:   NewInteractiveInputReader(50),
		Renderer: ux.NewTerminalRenderer(os.Stdout, ux.GetPersonality().Level),
		Warnings: app.warnings,
	})

	// Set up graceful shutdown with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := runner.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("Chat error: %v", err)
	}
}

func runAskCommand(cmd *cobra.Command, args []string) {
	app, err := newApp()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	defer app.close()

	for _, w := range app.warnings {
		ux.Warning(w.Message())
	}

	question := strings.Join(args, " ")
	result, err := app.pipeline.Submit(context.Background(), app.session, question)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	if result.Stale {
		log.Fatalf("Error: answer discarded, conversation was reset")
	}

	fmt.Printf("\n%s\n", result.Assistant.Text)
	if app.tenant.ShowSources && len(result.Assistant.Sources) > 0 {
		fmt.Println("\nSources:")
		for i, src := range result.Assistant.Sources {
			fmt.Printf("%d. %s\n", i+1, src.Source)
		}
	}
}

func runTenantsCommand(cmd *cobra.Command, args []string) {
	registry, err := loadRegistry()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	def := registry.Default()
	for _, id := range registry.IDs() {
		cfg, _ := registry.Get(id)
		marker := " "
		if id == def.ID {
			marker = "*"
		}
		fmt.Printf("%s %-16s %s\n", marker, id, cfg.Label)
	}
}

func runResetCommand(cmd *cobra.Command, args []string) {
	app, err := newApp()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	defer app.close()

	if err := app.session.Reset(); err != nil {
		log.Fatalf("Error: %v", err)
	}
	ux.Success(fmt.Sprintf("Started a fresh conversation with %s.", app.tenant.Label))
}
