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
	"github.com/sdclabs/parley/pkg/ux"
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	tenantID         string
	originURL        string
	backendURL       string
	verifyURL        string
	verifySiteKey    string
	stateDir         string
	tenantsFile      string
	logLevel         string
	personalityLevel string // UX personality level (full/standard/minimal/machine)
	noHydrate        bool

	rootCmd = &cobra.Command{
		Use:   "parley",
		Short: "A multi-tenant conversational assistant client",
		Long: `Parley is a terminal client for the SDCL conversational assistant
backend. Each tenant is a persona with its own greeting, styling, and
knowledge base; parley resolves the tenant, keeps your conversation
identity, and reconciles local state with the backend.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Initialize UX personality from flag or environment
			if personalityLevel != "" {
				ux.SetPersonalityLevel(ux.ParsePersonalityLevel(personalityLevel))
			} else {
				ux.InitPersonality()
			}
		},
	}

	// --- Chat ---
	chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Starts an interactive chat session with the resolved tenant",
		Run:   runChatCommand, // Defined in cmd_chat.go
	}

	askCmd = &cobra.Command{
		Use:   "ask [question]",
		Short: "Asks a single question and prints the answer",
		Args:  cobra.MinimumNArgs(1),
		Run:   runAskCommand, // Defined in cmd_chat.go
	}

	// --- Tenants ---
	tenantsCmd = &cobra.Command{
		Use:   "tenants",
		Short: "Lists the configured tenant personas",
		Run:   runTenantsCommand, // Defined in cmd_chat.go
	}

	// --- Sessions ---
	resetCmd = &cobra.Command{
		Use:   "reset",
		Short: "Starts a fresh conversation for the resolved tenant",
		Run:   runResetCommand, // Defined in cmd_chat.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&tenantID, "tenant", "t", "",
		"tenant id to chat with (overrides --origin)")
	rootCmd.PersistentFlags().StringVar(&originURL, "origin", "",
		"embedding origin URL to resolve the tenant from")
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend-url", "",
		"assistant backend base URL (env: PARLEY_BACKEND_URL)")
	rootCmd.PersistentFlags().StringVar(&verifyURL, "verify-url", "",
		"verification token endpoint (env: PARLEY_VERIFY_URL)")
	rootCmd.PersistentFlags().StringVar(&verifySiteKey, "site-key", "",
		"verification site key (env: PARLEY_SITE_KEY)")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", "",
		"directory for identity state (env: PARLEY_STATE_DIR)")
	rootCmd.PersistentFlags().StringVar(&tenantsFile, "tenants-file", "",
		"YAML file overriding the builtin tenant registry (env: PARLEY_TENANTS)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&personalityLevel, "personality", "p", "",
		"output personality: full, standard, minimal, machine (env: PARLEY_PERSONALITY)")

	chatCmd.Flags().BoolVar(&noHydrate, "no-hydrate", false,
		"start without replaying earlier conversation history")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(tenantsCmd)
	rootCmd.AddCommand(resetCmd)
}
