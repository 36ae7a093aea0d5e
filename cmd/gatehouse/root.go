// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the gatehouse CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gatehouse",
		Short: "Gatehouse - session-backed credential authentication",
		Long: `Gatehouse registers accounts, verifies email/password credentials
and keeps server-side login sessions addressed by an HTTP-only cookie.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/gatehouse/config.yaml)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewHashPasswordCmd())

	return cmd
}

// configPath returns the config file to read and whether it must exist.
// An explicit --config file is required; the XDG default only when present.
func configPath() (string, bool) {
	if configFile != "" {
		return configFile, true
	}
	if p, err := xdg.ConfigFile(); err == nil {
		return p, false
	}
	return "", false
}

// loadConfig reads and validates the configuration for cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, required := configPath()
	return config.Load(path, required, cmd.Flags())
}

// readConfig reads the configuration for cmd without validating it.
func readConfig(cmd *cobra.Command) (*config.Config, error) {
	path, required := configPath()
	return config.Read(path, required, cmd.Flags())
}
