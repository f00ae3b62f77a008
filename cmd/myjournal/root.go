// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/myjournal/myjournal/internal/config"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the MyJournal CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "myjournal",
		Short: "MyJournal - a personal journal server",
		Long: `MyJournal serves a personal journal over HTTP. Users sign in with an
email and password; entries are visible only to their owner and to admins.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewUseraddCmd())
	cmd.AddCommand(NewPasswdCmd())

	return cmd
}

// addDatabaseFlag registers the flag that overrides database.url.
func addDatabaseFlag(fs *pflag.FlagSet) {
	fs.String("database-url", "", "PostgreSQL URL (default: $"+config.DatabaseURLEnv+")")
}
