// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/myjournal/myjournal/internal/config"
	"github.com/myjournal/myjournal/internal/store"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return newMigrateCmd(nil)
}

func newMigrateCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long:  `Apply, roll back or inspect the PostgreSQL schema. Without a subcommand, applies all pending migrations.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				return runMigrateUp(cmd, m)
			})
		},
	}
	addDatabaseFlag(cmd.PersistentFlags())

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				return runMigrateUp(cmd, m)
			})
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Long:  `Roll back the given number of migrations (default 1). --all rolls back everything.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			all, _ := cmd.Flags().GetBool("all")
			return withMigrator(cmd, deps, func(m Migrator) error {
				if all {
					if err := m.Down(); err != nil {
						return oops.Code("MIGRATION_FAILED").With("operation", "down").Wrap(err)
					}
					cmd.Println("All migrations rolled back")
					return nil
				}
				if steps < 1 {
					return oops.Code("INVALID_STEPS").Errorf("steps must be at least 1, got %d", steps)
				}
				if err := m.Steps(-steps); err != nil {
					return oops.Code("MIGRATION_FAILED").With("operation", "down").With("steps", steps).Wrap(err)
				}
				cmd.Printf("Rolled back %d migration(s)\n", steps)
				return nil
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	down.Flags().Bool("all", false, "roll back every migration")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				return runMigrateVersion(cmd, m)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version without running migrations",
		Long:  `Mark the schema as being at VERSION and clear the dirty flag. Use after repairing a failed migration by hand.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, deps, func(m Migrator) error {
				if err := m.Force(version); err != nil {
					return oops.Code("MIGRATION_FAILED").With("operation", "force").With("version", version).Wrap(err)
				}
				cmd.Printf("Schema version forced to %d\n", version)
				return nil
			})
		},
	})

	return cmd
}

// withMigrator loads the database URL, opens a migrator and runs fn.
func withMigrator(cmd *cobra.Command, deps *Deps, fn func(Migrator) error) error {
	deps = deps.withDefaults()

	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").
			With("field", "database.url").
			Errorf("database url is required (set --database-url or $%s)", config.DatabaseURLEnv)
	}

	m, err := deps.MigratorFactory(cfg.Database.URL)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "open migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			slog.Debug("error closing migrator", "error", closeErr)
		}
	}()
	return fn(m)
}

func runMigrateUp(cmd *cobra.Command, m Migrator) error {
	pending, err := m.PendingMigrations()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "list pending").Wrap(err)
	}
	if len(pending) == 0 {
		cmd.Println("Schema is up to date")
		return nil
	}
	for _, v := range pending {
		name, err := store.MigrationName(v)
		if err != nil || name == "" {
			name = fmt.Sprintf("%06d", v)
		}
		cmd.Printf("Applying %s\n", name)
	}
	if err := m.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "up").Wrap(err)
	}
	cmd.Println("Migrations completed successfully")
	return nil
}

func runMigrateVersion(cmd *cobra.Command, m Migrator) error {
	version, dirty, err := m.Version()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "version").Wrap(err)
	}
	if version == 0 {
		cmd.Println("No migrations applied")
		return nil
	}
	status := ""
	if dirty {
		status = " (dirty)"
	}
	cmd.Printf("Schema version %d%s\n", version, status)
	return nil
}

// migrateUp applies pending migrations before the server starts.
func migrateUp(url string, deps *Deps, logger *slog.Logger) error {
	m, err := deps.MigratorFactory(url)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "open migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			logger.Debug("error closing migrator", "error", closeErr)
		}
	}()

	pending, err := m.PendingMigrations()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "list pending").Wrap(err)
	}
	if len(pending) == 0 {
		return nil
	}
	if err := m.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "up").Wrap(err)
	}
	logger.Info("migrations applied", "count", len(pending))
	return nil
}

// parseForceVersion parses the VERSION argument of migrate force.
func parseForceVersion(arg string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(strings.TrimSpace(arg), "%d", &version); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("arg", arg).Wrapf(err, "version must be an integer")
	}
	return version, nil
}
