// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/myjournal/myjournal/internal/config"
	"github.com/myjournal/myjournal/internal/logging"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// readTerminalPassword prompts on out and reads a password from stdin
// without echo.
func readTerminalPassword(prompt string, out io.Writer) (string, error) {
	if _, err := fmt.Fprint(out, prompt); err != nil {
		return "", err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return "", oops.Code("PASSWORD_READ_FAILED").Wrap(err)
	}
	return string(pw), nil
}

// promptNewPassword asks for a password twice.
func promptNewPassword(deps *Deps, out io.Writer) (string, error) {
	pw, err := deps.PasswordReader("Password: ", out)
	if err != nil {
		return "", err
	}
	confirm, err := deps.PasswordReader("Confirm password: ", out)
	if err != nil {
		return "", err
	}
	if pw != confirm {
		return "", oops.Code("PASSWORD_MISMATCH").Errorf("passwords do not match")
	}
	return pw, nil
}

// NewUseraddCmd creates the useradd subcommand.
func NewUseraddCmd() *cobra.Command {
	return newUseraddCmd(nil)
}

func newUseraddCmd(deps *Deps) *cobra.Command {
	var (
		email string
		admin bool
	)
	cmd := &cobra.Command{
		Use:   "useradd",
		Short: "Create an account",
		Long:  `Create an account directly in the database. The password is read from the terminal.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withAccounts(cmd, deps, func(ctx context.Context, c *components, deps *Deps) error {
				password, err := promptNewPassword(deps, cmd.OutOrStdout())
				if err != nil {
					return err
				}
				p, err := c.accounts.Provision(ctx, email, password, admin)
				if err != nil {
					return err
				}
				kind := "user"
				if p.IsAdmin {
					kind = "admin"
				}
				cmd.Printf("Created %s %s (%s)\n", kind, p.Email, p.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address of the new account")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant administrator rights")
	_ = cmd.MarkFlagRequired("email")
	addDatabaseFlag(cmd.Flags())
	return cmd
}

// NewPasswdCmd creates the passwd subcommand.
func NewPasswdCmd() *cobra.Command {
	return newPasswdCmd(nil)
}

func newPasswdCmd(deps *Deps) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Reset an account password",
		Long:  `Set a new password for an account and end all of its sessions.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withAccounts(cmd, deps, func(ctx context.Context, c *components, deps *Deps) error {
				password, err := promptNewPassword(deps, cmd.OutOrStdout())
				if err != nil {
					return err
				}
				if err := c.accounts.ResetPassword(ctx, email, password); err != nil {
					return err
				}
				cmd.Printf("Password updated for %s\n", email)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address of the account")
	_ = cmd.MarkFlagRequired("email")
	addDatabaseFlag(cmd.Flags())
	return cmd
}

// withAccounts loads configuration, wires the stores and runs fn.
func withAccounts(cmd *cobra.Command, deps *Deps, fn func(ctx context.Context, c *components, deps *Deps) error) error {
	deps = deps.withDefaults()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := requirePersistentStore(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.Setup("myjournal", version, "text", deps.LogWriter)
	c, err := buildComponents(ctx, cfg, logger, nil, deps)
	if err != nil {
		return err
	}
	defer c.Close()

	return fn(ctx, c, deps)
}
