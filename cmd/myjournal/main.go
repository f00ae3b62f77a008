// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

// Package main is the entry point for the MyJournal server.
package main

import (
	"fmt"
	"os"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	cmd := NewRootCmd()
	cmd.Version = formatVersion(version, commit, date)
	cmd.SetArgs(os.Args[1:])

	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func formatVersion(version, commit, date string) string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
}
