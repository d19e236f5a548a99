/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package cmd implements docfleetctl's subcommands. Every command opens its
// own short-lived connection to the same Postgres store docfleetd uses, the
// way operators expect a fleet CLI to act directly on shared state rather
// than proxying everything through the daemon's HTTP surface.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeffvincent/docfleet/internal/store"
)

var (
	databaseURL string
)

var rootCmd = &cobra.Command{
	Use:   "docfleetctl",
	Short: "docfleetctl — manage docfleet's tracked repositories, targets and builds",
	Long: `docfleetctl operates the documentation build fleet docfleetd runs.

Common workflow:

  docfleetctl repo add --name widget --clone-url git@github.com:org/widget.git
  docfleetctl target track --repo <repository-id> --branch main --auto-build
  docfleetctl build enqueue --target <target-id>
  docfleetctl build ls --target <target-id>
  docfleetctl watch`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "Postgres DSN for the docfleet store (env DOCFLEET_DATABASE_URL)")
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("cli error: %w", err)
	}
	return nil
}

func openStore(ctx context.Context) (*store.Postgres, error) {
	if databaseURL == "" {
		databaseURL = os.Getenv("DOCFLEET_DATABASE_URL")
	}
	if databaseURL == "" {
		return nil, fmt.Errorf("--database-url (or DOCFLEET_DATABASE_URL) is required")
	}
	return store.OpenPostgres(ctx, databaseURL)
}
