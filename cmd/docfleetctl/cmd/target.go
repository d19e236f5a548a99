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

package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jeffvincent/docfleet/internal/model"
)

var targetCmd = &cobra.Command{
	Use:   "target",
	Short: "Manage tracked (repository, ref) targets",
}

var (
	targetRepoID     string
	targetBranch     string
	targetTag        string
	targetAutoBuild  bool
	targetEnvBackend string
)

var targetTrackCmd = &cobra.Command{
	Use:   "track",
	Short: "Start tracking a branch or tag for builds",
	RunE: func(c *cobra.Command, args []string) error {
		if (targetBranch == "") == (targetTag == "") {
			return fmt.Errorf("exactly one of --branch or --tag is required")
		}

		ctx := context.Background()
		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		t := model.Target{
			ID:                 uuid.NewString(),
			RepositoryID:       targetRepoID,
			AutoBuild:          targetAutoBuild,
			EnvBackendOverride: model.EnvBackend(targetEnvBackend),
		}
		if targetBranch != "" {
			t.RefKind, t.RefName = model.RefBranch, targetBranch
		} else {
			t.RefKind, t.RefName = model.RefTag, targetTag
		}

		if err := db.PutTarget(ctx, t); err != nil {
			return err
		}
		fmt.Printf("tracking %s (%s) for repository %s\n", t.RefName, t.RefKind, t.RepositoryID)
		return nil
	},
}

var targetUntrackCmd = &cobra.Command{
	Use:   "untrack <target-id>",
	Short: "Stop tracking a target",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		ctx := context.Background()
		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()
		return db.DeleteTarget(ctx, args[0])
	},
}

var targetListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List tracked targets for a repository",
	RunE: func(c *cobra.Command, args []string) error {
		ctx := context.Background()
		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		targets, err := db.ListTargets(ctx, targetRepoID)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKIND\tNAME\tAUTO-BUILD\tLAST COMMIT")
		for _, t := range targets {
			fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\n", t.ID, t.RefKind, t.RefName, t.AutoBuild, t.LastBuiltCommit)
		}
		return w.Flush()
	},
}

func init() {
	targetTrackCmd.Flags().StringVar(&targetRepoID, "repo", "", "repository ID")
	targetTrackCmd.Flags().StringVar(&targetBranch, "branch", "", "branch name to track")
	targetTrackCmd.Flags().StringVar(&targetTag, "tag", "", "tag name to track")
	targetTrackCmd.Flags().BoolVar(&targetAutoBuild, "auto-build", false, "enable the auto-build monitor for this target")
	targetTrackCmd.Flags().StringVar(&targetEnvBackend, "env-backend", "", "override the environment backend (fast, pinned)")
	targetTrackCmd.MarkFlagRequired("repo")

	targetListCmd.Flags().StringVar(&targetRepoID, "repo", "", "repository ID")
	targetListCmd.MarkFlagRequired("repo")

	targetCmd.AddCommand(targetTrackCmd, targetUntrackCmd, targetListCmd)
	rootCmd.AddCommand(targetCmd)
}
