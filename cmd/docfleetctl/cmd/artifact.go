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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeffvincent/docfleet/internal/lock"
	"github.com/jeffvincent/docfleet/internal/publish"
)

var artifactCmd = &cobra.Command{
	Use:   "artifact",
	Short: "Manage published documentation artifacts",
}

var (
	artifactRepoID string
	artifactSlug   string
	artifactDataDir string
)

var artifactPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove a target's published artifact from disk",
	RunE: func(c *cobra.Command, args []string) error {
		if artifactDataDir == "" {
			return fmt.Errorf("--data-dir is required")
		}
		store := publish.NewStore(artifactDataDir, lock.NewRegistry())
		if err := store.Purge(artifactRepoID, artifactSlug); err != nil {
			return err
		}
		fmt.Printf("purged published artifact for %s/%s\n", artifactRepoID, artifactSlug)
		return nil
	},
}

func init() {
	artifactPurgeCmd.Flags().StringVar(&artifactRepoID, "repo", "", "repository ID")
	artifactPurgeCmd.Flags().StringVar(&artifactSlug, "slug", "", "target slug, e.g. branch-main")
	artifactPurgeCmd.Flags().StringVar(&artifactDataDir, "data-dir", "", "docfleetd data directory")
	artifactPurgeCmd.MarkFlagRequired("repo")
	artifactPurgeCmd.MarkFlagRequired("slug")
	artifactPurgeCmd.MarkFlagRequired("data-dir")

	artifactCmd.AddCommand(artifactPurgeCmd)
	rootCmd.AddCommand(artifactCmd)
}
