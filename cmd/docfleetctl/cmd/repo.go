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
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jeffvincent/docfleet/internal/model"
)

var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Manage tracked repositories",
}

var (
	repoName        string
	repoCloneURL    string
	repoDocsSubpath string
	repoAccessKind  string
	repoToken       string
	repoSSHKeyPath  string
	repoVerifyTLS   bool
	repoPublic      bool
)

var repoAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a repository for doc builds",
	RunE: func(c *cobra.Command, args []string) error {
		ctx := context.Background()
		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		r := model.Repository{
			ID:          uuid.NewString(),
			Name:        repoName,
			CloneURL:    repoCloneURL,
			DocsSubpath: repoDocsSubpath,
			Access:      model.AccessKind(repoAccessKind),
			AccessToken: repoToken,
			VerifyTLS:   repoVerifyTLS,
			Public:      repoPublic,
			CreatedAt:   time.Now(),
		}
		if repoSSHKeyPath != "" {
			key, err := os.ReadFile(repoSSHKeyPath)
			if err != nil {
				return fmt.Errorf("read ssh key %s: %w", repoSSHKeyPath, err)
			}
			r.AccessSSHKey = string(key)
		}

		if err := db.PutRepository(ctx, r); err != nil {
			return err
		}
		fmt.Printf("registered repository %s (%s)\n", r.Name, r.ID)
		return nil
	},
}

var repoRemoveCmd = &cobra.Command{
	Use:   "remove <repository-id>",
	Short: "Unregister a repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		ctx := context.Background()
		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()
		return db.DeleteRepository(ctx, args[0])
	},
}

var repoListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List registered repositories",
	RunE: func(c *cobra.Command, args []string) error {
		ctx := context.Background()
		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		repos, err := db.ListRepositories(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCLONE URL\tACCESS")
		for _, r := range repos {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.Name, r.CloneURL, r.Access)
		}
		return w.Flush()
	},
}

func init() {
	repoAddCmd.Flags().StringVar(&repoName, "name", "", "repository display name")
	repoAddCmd.Flags().StringVar(&repoCloneURL, "clone-url", "", "git clone URL")
	repoAddCmd.Flags().StringVar(&repoDocsSubpath, "docs-subpath", "docs", "subdirectory containing the documentation source")
	repoAddCmd.Flags().StringVar(&repoAccessKind, "access", string(model.AccessNone), "access kind: none, https_token, ssh_key")
	repoAddCmd.Flags().StringVar(&repoToken, "token", "", "access token, used when --access=https_token")
	repoAddCmd.Flags().StringVar(&repoSSHKeyPath, "ssh-key-file", "", "path to a private key file, used when --access=ssh_key")
	repoAddCmd.Flags().BoolVar(&repoVerifyTLS, "verify-tls", true, "verify TLS certificates when cloning over HTTPS")
	repoAddCmd.Flags().BoolVar(&repoPublic, "public", true, "serve published docs for this repository publicly")
	repoAddCmd.MarkFlagRequired("name")
	repoAddCmd.MarkFlagRequired("clone-url")

	repoCmd.AddCommand(repoAddCmd, repoRemoveCmd, repoListCmd)
	rootCmd.AddCommand(repoCmd)
}
