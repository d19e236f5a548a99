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

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Enqueue, cancel and inspect build jobs",
}

var buildTargetID string

var buildEnqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Enqueue a manual build for a target",
	RunE: func(c *cobra.Command, args []string) error {
		ctx := context.Background()
		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		job := model.BuildJob{
			ID:         uuid.NewString(),
			TargetID:   buildTargetID,
			Trigger:    model.TriggerManual,
			EnqueuedAt: time.Now(),
		}
		if err := db.Enqueue(ctx, job); err != nil {
			return err
		}
		fmt.Printf("enqueued build %s for target %s\n", job.ID, job.TargetID)
		return nil
	},
}

var buildCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Request cancellation of a queued or running build",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		ctx := context.Background()
		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()
		return db.RequestCancel(ctx, args[0])
	},
}

var buildListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List recent builds for a target",
	RunE: func(c *cobra.Command, args []string) error {
		ctx := context.Background()
		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		jobs, err := db.ListJobsForTarget(ctx, buildTargetID, 20)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tTRIGGER\tENQUEUED\tDURATION\tERROR")
		for _, j := range jobs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				j.ID, j.Status, j.Trigger, j.EnqueuedAt.Format(time.RFC3339), j.Duration(), j.ErrorKind)
		}
		return w.Flush()
	},
}

func init() {
	buildEnqueueCmd.Flags().StringVar(&buildTargetID, "target", "", "target ID")
	buildEnqueueCmd.MarkFlagRequired("target")

	buildListCmd.Flags().StringVar(&buildTargetID, "target", "", "target ID")
	buildListCmd.MarkFlagRequired("target")

	buildCmd.AddCommand(buildEnqueueCmd, buildCancelCmd, buildListCmd)
	rootCmd.AddCommand(buildCmd)
}
