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
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/jeffvincent/docfleet/internal/model"
	"github.com/jeffvincent/docfleet/internal/store"
)

var watchRepoID string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live dashboard of recent build activity",
	RunE: func(c *cobra.Command, args []string) error {
		ctx := context.Background()
		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		p := tea.NewProgram(newWatchModel(db, watchRepoID))
		_, err = p.Run()
		return err
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchRepoID, "repo", "", "limit the dashboard to one repository's targets")
	rootCmd.AddCommand(watchCmd)
}

type tickMsg time.Time

type jobsMsg struct {
	jobs []model.BuildJob
	err  error
}

type watchModel struct {
	db    store.Store
	repo  string
	table table.Model
	err   error
}

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
var errStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

func newWatchModel(db store.Store, repo string) watchModel {
	columns := []table.Column{
		{Title: "JOB", Width: 36},
		{Title: "TARGET", Width: 36},
		{Title: "STATUS", Width: 12},
		{Title: "TRIGGER", Width: 8},
		{Title: "ENQUEUED", Width: 20},
		{Title: "ERROR", Width: 20},
	}
	t := table.New(table.WithColumns(columns), table.WithFocused(true), table.WithHeight(20))
	return watchModel{db: db, repo: repo, table: t}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.fetch(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m watchModel) fetch() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var jobs []model.BuildJob
		repos, err := m.db.ListRepositories(ctx)
		if err != nil {
			return jobsMsg{err: err}
		}
		for _, r := range repos {
			if m.repo != "" && r.ID != m.repo {
				continue
			}
			targets, err := m.db.ListTargets(ctx, r.ID)
			if err != nil {
				return jobsMsg{err: err}
			}
			for _, t := range targets {
				recent, err := m.db.ListJobsForTarget(ctx, t.ID, 5)
				if err != nil {
					return jobsMsg{err: err}
				}
				jobs = append(jobs, recent...)
			}
		}
		return jobsMsg{jobs: jobs}
	}
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case tickMsg:
		return m, tea.Batch(m.fetch(), tick())
	case jobsMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		rows := make([]table.Row, 0, len(msg.jobs))
		for _, j := range msg.jobs {
			rows = append(rows, table.Row{
				j.ID, j.TargetID, string(j.Status), string(j.Trigger),
				j.EnqueuedAt.Format("15:04:05"), j.ErrorKind,
			})
		}
		m.table.SetRows(rows)
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m watchModel) View() string {
	header := headerStyle.Render("docfleet — recent builds (q to quit)")
	if m.err != nil {
		return fmt.Sprintf("%s\n\n%s\n", header, errStyle.Render(m.err.Error()))
	}
	return fmt.Sprintf("%s\n\n%s\n", header, m.table.View())
}
