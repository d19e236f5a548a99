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

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jeffvincent/docfleet/internal/model"
)

// Memory is an in-process Store implementation used by the queue test
// suite so it doesn't need a live Postgres instance to exercise dispatch
// races and cancellation.
type Memory struct {
	mu    sync.Mutex
	repos map[string]model.Repository
	tgts  map[string]model.Target
	jobs  map[string]model.BuildJob
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		repos: make(map[string]model.Repository),
		tgts:  make(map[string]model.Target),
		jobs:  make(map[string]model.BuildJob),
	}
}

func (m *Memory) PutRepository(_ context.Context, r model.Repository) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repos[r.ID] = r
	return nil
}

func (m *Memory) GetRepository(_ context.Context, id string) (model.Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.repos[id]
	if !ok {
		return model.Repository{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) ListRepositories(_ context.Context) ([]model.Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Repository, 0, len(m.repos))
	for _, r := range m.repos {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) DeleteRepository(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.repos, id)
	return nil
}

func (m *Memory) PutTarget(_ context.Context, t model.Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tgts[t.ID] = t
	return nil
}

func (m *Memory) GetTarget(_ context.Context, id string) (model.Target, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tgts[id]
	if !ok {
		return model.Target{}, ErrNotFound
	}
	return t, nil
}

func (m *Memory) ListTargets(_ context.Context, repositoryID string) ([]model.Target, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Target
	for _, t := range m.tgts {
		if t.RepositoryID == repositoryID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RefName < out[j].RefName })
	return out, nil
}

func (m *Memory) ListAutoBuildTargets(_ context.Context) ([]model.Target, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Target
	for _, t := range m.tgts {
		if t.AutoBuild {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) DeleteTarget(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tgts, id)
	return nil
}

func (m *Memory) Enqueue(_ context.Context, j model.BuildJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j.Status = model.BuildQueued
	m.jobs[j.ID] = j
	return nil
}

func (m *Memory) Dispatch(_ context.Context, jobID string) (model.BuildJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return model.BuildJob{}, ErrNotFound
	}
	if j.Status != model.BuildQueued || j.CancelRequested {
		return model.BuildJob{}, ErrAlreadyDispatched
	}
	j.Status = model.BuildRunning
	m.jobs[jobID] = j
	return j, nil
}

func (m *Memory) Finish(_ context.Context, j model.BuildJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[j.ID] = j
	return nil
}

func (m *Memory) RequestCancel(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	if j.Status.IsTerminal() {
		return nil
	}
	if j.Status == model.BuildQueued {
		// Never dispatched, so there's no worker to observe cancel_requested;
		// go straight to the terminal state instead of leaving it queued forever.
		j.Status = model.BuildCancelled
		j.EndedAt = time.Now()
		m.jobs[jobID] = j
		return nil
	}
	j.CancelRequested = true
	m.jobs[jobID] = j
	return nil
}

func (m *Memory) GetJob(_ context.Context, jobID string) (model.BuildJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return model.BuildJob{}, ErrNotFound
	}
	return j, nil
}

func (m *Memory) ListQueued(_ context.Context) ([]model.BuildJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.BuildJob
	for _, j := range m.jobs {
		if j.Status == model.BuildQueued {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EnqueuedAt.Before(out[j].EnqueuedAt) })
	return out, nil
}

func (m *Memory) ListRunning(_ context.Context) ([]model.BuildJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.BuildJob
	for _, j := range m.jobs {
		if j.Status == model.BuildRunning {
			out = append(out, j)
		}
	}
	return out, nil
}

func (m *Memory) HasActiveJob(_ context.Context, targetID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.TargetID == targetID && !j.Status.IsTerminal() {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) ListJobsForTarget(_ context.Context, targetID string, limit int) ([]model.BuildJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.BuildJob
	for _, j := range m.jobs {
		if j.TargetID == targetID {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EnqueuedAt.After(out[j].EnqueuedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
