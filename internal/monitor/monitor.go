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

// Package monitor periodically sweeps auto-build-enabled targets, checking
// each one's remote HEAD against its last built commit and enqueuing a
// build only when they differ. Sweeps are single-flighted: Run performs them
// one at a time. When a sweep outlasts Interval the ticker keeps one pending
// tick, so the next sweep starts as soon as the slow one ends; further ticks
// that fire meanwhile are dropped rather than stacking sweeps.
package monitor

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jeffvincent/docfleet/internal/gitdriver"
	"github.com/jeffvincent/docfleet/internal/metrics"
	"github.com/jeffvincent/docfleet/internal/model"
)

// Enqueuer is the subset of queue.Queue the monitor needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, job model.BuildJob) error
}

// TargetSource supplies the set of targets to sweep, their owning repos, and
// whether a target already has a queued or running job.
type TargetSource interface {
	ListAutoBuildTargets(ctx context.Context) ([]model.Target, error)
	GetRepository(ctx context.Context, id string) (model.Repository, error)
	HasActiveJob(ctx context.Context, targetID string) (bool, error)
}

// IDGenerator produces a new build job ID. Abstracted so tests get
// deterministic IDs instead of depending on google/uuid output.
type IDGenerator func() string

// RemoteHeadResolver is the subset of *gitdriver.Driver the monitor needs,
// narrowed to an interface so tests can fake remote HEAD lookups.
type RemoteHeadResolver interface {
	RemoteHead(ctx context.Context, repo model.Repository, refKind model.RefKind, refName string) (string, error)
}

var _ RemoteHeadResolver = (*gitdriver.Driver)(nil)

// Monitor runs the auto-build sweep loop.
type Monitor struct {
	Targets  TargetSource
	Queue    Enqueuer
	Git      RemoteHeadResolver
	Interval time.Duration
	NewJobID IDGenerator
	Metrics  *metrics.Collectors
	Logger   *zap.Logger

	inFlight int32
}

// Run blocks, sweeping every Interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.trySweep(ctx)
		}
	}
}

func (m *Monitor) trySweep(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&m.inFlight, 0, 1) {
		m.Logger.Warn("skipping auto-build sweep, previous sweep still running")
		return
	}
	defer atomic.StoreInt32(&m.inFlight, 0)

	start := time.Now()
	enqueued, err := m.Sweep(ctx)
	if err != nil {
		m.Logger.Error("auto-build sweep failed", zap.Error(err))
	}
	if m.Metrics != nil {
		m.Metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}
	if enqueued > 0 {
		m.Logger.Info("auto-build sweep enqueued builds", zap.Int("count", enqueued))
	}
}

// Sweep runs one pass over every auto-build target, enqueuing a build for
// each whose remote HEAD has moved past its last built commit. It's
// exported and can be called directly, outside Run; a direct call does not
// take the single-flight guard that Run's sweeps take.
func (m *Monitor) Sweep(ctx context.Context) (int, error) {
	targets, err := m.Targets.ListAutoBuildTargets(ctx)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, t := range targets {
		active, err := m.Targets.HasActiveJob(ctx, t.ID)
		if err != nil {
			m.Logger.Error("check active job for auto-build target", zap.String("target_id", t.ID), zap.Error(err))
			continue
		}
		if active {
			continue // a build for this target is already queued or running
		}

		repo, err := m.Targets.GetRepository(ctx, t.RepositoryID)
		if err != nil {
			m.Logger.Error("resolve repository for auto-build target", zap.String("target_id", t.ID), zap.Error(err))
			continue
		}

		head, err := m.Git.RemoteHead(ctx, repo, t.RefKind, t.RefName)
		if err != nil {
			m.Logger.Warn("remote head lookup failed during sweep", zap.String("target_id", t.ID), zap.Error(err))
			continue
		}

		if head == t.LastBuiltCommit {
			continue
		}

		job := model.BuildJob{
			ID:         m.NewJobID(),
			TargetID:   t.ID,
			Trigger:    model.TriggerAuto,
			EnqueuedAt: time.Now(),
		}
		if err := m.Queue.Enqueue(ctx, job); err != nil {
			m.Logger.Error("enqueue auto-build job", zap.String("target_id", t.ID), zap.Error(err))
			continue
		}
		enqueued++
	}
	return enqueued, nil
}
