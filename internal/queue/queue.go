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

// Package queue runs a bounded pool of workers pulling queued build jobs
// from a store.Store and handing them to an executor. Dispatch enforces
// mutual exclusion per (repository, target) via an internal/lock.Registry
// so two workers never build the same target concurrently, and a buffered
// wakeup channel lets Enqueue nudge idle workers without polling on a tight
// timer.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeffvincent/docfleet/internal/lock"
	"github.com/jeffvincent/docfleet/internal/metrics"
	"github.com/jeffvincent/docfleet/internal/model"
	"github.com/jeffvincent/docfleet/internal/store"
	"github.com/jeffvincent/docfleet/internal/workspace"
)

// Runner executes a single dispatched build job to completion.
type Runner interface {
	Run(ctx context.Context, job model.BuildJob, repo model.Repository, target model.Target) model.BuildJob
}

// Notifier optionally broadcasts "a job was enqueued" across processes
// sharing one store, so a sibling docfleetd picks up work immediately
// instead of waiting for its own poll interval.
type Notifier interface {
	Notify(ctx context.Context) error
	Subscribe(ctx context.Context) (<-chan struct{}, func())
}

// Queue owns the worker pool and dispatch loop.
type Queue struct {
	Store       store.Store
	Runner      Runner
	Locks       *lock.Registry
	Metrics     *metrics.Collectors
	Logger      *zap.Logger
	WorkerCount int
	PollInterval time.Duration
	Notifier    Notifier

	wakeup chan struct{}
	cancels sync.Map // jobID -> context.CancelFunc, for in-flight jobs on this process
	wg      sync.WaitGroup
}

// New returns a Queue ready to Start.
func New(s store.Store, r Runner, locks *lock.Registry, m *metrics.Collectors, logger *zap.Logger, workerCount int) *Queue {
	return &Queue{
		Store:        s,
		Runner:       r,
		Locks:        locks,
		Metrics:      m,
		Logger:       logger,
		WorkerCount:  workerCount,
		PollInterval: time.Second,
		wakeup:       make(chan struct{}, 1),
	}
}

func (q *Queue) nudge() {
	select {
	case q.wakeup <- struct{}{}:
	default:
	}
}

// Enqueue inserts a new queued job and wakes an idle worker.
func (q *Queue) Enqueue(ctx context.Context, job model.BuildJob) error {
	job.Status = model.BuildQueued
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}
	if err := q.Store.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("enqueue job %s: %w", job.ID, err)
	}
	if q.Metrics != nil {
		q.Metrics.QueueDepth.Inc()
	}
	q.nudge()
	if q.Notifier != nil {
		_ = q.Notifier.Notify(ctx)
	}
	return nil
}

// RequestCancel marks job for cancellation. If it's currently running on
// this process, its context is cancelled immediately; otherwise the next
// dispatch attempt (on any process) observes the cancel flag and skips it.
func (q *Queue) RequestCancel(ctx context.Context, jobID string) error {
	if v, ok := q.cancels.Load(jobID); ok {
		v.(context.CancelFunc)()
	}
	return q.Store.RequestCancel(ctx, jobID)
}

// Start launches WorkerCount goroutines and returns immediately. Stop them
// by cancelling ctx.
func (q *Queue) Start(ctx context.Context, lookup TargetLookup) {
	if q.Notifier != nil {
		ch, unsubscribe := q.Notifier.Subscribe(ctx)
		go func() {
			defer unsubscribe()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ch:
					q.nudge()
				}
			}
		}()
	}

	for i := 0; i < q.WorkerCount; i++ {
		q.wg.Add(1)
		go q.workerLoop(ctx, lookup)
	}
}

// Wait blocks until every worker goroutine has exited, which happens once
// their context is cancelled and any in-flight job finishes.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// TargetLookup resolves the repository and target a queued job belongs to,
// so the worker loop can hand the executor everything it needs without the
// queue package depending on the full store surface for reads.
type TargetLookup interface {
	Repository(ctx context.Context, id string) (model.Repository, error)
	Target(ctx context.Context, id string) (model.Target, error)
}

func (q *Queue) workerLoop(ctx context.Context, lookup TargetLookup) {
	defer q.wg.Done()
	ticker := time.NewTicker(q.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.wakeup:
		case <-ticker.C:
		}

		for q.dispatchOne(ctx, lookup) {
			if ctx.Err() != nil {
				return
			}
		}
	}
}

// dispatchOne claims and runs at most one queued job, returning true if it
// found work (so the worker loop immediately tries again for the next one).
func (q *Queue) dispatchOne(ctx context.Context, lookup TargetLookup) bool {
	queued, err := q.Store.ListQueued(ctx)
	if err != nil {
		q.Logger.Error("list queued jobs", zap.Error(err))
		return false
	}
	if q.Metrics != nil {
		q.Metrics.QueueDepth.Set(float64(len(queued)))
	}

	for _, candidate := range queued {
		target, err := lookup.Target(ctx, candidate.TargetID)
		if err != nil {
			q.Logger.Error("resolve target for queued job", zap.String("job_id", candidate.ID), zap.Error(err))
			continue
		}

		// Dispatch exclusion uses its own key space: publish.Store.Swap takes
		// the plain "<repo>/<slug>" key from the same registry while this
		// one is held, and the registry's mutexes are not reentrant.
		key := "dispatch:" + target.RepositoryID + "/" + target.Slug()
		unlock, ok := q.Locks.TryLock(key)
		if !ok {
			continue // another worker already owns this (repo, target) pair
		}

		job, err := q.Store.Dispatch(ctx, candidate.ID)
		if err != nil {
			unlock()
			if err == store.ErrAlreadyDispatched {
				continue
			}
			q.Logger.Error("dispatch job", zap.String("job_id", candidate.ID), zap.Error(err))
			continue
		}

		q.runDispatched(ctx, job, target, lookup, unlock)
		return true
	}
	return false
}

func (q *Queue) runDispatched(ctx context.Context, job model.BuildJob, target model.Target, lookup TargetLookup, unlock func()) {
	defer unlock()

	repo, err := lookup.Repository(ctx, target.RepositoryID)
	if err != nil {
		job.Status = model.BuildFailed
		q.finish(ctx, job, target)
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	q.cancels.Store(job.ID, cancel)
	defer func() {
		cancel()
		q.cancels.Delete(job.ID)
	}()

	if q.Metrics != nil {
		q.Metrics.ActiveWorkers.Inc()
		defer q.Metrics.ActiveWorkers.Dec()
	}

	result := q.Runner.Run(runCtx, job, repo, target)
	q.finish(ctx, result, target)
}

// finish records a job's terminal outcome and, on success, updates the
// target's build bookkeeping (last_built_commit, latest_successful_build_id)
// so the next auto-build sweep and refs.json reflect the new state.
func (q *Queue) finish(ctx context.Context, job model.BuildJob, target model.Target) {
	if job.Status == model.BuildSucceeded {
		target.LastBuiltCommit = job.ResolvedCommit
		target.LatestSuccessfulBuild = job.ID
		if err := q.Store.PutTarget(ctx, target); err != nil {
			q.Logger.Error("record target build bookkeeping", zap.String("target_id", target.ID), zap.Error(err))
		}
	}
	if err := q.Store.Finish(ctx, job); err != nil {
		q.Logger.Error("record job outcome", zap.String("job_id", job.ID), zap.Error(err))
	}
	if q.Metrics != nil {
		q.Metrics.BuildsTotal.WithLabelValues(string(job.Status), string(job.Trigger)).Inc()
		q.Metrics.BuildDuration.WithLabelValues(string(job.Status)).Observe(job.Duration().Seconds())
	}
}

// RecoverInterrupted finds jobs left in the running state by a prior
// process that didn't shut down cleanly, marks them failed with
// builderrors.InterruptedAtStartup, and deletes their orphaned workspace
// directories (the crashed process never reached the normal cleanup step).
func RecoverInterrupted(ctx context.Context, s store.Store, dataDir, interruptedKind string) (int, error) {
	running, err := s.ListRunning(ctx)
	if err != nil {
		return 0, fmt.Errorf("list running jobs: %w", err)
	}
	for _, j := range running {
		j.Status = model.BuildFailed
		j.ErrorKind = interruptedKind
		j.EndedAt = time.Now()
		if err := s.Finish(ctx, j); err != nil {
			return 0, fmt.Errorf("finish interrupted job %s: %w", j.ID, err)
		}
		if err := workspace.Open(dataDir, j.ID).Remove(); err != nil {
			return 0, fmt.Errorf("remove orphaned workspace for job %s: %w", j.ID, err)
		}
	}
	return len(running), nil
}
