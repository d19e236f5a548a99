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

// Package store defines the persistence contract for repositories, tracked
// targets and build jobs, and provides a Postgres-backed implementation.
// The contract's compare-and-set Dispatch method is what lets two docfleetd
// processes sharing one database race safely for the same queued job.
package store

import (
	"context"
	"errors"

	"github.com/jeffvincent/docfleet/internal/model"
)

// ErrNotFound is returned by lookups that find no matching row.
var ErrNotFound = errors.New("store: not found")

// ErrAlreadyDispatched is returned by Dispatch when the job is no longer in
// the queued state by the time the caller tries to claim it.
var ErrAlreadyDispatched = errors.New("store: job already dispatched or no longer queued")

// Store is the persistence contract the queue, executor and monitor depend
// on. Implementations must make Dispatch an atomic compare-and-set so
// concurrent workers (in-process or cross-process) never both claim the
// same job.
type Store interface {
	PutRepository(ctx context.Context, r model.Repository) error
	GetRepository(ctx context.Context, id string) (model.Repository, error)
	ListRepositories(ctx context.Context) ([]model.Repository, error)
	DeleteRepository(ctx context.Context, id string) error

	PutTarget(ctx context.Context, t model.Target) error
	GetTarget(ctx context.Context, id string) (model.Target, error)
	ListTargets(ctx context.Context, repositoryID string) ([]model.Target, error)
	ListAutoBuildTargets(ctx context.Context) ([]model.Target, error)
	DeleteTarget(ctx context.Context, id string) error

	// Enqueue inserts a new job in the queued state.
	Enqueue(ctx context.Context, j model.BuildJob) error
	// Dispatch atomically transitions a queued job to running, returning
	// ErrAlreadyDispatched if another worker won the race or the job was
	// cancelled before being claimed.
	Dispatch(ctx context.Context, jobID string) (model.BuildJob, error)
	// Finish records a job's terminal outcome.
	Finish(ctx context.Context, j model.BuildJob) error
	// RequestCancel marks a queued or running job for cancellation.
	RequestCancel(ctx context.Context, jobID string) error
	GetJob(ctx context.Context, jobID string) (model.BuildJob, error)
	// ListQueued returns queued jobs in FIFO dispatch order.
	ListQueued(ctx context.Context) ([]model.BuildJob, error)
	// ListRunning returns jobs currently in the running state, used on
	// startup to recognize interrupted work (see builderrors.InterruptedAtStartup).
	ListRunning(ctx context.Context) ([]model.BuildJob, error)
	ListJobsForTarget(ctx context.Context, targetID string, limit int) ([]model.BuildJob, error)
	// HasActiveJob reports whether targetID has a job in the queued or
	// running state, so the auto-build monitor doesn't enqueue a second
	// build while one is already in flight.
	HasActiveJob(ctx context.Context, targetID string) (bool, error)
}

var (
	_ Store = (*Postgres)(nil)
	_ Store = (*Memory)(nil)
)
