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

package monitor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/jeffvincent/docfleet/internal/model"
)

type fakeTargetSource struct {
	targets   []model.Target
	repos     map[string]model.Repository
	activeIDs map[string]bool
}

func (f fakeTargetSource) ListAutoBuildTargets(context.Context) ([]model.Target, error) {
	return f.targets, nil
}

func (f fakeTargetSource) GetRepository(_ context.Context, id string) (model.Repository, error) {
	return f.repos[id], nil
}

func (f fakeTargetSource) HasActiveJob(_ context.Context, targetID string) (bool, error) {
	return f.activeIDs[targetID], nil
}

type fakeRemoteHead struct {
	heads map[string]string
}

func (f fakeRemoteHead) RemoteHead(_ context.Context, repo model.Repository, _ model.RefKind, refName string) (string, error) {
	return f.heads[repo.ID+"/"+refName], nil
}

type recordingEnqueuer struct {
	jobs []model.BuildJob
}

func (r *recordingEnqueuer) Enqueue(_ context.Context, job model.BuildJob) error {
	r.jobs = append(r.jobs, job)
	return nil
}

func TestSweep_EnqueuesOnlyTargetsWithNewCommits(t *testing.T) {
	targets := fakeTargetSource{
		targets: []model.Target{
			{ID: "t1", RepositoryID: "r1", RefName: "main", LastBuiltCommit: "abc"},
			{ID: "t2", RepositoryID: "r1", RefName: "dev", LastBuiltCommit: "same"},
		},
		repos: map[string]model.Repository{"r1": {ID: "r1"}},
	}
	git := fakeRemoteHead{heads: map[string]string{
		"r1/main": "def", // moved
		"r1/dev":  "same", // unchanged
	}}
	enq := &recordingEnqueuer{}

	m := &Monitor{
		Targets:  targets,
		Queue:    enq,
		Git:      git,
		NewJobID: func() string { return "job-1" },
		Logger:   zap.NewNop(),
	}

	n, err := m.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("Sweep() enqueued = %d, want 1", n)
	}
	if len(enq.jobs) != 1 || enq.jobs[0].TargetID != "t1" {
		t.Fatalf("enqueued jobs = %+v, want exactly target t1", enq.jobs)
	}
	if enq.jobs[0].Trigger != model.TriggerAuto {
		t.Errorf("trigger = %q, want %q", enq.jobs[0].Trigger, model.TriggerAuto)
	}
}

func TestSweep_SkipsTargetsWithAnActiveJob(t *testing.T) {
	targets := fakeTargetSource{
		targets: []model.Target{
			{ID: "t1", RepositoryID: "r1", RefName: "main", LastBuiltCommit: "abc"},
		},
		repos:     map[string]model.Repository{"r1": {ID: "r1"}},
		activeIDs: map[string]bool{"t1": true},
	}
	git := fakeRemoteHead{heads: map[string]string{"r1/main": "def"}} // moved, but already in flight
	enq := &recordingEnqueuer{}

	m := &Monitor{
		Targets:  targets,
		Queue:    enq,
		Git:      git,
		NewJobID: func() string { return "job-1" },
		Logger:   zap.NewNop(),
	}

	n, err := m.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if n != 0 {
		t.Fatalf("Sweep() enqueued = %d, want 0 for a target with an active job", n)
	}
	if len(enq.jobs) != 0 {
		t.Fatalf("enqueued jobs = %+v, want none", enq.jobs)
	}
}

func TestTrySweep_SkipsWhilePreviousSweepInFlight(t *testing.T) {
	blocker := make(chan struct{})
	var calls int32

	enq := &recordingEnqueuer{}
	m := &Monitor{
		Targets: fakeTargetSource{
			targets: []model.Target{{ID: "t1", RepositoryID: "r1", RefName: "main", LastBuiltCommit: "abc"}},
			repos:   map[string]model.Repository{"r1": {ID: "r1"}},
		},
		Queue:   enq,
		Git:     fakeRemoteHead{heads: map[string]string{"r1/main": "def"}}, // moved, so a real sweep would enqueue
		NewJobID: func() string { return "job" },
		Logger:  zap.NewNop(),
	}

	// Simulate an in-flight sweep by holding the inFlight flag directly.
	atomic.StoreInt32(&m.inFlight, 1)
	go func() {
		<-blocker
		atomic.StoreInt32(&m.inFlight, 0)
	}()

	m.trySweep(context.Background()) // should skip, inFlight already 1
	if len(enq.jobs) != 0 {
		t.Fatalf("trySweep enqueued %d jobs while a sweep was in flight, want 0", len(enq.jobs))
	}
	atomic.AddInt32(&calls, 1)
	close(blocker)

	time.Sleep(10 * time.Millisecond)
	if atomic.LoadInt32(&m.inFlight) != 0 {
		t.Fatal("inFlight flag was not released by the simulated sweep")
	}
}
