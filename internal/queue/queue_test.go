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

package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/jeffvincent/docfleet/internal/lock"
	"github.com/jeffvincent/docfleet/internal/model"
	"github.com/jeffvincent/docfleet/internal/store"
)

type fakeLookup struct {
	repos   map[string]model.Repository
	targets map[string]model.Target
}

func (f fakeLookup) Repository(_ context.Context, id string) (model.Repository, error) {
	r, ok := f.repos[id]
	if !ok {
		return model.Repository{}, store.ErrNotFound
	}
	return r, nil
}

func (f fakeLookup) Target(_ context.Context, id string) (model.Target, error) {
	t, ok := f.targets[id]
	if !ok {
		return model.Target{}, store.ErrNotFound
	}
	return t, nil
}

type recordingRunner struct {
	mu          sync.Mutex
	concurrent  int32
	maxConcurrent int32
	runCount    int32
	delay       time.Duration
	result      model.BuildStatus
}

func (r *recordingRunner) Run(ctx context.Context, job model.BuildJob, repo model.Repository, target model.Target) model.BuildJob {
	cur := atomic.AddInt32(&r.concurrent, 1)
	defer atomic.AddInt32(&r.concurrent, -1)

	r.mu.Lock()
	if cur > r.maxConcurrent {
		r.maxConcurrent = cur
	}
	r.mu.Unlock()
	atomic.AddInt32(&r.runCount, 1)

	select {
	case <-time.After(r.delay):
	case <-ctx.Done():
		job.Status = model.BuildCancelled
		return job
	}

	status := r.result
	if status == "" {
		status = model.BuildSucceeded
	}
	job.Status = status
	job.EndedAt = time.Now()
	return job
}

var _ = Describe("Queue", func() {
	var (
		s       *store.Memory
		locks   *lock.Registry
		lookup  fakeLookup
		target1 model.Target
		repo1   model.Repository
	)

	BeforeEach(func() {
		s = store.NewMemory()
		locks = lock.NewRegistry()
		repo1 = model.Repository{ID: "repo-1", Name: "repo-1"}
		target1 = model.Target{ID: "target-1", RepositoryID: "repo-1", RefKind: model.RefBranch, RefName: "main"}
		lookup = fakeLookup{
			repos:   map[string]model.Repository{"repo-1": repo1},
			targets: map[string]model.Target{"target-1": target1},
		}
		Expect(s.PutRepository(context.Background(), repo1)).To(Succeed())
		Expect(s.PutTarget(context.Background(), target1)).To(Succeed())
	})

	It("dispatches a queued job and records a terminal status", func() {
		runner := &recordingRunner{result: model.BuildSucceeded}
		q := New(s, runner, locks, nil, zap.NewNop(), 2)
		q.PollInterval = 10 * time.Millisecond

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		q.Start(ctx, lookup)

		Expect(q.Enqueue(context.Background(), model.BuildJob{ID: "job-1", TargetID: "target-1"})).To(Succeed())

		Eventually(func() model.BuildStatus {
			j, err := s.GetJob(context.Background(), "job-1")
			if err != nil {
				return ""
			}
			return j.Status
		}, time.Second, 5*time.Millisecond).Should(Equal(model.BuildSucceeded))
	})

	It("never runs two jobs for the same (repository, target) concurrently", func() {
		runner := &recordingRunner{result: model.BuildSucceeded, delay: 50 * time.Millisecond}
		q := New(s, runner, locks, nil, zap.NewNop(), 4)
		q.PollInterval = 5 * time.Millisecond

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		q.Start(ctx, lookup)

		for i := 0; i < 3; i++ {
			Expect(s.Enqueue(context.Background(), model.BuildJob{
				ID: "job-" + string(rune('a'+i)), TargetID: "target-1", EnqueuedAt: time.Now(),
			})).To(Succeed())
		}
		q.nudge()

		Eventually(func() int32 {
			return atomic.LoadInt32(&runner.runCount)
		}, 2*time.Second, 10*time.Millisecond).Should(BeNumerically(">=", 3))

		Expect(atomic.LoadInt32(&runner.maxConcurrent)).To(Equal(int32(1)))
	})

	It("cancels an in-flight job when RequestCancel is called", func() {
		runner := &recordingRunner{delay: 2 * time.Second}
		q := New(s, runner, locks, nil, zap.NewNop(), 1)
		q.PollInterval = 5 * time.Millisecond

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		q.Start(ctx, lookup)

		Expect(q.Enqueue(context.Background(), model.BuildJob{ID: "job-x", TargetID: "target-1"})).To(Succeed())

		Eventually(func() int32 {
			return atomic.LoadInt32(&runner.concurrent)
		}, time.Second, 5*time.Millisecond).Should(Equal(int32(1)))

		Expect(q.RequestCancel(context.Background(), "job-x")).To(Succeed())

		Eventually(func() model.BuildStatus {
			j, err := s.GetJob(context.Background(), "job-x")
			if err != nil {
				return ""
			}
			return j.Status
		}, time.Second, 5*time.Millisecond).Should(Equal(model.BuildCancelled))
	})
})

var _ = Describe("RecoverInterrupted", func() {
	It("marks running jobs as failed with the interrupted-at-startup kind", func() {
		s := store.NewMemory()
		repo := model.Repository{ID: "repo-1"}
		target := model.Target{ID: "target-1", RepositoryID: "repo-1"}
		Expect(s.PutRepository(context.Background(), repo)).To(Succeed())
		Expect(s.PutTarget(context.Background(), target)).To(Succeed())
		Expect(s.Enqueue(context.Background(), model.BuildJob{ID: "job-1", TargetID: "target-1"})).To(Succeed())
		_, err := s.Dispatch(context.Background(), "job-1")
		Expect(err).NotTo(HaveOccurred())

		n, err := RecoverInterrupted(context.Background(), s, GinkgoT().TempDir(), "interrupted_at_startup")
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))

		j, err := s.GetJob(context.Background(), "job-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(j.Status).To(Equal(model.BuildFailed))
		Expect(j.ErrorKind).To(Equal("interrupted_at_startup"))
	})
})
