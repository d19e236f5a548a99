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

package executor

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/jeffvincent/docfleet/internal/builderrors"
	"github.com/jeffvincent/docfleet/internal/lock"
	"github.com/jeffvincent/docfleet/internal/model"
	"github.com/jeffvincent/docfleet/internal/provision"
	"github.com/jeffvincent/docfleet/internal/publish"
)

type fakeGitDriver struct {
	cloneErr     error
	checkoutErr  error
	commit       string
	manifestTOML string // written as pyproject.toml into dest on Clone, if set
}

func (f *fakeGitDriver) Clone(ctx context.Context, repo model.Repository, dest string) error {
	if f.cloneErr != nil {
		return f.cloneErr
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	if f.manifestTOML != "" {
		return os.WriteFile(filepath.Join(dest, "pyproject.toml"), []byte(f.manifestTOML), 0o644)
	}
	return nil
}

type fakeRepositoryUpdater struct {
	saved model.Repository
}

func (f *fakeRepositoryUpdater) PutRepository(ctx context.Context, r model.Repository) error {
	f.saved = r
	return nil
}

func (f *fakeGitDriver) Checkout(ctx context.Context, dir string, refKind model.RefKind, refName string) (string, error) {
	if f.checkoutErr != nil {
		return "", f.checkoutErr
	}
	return f.commit, nil
}

type fakeRefResolver struct{}

func (fakeRefResolver) RefsDocument(ctx context.Context, repositoryID string) (model.RefsDocument, error) {
	return model.RefsDocument{RepositoryID: repositoryID}, nil
}

func newTestExecutor(dataDir string, git GitDriver) *Executor {
	return &Executor{
		DataDir:         dataDir,
		GitDriver:       git,
		PublishStore:    publish.NewStore(dataDir, lock.NewRegistry()),
		PublishLocks:    lock.NewRegistry(),
		Refs:            fakeRefResolver{},
		DefaultBackend:  "fast",
		Logger:          zap.NewNop(),
		DocGenCommand: func(interpreter, docsDir, outDir string) *exec.Cmd {
			return exec.Command("true")
		},
	}
}

var _ = Describe("Executor", func() {
	var dataDir string
	var repo model.Repository
	var target model.Target
	var job model.BuildJob

	BeforeEach(func() {
		dataDir = GinkgoT().TempDir()
		repo = model.Repository{ID: "repo-1", DocsSubpath: "docs"}
		target = model.Target{ID: "target-1", RepositoryID: "repo-1", RefKind: model.RefBranch, RefName: "main"}
		job = model.BuildJob{ID: "job-1", TargetID: "target-1"}

		_, _ = provision.Resolve("fast") // ensure backends package init() has run
	})

	It("fails at the clone stage with the git driver's classified error kind", func() {
		git := &fakeGitDriver{cloneErr: builderrors.New(builderrors.AuthMaterialInvalid, "clone", context.DeadlineExceeded)}
		ex := newTestExecutor(dataDir, git)

		result := ex.Run(context.Background(), job, repo, target)

		Expect(result.Status).To(Equal(model.BuildFailed))
		Expect(result.ErrorKind).To(Equal(string(builderrors.AuthMaterialInvalid)))
	})

	It("fails at the checkout stage when the ref cannot be resolved", func() {
		git := &fakeGitDriver{checkoutErr: builderrors.New(builderrors.RefNotFound, "checkout", context.DeadlineExceeded)}
		ex := newTestExecutor(dataDir, git)

		result := ex.Run(context.Background(), job, repo, target)

		Expect(result.Status).To(Equal(model.BuildFailed))
		Expect(result.ErrorKind).To(Equal(string(builderrors.RefNotFound)))
	})

	It("stops before cloning when the job is already marked cancelled", func() {
		git := &fakeGitDriver{}
		ex := newTestExecutor(dataDir, git)
		job.CancelRequested = true

		result := ex.Run(context.Background(), job, repo, target)

		Expect(result.Status).To(Equal(model.BuildCancelled))
	})

	It("removes the workspace directory once the build reaches a terminal state", func() {
		git := &fakeGitDriver{cloneErr: builderrors.New(builderrors.AuthMaterialInvalid, "clone", context.DeadlineExceeded)}
		ex := newTestExecutor(dataDir, git)

		result := ex.Run(context.Background(), job, repo, target)

		Expect(result.Status).To(Equal(model.BuildFailed))
		Expect(result.WorkspacePath).NotTo(BeEmpty())
		_, err := os.Stat(result.WorkspacePath)
		Expect(os.IsNotExist(err)).To(BeTrue())
	})

	It("propagates manifest metadata to the repository when the target is the main target", func() {
		git := &fakeGitDriver{commit: "abc123", manifestTOML: `
[project]
name = "widgetlib"
version = "3.1.0"
description = "Widgets for humans"

[project.urls]
homepage = "https://widgetlib.example.com"
`}
		ex := newTestExecutor(dataDir, git)
		repoStore := &fakeRepositoryUpdater{}
		ex.Repos = repoStore
		repo.MainTargetID = target.ID

		result := ex.Run(context.Background(), job, repo, target)

		Expect(result.Status).To(Equal(model.BuildSucceeded))
		Expect(repoStore.saved.Metadata).To(Equal(model.RepositoryMetadata{
			Name:     "widgetlib",
			Version:  "3.1.0",
			Summary:  "Widgets for humans",
			Homepage: "https://widgetlib.example.com",
		}))
	})

	It("does not propagate metadata when the target isn't the repository's main target", func() {
		git := &fakeGitDriver{commit: "abc123", manifestTOML: `
[project]
name = "widgetlib"
version = "3.1.0"
`}
		ex := newTestExecutor(dataDir, git)
		repoStore := &fakeRepositoryUpdater{}
		ex.Repos = repoStore
		repo.MainTargetID = "some-other-target"

		result := ex.Run(context.Background(), job, repo, target)

		Expect(result.Status).To(Equal(model.BuildSucceeded))
		Expect(repoStore.saved).To(Equal(model.Repository{}))
	})

	It("resolves the env backend override on the target ahead of the daemon default", func() {
		ex := newTestExecutor(dataDir, &fakeGitDriver{})
		ex.DefaultBackend = "fast"
		target.EnvBackendOverride = model.EnvBackendPinned

		Expect(ex.resolveBackend(target)).To(Equal("pinned"))
	})

	It("falls back to the daemon default backend when the target has no override", func() {
		ex := newTestExecutor(dataDir, &fakeGitDriver{})
		ex.DefaultBackend = "fast"

		Expect(ex.resolveBackend(target)).To(Equal("fast"))
	})
})
