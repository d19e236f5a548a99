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

// Package executor runs one build job through its linear pipeline: allocate
// workspace, clone, checkout, provision an environment, generate docs,
// inject the navigation snippet, publish, and finalize. Each stage's
// failure is tagged with the builderrors.Kind it produced, mirroring the
// named reconcile-step-with-typed-failure shape used elsewhere for
// multi-stage state machines.
package executor

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/jeffvincent/docfleet/internal/builderrors"
	"github.com/jeffvincent/docfleet/internal/gitdriver"
	"github.com/jeffvincent/docfleet/internal/lock"
	"github.com/jeffvincent/docfleet/internal/logging"
	"github.com/jeffvincent/docfleet/internal/manifest"
	"github.com/jeffvincent/docfleet/internal/model"
	"github.com/jeffvincent/docfleet/internal/provision"
	"github.com/jeffvincent/docfleet/internal/publish"
	"github.com/jeffvincent/docfleet/internal/snippet"
	"github.com/jeffvincent/docfleet/internal/workspace"
)

// errBuildCancelled is the sentinel checkCancelled returns; fail() would
// otherwise tag every cancellation as a doc_build_failed error, so Run
// checks for it directly and routes to the cancelled terminal state instead.
var errBuildCancelled = errors.New("build cancelled")

// Stage names, used both for logging and as builderrors.BuildError.Stage.
const (
	StageAllocateWorkspace = "allocate_workspace"
	StageClone             = "clone"
	StageCheckout          = "checkout"
	StageProvision         = "provision"
	StageDocBuild          = "doc_build"
	StageInjectSnippet     = "inject_snippet"
	StagePublish           = "publish"
	StageFinalize          = "finalize"
)

// RefResolver builds the model.RefsDocument for a repository's tracked
// targets, used to render the navigation snippet. The executor doesn't own
// target bookkeeping, so it depends on this narrow interface instead of a
// full store.
type RefResolver interface {
	RefsDocument(ctx context.Context, repositoryID string) (model.RefsDocument, error)
}

// GitDriver is the subset of *gitdriver.Driver the executor needs, narrowed
// to an interface so tests can substitute a fake without shelling out to a
// real git binary.
type GitDriver interface {
	Clone(ctx context.Context, repo model.Repository, dest string) error
	Checkout(ctx context.Context, dir string, refKind model.RefKind, refName string) (string, error)
}

var _ GitDriver = (*gitdriver.Driver)(nil)

// RepositoryUpdater persists repository metadata propagated from a
// successful build of the repository's designated main target.
type RepositoryUpdater interface {
	PutRepository(ctx context.Context, r model.Repository) error
}

// Executor runs build jobs end to end.
type Executor struct {
	DataDir         string
	GitDriver       GitDriver
	PublishStore    *publish.Store
	PublishLocks    *lock.Registry
	Refs            RefResolver
	Repos           RepositoryUpdater
	DefaultBackend  string
	DefaultPyConstraint string
	DocBuildTimeout time.Duration
	Logger          *zap.Logger

	// DocGenCommand builds the command run to generate documentation from
	// the checked-out source at srcDir/docsSubpath into outDir, using the
	// provisioned interpreter. Overridable in tests; defaults to invoking
	// sphinx-build the way a provisioned docs extra would provide it.
	DocGenCommand func(interpreter, docsDir, outDir string) *exec.Cmd
}

func defaultDocGenCommand(interpreter, docsDir, outDir string) *exec.Cmd {
	return exec.Command(interpreter, "-m", "sphinx", "-b", "html", docsDir, outDir)
}

// Run executes job's pipeline in-place, mutating and returning its final
// state. The caller is responsible for persisting the job result; Run itself
// only touches the filesystem and the publish store, plus Repos when a
// build of the repository's main target propagates metadata.
func (e *Executor) Run(ctx context.Context, job model.BuildJob, repo model.Repository, target model.Target) model.BuildJob {
	logger := logging.ForBuild(e.Logger, job.ID, target.ID, repo.ID)
	job.StartedAt = timeNow()

	ws, err := workspace.Create(e.DataDir, job.ID)
	if err != nil {
		return e.fail(job, builderrors.New(builderrors.EnvProvisionFailed, StageAllocateWorkspace, err))
	}
	job.WorkspacePath = ws.Root
	job.LogPath = ws.LogPath()

	// The workspace's src/env/out trees are scratch space for this run only;
	// they're deleted once the job reaches a terminal state regardless of
	// outcome. The log file lives outside ws.Root and survives this.
	defer func() {
		if err := ws.Remove(); err != nil {
			logger.Warn("remove workspace", zap.Error(err))
		}
	}()

	if err := checkCancelled(ctx, job); err != nil {
		return e.cancel(job)
	}

	stageLog := logging.ForStage(logger, StageClone)
	stageLog.Info("cloning repository")
	if err := e.GitDriver.Clone(ctx, repo, ws.SrcDir()); err != nil {
		return e.fail(job, err)
	}

	if err := checkCancelled(ctx, job); err != nil {
		return e.cancel(job)
	}

	stageLog = logging.ForStage(logger, StageCheckout)
	commit, err := e.GitDriver.Checkout(ctx, ws.SrcDir(), target.RefKind, target.RefName)
	if err != nil {
		return e.fail(job, err)
	}
	job.ResolvedCommit = commit
	stageLog.Info("checked out ref", zap.String("commit", commit))

	if err := checkCancelled(ctx, job); err != nil {
		return e.cancel(job)
	}

	stageLog = logging.ForStage(logger, StageProvision)
	backendName := e.resolveBackend(target)
	backend, err := provision.Resolve(backendName)
	if err != nil {
		return e.fail(job, builderrors.New(builderrors.EnvProvisionFailed, StageProvision, err))
	}
	manifestReq, err := manifest.Load(ws.SrcDir())
	if err != nil {
		return e.fail(job, builderrors.New(builderrors.EnvProvisionFailed, StageProvision, err))
	}
	req := provision.RequirementsFromManifest(ws.Root, manifestReq, e.DefaultPyConstraint)
	result, err := backend.Provision(ctx, req)
	if err != nil {
		return e.fail(job, builderrors.New(builderrors.EnvProvisionFailed, StageProvision, err))
	}
	stageLog.Info("provisioned environment", zap.String("backend", backendName), zap.String("interpreter_version", result.ResolvedVersion))

	if err := checkCancelled(ctx, job); err != nil {
		return e.cancel(job)
	}

	stageLog = logging.ForStage(logger, StageDocBuild)
	docsDir := filepath.Join(ws.SrcDir(), repo.DocsSubpath)
	docGenCmd := e.docGenCommand()
	buildCtx, cancel := context.WithTimeout(ctx, e.docBuildTimeout())
	defer cancel()
	cmd := docGenCmd(result.InterpreterPath, docsDir, ws.OutDir())
	cmd.Dir = ws.SrcDir()
	out, err := runWithTimeout(buildCtx, cmd)
	if err != nil {
		return e.fail(job, builderrors.WithOutput(builderrors.DocBuildFailed, StageDocBuild, out, err))
	}
	stageLog.Info("generated documentation")

	if err := checkCancelled(ctx, job); err != nil {
		return e.cancel(job)
	}

	stageLog = logging.ForStage(logger, StageInjectSnippet)
	if e.Refs != nil {
		doc, err := e.Refs.RefsDocument(ctx, repo.ID)
		if err != nil {
			return e.fail(job, builderrors.New(builderrors.DocBuildFailed, StageInjectSnippet, err))
		}
		n, err := snippet.InjectDir(ws.OutDir(), doc)
		if err != nil {
			return e.fail(job, builderrors.New(builderrors.DocBuildFailed, StageInjectSnippet, err))
		}
		stageLog.Info("injected navigation snippet", zap.Int("pages", n))
	}

	if err := checkCancelled(ctx, job); err != nil {
		return e.cancel(job)
	}

	stageLog = logging.ForStage(logger, StagePublish)
	if err := e.PublishStore.Swap(repo.ID, target.Slug(), ws.OutDir()); err != nil {
		return e.fail(job, builderrors.New(builderrors.PublishFailed, StagePublish, err))
	}
	job.ArtifactPath = e.PublishStore.TargetDir(repo.ID, target.Slug())
	stageLog.Info("published artifact", zap.String("path", job.ArtifactPath))

	stageLog = logging.ForStage(logger, StageFinalize)
	if e.Repos != nil && repo.MainTargetID != "" && repo.MainTargetID == target.ID {
		repo.Metadata = model.RepositoryMetadata{
			Name:     manifestReq.ProjectName,
			Version:  manifestReq.ProjectVersion,
			Summary:  manifestReq.ProjectSummary,
			Homepage: manifestReq.ProjectHomepage,
		}
		if err := e.Repos.PutRepository(ctx, repo); err != nil {
			stageLog.Warn("propagate repository metadata from main target build", zap.Error(err))
		}
	}

	stageLog.Info("build succeeded")
	job.Status = model.BuildSucceeded
	job.EndedAt = timeNow()
	return job
}

func (e *Executor) resolveBackend(target model.Target) string {
	if target.EnvBackendOverride != model.EnvBackendInherit {
		return string(target.EnvBackendOverride)
	}
	return e.DefaultBackend
}

func (e *Executor) docGenCommand() func(string, string, string) *exec.Cmd {
	if e.DocGenCommand != nil {
		return e.DocGenCommand
	}
	return defaultDocGenCommand
}

func (e *Executor) docBuildTimeout() time.Duration {
	if e.DocBuildTimeout > 0 {
		return e.DocBuildTimeout
	}
	return 15 * time.Minute
}

func (e *Executor) fail(job model.BuildJob, err error) model.BuildJob {
	job.Status = model.BuildFailed
	job.EndedAt = timeNow()
	if kind, ok := builderrors.KindOf(err); ok {
		job.ErrorKind = string(kind)
	} else {
		job.ErrorKind = string(builderrors.DocBuildFailed)
	}
	return job
}

// cancel sets job to its cancelled terminal state, used instead of fail when
// checkCancelled reports the job was cancelled rather than an actual stage
// failure.
func (e *Executor) cancel(job model.BuildJob) model.BuildJob {
	job.Status = model.BuildCancelled
	job.EndedAt = timeNow()
	return job
}

// checkCancelled returns errBuildCancelled if the job or the context has
// been cancelled, checked between every stage so a cancel request takes
// effect promptly instead of only at the next blocking I/O call.
func checkCancelled(ctx context.Context, job model.BuildJob) error {
	if job.CancelRequested {
		return errBuildCancelled
	}
	if ctx.Err() != nil {
		return errBuildCancelled
	}
	return nil
}

func runWithTimeout(ctx context.Context, cmd *exec.Cmd) (string, error) {
	var buf outputBuffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	if err := cmd.Start(); err != nil {
		return "", err
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		return buf.String(), err
	case <-ctx.Done():
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
		<-done
		return buf.String(), ctx.Err()
	}
}

// timeNow is a package-level seam so tests can stub it without importing
// mockable clocks.
var timeNow = time.Now
