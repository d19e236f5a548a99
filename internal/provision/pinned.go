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

package provision

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
)

// PinnedBackend installs an exact interpreter version via a version manager
// (pyenv-compatible) before building the virtualenv, giving a hermetic
// environment matching the manifest's constraint exactly rather than
// whatever happens to satisfy it on the host.
type PinnedBackend struct {
	// VersionManagerBinary is the pyenv-compatible binary used to install
	// and locate pinned interpreters.
	VersionManagerBinary string
	Matcher              VersionMatcher
}

// NewPinnedBackend returns a PinnedBackend driving versionManagerBinary
// (e.g. "pyenv").
func NewPinnedBackend(versionManagerBinary string) *PinnedBackend {
	return &PinnedBackend{VersionManagerBinary: versionManagerBinary, Matcher: DefaultMatcher{}}
}

func (b *PinnedBackend) Name() string { return "pinned" }

func (b *PinnedBackend) Provision(ctx context.Context, req Request) (Result, error) {
	resolved, err := b.Matcher.Resolve(b.VersionManagerBinary, req.InterpreterConstraint)
	if err != nil {
		return Result{}, fmt.Errorf("pinned backend: %w", err)
	}

	if out, err := exec.CommandContext(ctx, b.VersionManagerBinary, "install", "--skip-existing", resolved).CombinedOutput(); err != nil {
		return Result{}, fmt.Errorf("pinned backend: install %s: %w: %s", resolved, err, out)
	}

	rootOut, err := exec.CommandContext(ctx, b.VersionManagerBinary, "prefix", resolved).CombinedOutput()
	if err != nil {
		return Result{}, fmt.Errorf("pinned backend: locate prefix for %s: %w: %s", resolved, err, rootOut)
	}
	interpreter := filepath.Join(trimTrailingNewline(string(rootOut)), "bin", "python")

	envDir := filepath.Join(req.WorkspaceDir, "env")
	if out, err := exec.CommandContext(ctx, interpreter, "-m", "venv", envDir).CombinedOutput(); err != nil {
		return Result{}, fmt.Errorf("pinned backend: create venv: %w: %s", err, out)
	}

	pip := filepath.Join(envDir, "bin", "pip")
	if len(req.ExtraDependencies) > 0 {
		args := append([]string{"install", "--quiet"}, req.ExtraDependencies...)
		if out, err := exec.CommandContext(ctx, pip, args...).CombinedOutput(); err != nil {
			return Result{}, fmt.Errorf("pinned backend: pip install: %w: %s", err, out)
		}
	}

	return Result{
		InterpreterPath: filepath.Join(envDir, "bin", "python"),
		EnvDir:          envDir,
		ResolvedVersion: resolved,
	}, nil
}

func trimTrailingNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func init() {
	Register(NewPinnedBackend("pyenv"))
}
