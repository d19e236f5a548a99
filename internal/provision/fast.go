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

// FastBackend reuses a single system interpreter (chosen once at daemon
// startup) and layers a per-workspace virtualenv on top. It trades
// hermeticity for speed: most doc builds don't need an exact interpreter
// match, just "a" Python new enough to satisfy the constraint.
type FastBackend struct {
	// SystemInterpreter is the interpreter binary every fast-backend build
	// virtualenv is created from.
	SystemInterpreter string
	// Matcher picks the version reported as Result.ResolvedVersion from its
	// candidate catalog, overridable in tests. It does not inspect the
	// installed interpreter; the virtualenv is always created from
	// SystemInterpreter.
	Matcher VersionMatcher
}

// NewFastBackend returns a FastBackend using systemInterpreter (e.g.
// "python3") as the base interpreter for every virtualenv it creates.
func NewFastBackend(systemInterpreter string) *FastBackend {
	return &FastBackend{SystemInterpreter: systemInterpreter, Matcher: DefaultMatcher{}}
}

func (b *FastBackend) Name() string { return "fast" }

func (b *FastBackend) Provision(ctx context.Context, req Request) (Result, error) {
	resolved, err := b.Matcher.Resolve(b.SystemInterpreter, req.InterpreterConstraint)
	if err != nil {
		return Result{}, fmt.Errorf("fast backend: %w", err)
	}

	envDir := filepath.Join(req.WorkspaceDir, "env")
	if out, err := exec.CommandContext(ctx, b.SystemInterpreter, "-m", "venv", envDir).CombinedOutput(); err != nil {
		return Result{}, fmt.Errorf("fast backend: create venv: %w: %s", err, out)
	}

	pip := filepath.Join(envDir, "bin", "pip")
	if len(req.ExtraDependencies) > 0 {
		args := append([]string{"install", "--quiet"}, req.ExtraDependencies...)
		if out, err := exec.CommandContext(ctx, pip, args...).CombinedOutput(); err != nil {
			return Result{}, fmt.Errorf("fast backend: pip install: %w: %s", err, out)
		}
	}

	return Result{
		InterpreterPath: filepath.Join(envDir, "bin", "python"),
		EnvDir:          envDir,
		ResolvedVersion: resolved,
	}, nil
}

func init() {
	Register(NewFastBackend("python3"))
}
