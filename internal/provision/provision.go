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

// Package provision builds the Python interpreter + dependency environment
// a workspace's documentation build runs in. Two backends are registered:
// "fast" (a shared interpreter with a virtualenv layered on top, cheap but
// reused across builds) and "pinned" (an isolated interpreter install
// matching the manifest's exact constraint, slower but hermetic).
package provision

import (
	"context"
	"fmt"
	"sync"

	"github.com/jeffvincent/docfleet/internal/manifest"
)

// Request describes the environment a single build needs.
type Request struct {
	WorkspaceDir          string
	InterpreterConstraint string // e.g. ">=3.10,<3.13"; empty means "no constraint"
	ExtraDependencies     []string
}

// Result describes the environment a Backend produced.
type Result struct {
	InterpreterPath string
	EnvDir          string
	ResolvedVersion string
}

// Backend provisions an environment satisfying a Request.
type Backend interface {
	Name() string
	Provision(ctx context.Context, req Request) (Result, error)
}

var (
	mu       sync.RWMutex
	backends = map[string]Backend{}
)

// Register adds b to the backend registry under b.Name(). Intended to be
// called from each backend implementation's init().
func Register(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	backends[b.Name()] = b
}

// Get returns the backend registered under name.
func Get(name string) (Backend, bool) {
	mu.RLock()
	defer mu.RUnlock()
	b, ok := backends[name]
	return b, ok
}

// Names returns the registered backend names.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(backends))
	for n := range backends {
		names = append(names, n)
	}
	return names
}

// RequirementsFromManifest adapts manifest.Requirements into a provisioning
// Request for the given workspace directory.
func RequirementsFromManifest(workspaceDir string, req manifest.Requirements, fallbackConstraint string) Request {
	constraint := req.InterpreterConstraint
	if constraint == "" {
		constraint = fallbackConstraint
	}
	return Request{
		WorkspaceDir:          workspaceDir,
		InterpreterConstraint: constraint,
		ExtraDependencies:     req.ExtraDependencies,
	}
}

// errUnknownBackend is returned by Resolve when name isn't registered.
func errUnknownBackend(name string) error {
	return fmt.Errorf("provision: unknown backend %q (registered: %v)", name, Names())
}

// Resolve looks up name, returning errUnknownBackend if it isn't registered.
func Resolve(name string) (Backend, error) {
	b, ok := Get(name)
	if !ok {
		return nil, errUnknownBackend(name)
	}
	return b, nil
}
