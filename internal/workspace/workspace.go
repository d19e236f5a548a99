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

// Package workspace manages the per-build working directory tree: a clone
// under src/, a provisioned environment under env/, and generated docs
// under out/. Each build job gets its own workspace, named by job ID, so
// two concurrent builds of the same target never share files.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

// Workspace is the directory layout for one build job. Root holds the
// ephemeral src/, env/ and out/ trees that Remove deletes once the build
// ends; the log file lives outside Root under <dataDir>/logs so it survives
// that cleanup.
type Workspace struct {
	Root    string
	logFile string
}

// Create allocates a new workspace rooted at <dataDir>/workspaces/<jobID>
// with empty src/, env/ and out/ subdirectories, and ensures <dataDir>/logs
// exists for the job's log file.
func Create(dataDir, jobID string) (*Workspace, error) {
	root := filepath.Join(dataDir, "workspaces", jobID)
	for _, sub := range []string{"src", "env", "out"} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create workspace dir %s: %w", filepath.Join(root, sub), err)
		}
	}
	logDir := filepath.Join(dataDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir %s: %w", logDir, err)
	}
	return &Workspace{Root: root, logFile: filepath.Join(logDir, jobID+".log")}, nil
}

// SrcDir is where the repository is cloned.
func (w *Workspace) SrcDir() string { return filepath.Join(w.Root, "src") }

// EnvDir is where the provisioned interpreter/virtualenv lives.
func (w *Workspace) EnvDir() string { return filepath.Join(w.Root, "env") }

// OutDir is where the documentation generator writes its output.
func (w *Workspace) OutDir() string { return filepath.Join(w.Root, "out") }

// LogPath is the job's log file path, recorded on the job. Create makes its
// directory but not the file, and the executor does not write build output
// to it. It lives outside Root so Remove can delete src/ and env/ without
// losing the log.
func (w *Workspace) LogPath() string { return w.logFile }

// Remove deletes the ephemeral workspace tree (src/, env/, out/), leaving
// the job's log file under <dataDir>/logs in place. Safe to call on a
// workspace whose out/ contents have already been relocated by publish.
func (w *Workspace) Remove() error {
	if err := os.RemoveAll(w.Root); err != nil {
		return fmt.Errorf("remove workspace %s: %w", w.Root, err)
	}
	return nil
}

// Open returns the Workspace for an existing directory without creating it,
// used after a restart to locate and remove an interrupted job's workspace.
func Open(dataDir, jobID string) *Workspace {
	return &Workspace{
		Root:    filepath.Join(dataDir, "workspaces", jobID),
		logFile: filepath.Join(dataDir, "logs", jobID+".log"),
	}
}
