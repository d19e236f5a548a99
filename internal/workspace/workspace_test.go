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

package workspace

import (
	"os"
	"testing"
)

func TestRemove_DeletesRootButKeepsLog(t *testing.T) {
	dataDir := t.TempDir()
	ws, err := Create(dataDir, "job-1")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := os.WriteFile(ws.LogPath(), []byte("log output"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	if err := ws.Remove(); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	if _, err := os.Stat(ws.Root); !os.IsNotExist(err) {
		t.Errorf("workspace root still exists after Remove(): err = %v", err)
	}
	if _, err := os.Stat(ws.LogPath()); err != nil {
		t.Errorf("log file missing after Remove(): %v", err)
	}
}

func TestOpen_ResolvesSameLogPathAsCreate(t *testing.T) {
	dataDir := t.TempDir()
	created, err := Create(dataDir, "job-2")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	reopened := Open(dataDir, "job-2")
	if reopened.LogPath() != created.LogPath() {
		t.Errorf("Open().LogPath() = %q, want %q", reopened.LogPath(), created.LogPath())
	}
	if reopened.Root != created.Root {
		t.Errorf("Open().Root = %q, want %q", reopened.Root, created.Root)
	}
}
