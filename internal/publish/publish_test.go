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

package publish

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jeffvincent/docfleet/internal/lock"
)

func stageWithFile(t *testing.T, s *Store, jobID, name, content string) string {
	t.Helper()
	dir := s.StagingDir(jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestSwap_FirstPublish(t *testing.T) {
	s := NewStore(t.TempDir(), lock.NewRegistry())
	staging := stageWithFile(t, s, "job-1", "index.html", "v1")

	if err := s.Swap("repo-a", "branch-main", staging); err != nil {
		t.Fatalf("Swap() error = %v", err)
	}
	if !s.Exists("repo-a", "branch-main") {
		t.Fatal("Exists() = false after first publish")
	}

	data, err := os.ReadFile(filepath.Join(s.TargetDir("repo-a", "branch-main"), "index.html"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "v1" {
		t.Errorf("published content = %q, want %q", data, "v1")
	}
}

func TestSwap_ReplacesExisting(t *testing.T) {
	s := NewStore(t.TempDir(), lock.NewRegistry())

	staging1 := stageWithFile(t, s, "job-1", "index.html", "v1")
	if err := s.Swap("repo-a", "branch-main", staging1); err != nil {
		t.Fatal(err)
	}

	staging2 := stageWithFile(t, s, "job-2", "index.html", "v2")
	if err := s.Swap("repo-a", "branch-main", staging2); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(s.TargetDir("repo-a", "branch-main"), "index.html"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "v2" {
		t.Errorf("published content after second swap = %q, want %q", data, "v2")
	}

	if _, err := os.Stat(s.TargetDir("repo-a", "branch-main") + ".retired"); !os.IsNotExist(err) {
		t.Error("retired directory was not cleaned up after a successful swap")
	}
}

func TestPurge_RemovesPublishedTree(t *testing.T) {
	s := NewStore(t.TempDir(), lock.NewRegistry())
	staging := stageWithFile(t, s, "job-1", "index.html", "v1")
	if err := s.Swap("repo-a", "branch-main", staging); err != nil {
		t.Fatal(err)
	}

	if err := s.Purge("repo-a", "branch-main"); err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if s.Exists("repo-a", "branch-main") {
		t.Error("Exists() = true after Purge")
	}
}
