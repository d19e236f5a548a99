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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewLoader_Defaults(t *testing.T) {
	l, err := NewLoader("")
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}
	c := l.Current()
	if c.WorkerCount != 4 {
		t.Errorf("WorkerCount = %d, want 4", c.WorkerCount)
	}
	if c.GitTimeout != 5*time.Minute {
		t.Errorf("GitTimeout = %v, want 5m", c.GitTimeout)
	}
	if c.DefaultEnvBackend != "fast" {
		t.Errorf("DefaultEnvBackend = %q, want fast", c.DefaultEnvBackend)
	}
}

func TestNewLoader_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docfleet.yaml")
	content := "data_dir: /tmp/docfleet-test\nworker_count: 8\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	l, err := NewLoader(path)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}
	c := l.Current()
	if c.DataDir != "/tmp/docfleet-test" {
		t.Errorf("DataDir = %q, want /tmp/docfleet-test", c.DataDir)
	}
	if c.WorkerCount != 8 {
		t.Errorf("WorkerCount = %d, want 8", c.WorkerCount)
	}
}

func TestWatchAndReload_PreservesWorkerCountAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docfleet.yaml")
	if err := os.WriteFile(path, []byte("worker_count: 8\ngit_timeout: 5m\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	l, err := NewLoader(path)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	reloaded := make(chan Config, 1)
	l.WatchAndReload(func(c Config) { reloaded <- c })

	if err := os.WriteFile(path, []byte("worker_count: 99\ngit_timeout: 10m\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-reloaded:
		if c.WorkerCount != 8 {
			t.Errorf("WorkerCount after reload = %d, want 8 (startup value preserved)", c.WorkerCount)
		}
		if c.GitTimeout != 10*time.Minute {
			t.Errorf("GitTimeout after reload = %v, want 10m (hot-reloaded)", c.GitTimeout)
		}
	case <-time.After(2 * time.Second):
		t.Skip("fsnotify did not fire within the test window; filesystem-dependent, not a logic failure")
	}
}
