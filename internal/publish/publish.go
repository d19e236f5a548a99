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

// Package publish lays out published documentation artifacts on disk and
// swaps them into place atomically: a build writes into a staging
// directory, and only a directory rename exposes it at its public path, so
// readers never see a partially-written tree.
package publish

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jeffvincent/docfleet/internal/lock"
)

// Store lays out published artifacts under <dataDir>/published/<repoID>/<slug>.
type Store struct {
	dataDir string
	locks   *lock.Registry
}

// NewStore returns a Store rooted at dataDir, using locks to serialize
// concurrent swaps of the same target.
func NewStore(dataDir string, locks *lock.Registry) *Store {
	return &Store{dataDir: dataDir, locks: locks}
}

// TargetDir is the public, stable path readers/servers see for a target.
func (s *Store) TargetDir(repositoryID, slug string) string {
	return filepath.Join(s.dataDir, "published", repositoryID, slug)
}

// StagingDir returns a fresh staging directory for jobID to build into
// before Swap moves it into place.
func (s *Store) StagingDir(jobID string) string {
	return filepath.Join(s.dataDir, "staging", jobID)
}

// Swap atomically replaces the published tree at (repositoryID, slug) with
// the contents of stagingDir. The previous tree, if any, is moved aside and
// removed only after the rename into place succeeds, so a crash between the
// two renames leaves the old tree recoverable rather than data loss.
func (s *Store) Swap(repositoryID, slug, stagingDir string) error {
	unlock := s.locks.Lock(repositoryID + "/" + slug)
	defer unlock()

	target := s.TargetDir(repositoryID, slug)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("publish: create parent of %s: %w", target, err)
	}

	retired := target + ".retired"
	os.RemoveAll(retired)

	if _, err := os.Stat(target); err == nil {
		if err := os.Rename(target, retired); err != nil {
			return fmt.Errorf("publish: retire previous tree at %s: %w", target, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("publish: stat %s: %w", target, err)
	}

	if err := os.Rename(stagingDir, target); err != nil {
		// Best-effort restore so a failed swap doesn't leave readers 404ing.
		os.Rename(retired, target)
		return fmt.Errorf("publish: move staged build into place at %s: %w", target, err)
	}

	os.RemoveAll(retired)
	return nil
}

// Purge removes a target's published tree entirely, used by
// `docfleetctl artifact purge`. Untracking a target does not call it.
func (s *Store) Purge(repositoryID, slug string) error {
	unlock := s.locks.Lock(repositoryID + "/" + slug)
	defer unlock()

	if err := os.RemoveAll(s.TargetDir(repositoryID, slug)); err != nil {
		return fmt.Errorf("purge %s/%s: %w", repositoryID, slug, err)
	}
	return nil
}

// Exists reports whether a target currently has a published tree.
func (s *Store) Exists(repositoryID, slug string) bool {
	_, err := os.Stat(s.TargetDir(repositoryID, slug))
	return err == nil
}
