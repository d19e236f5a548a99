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

// Package model holds the data types shared by the queue, executor, monitor
// and publication store: repositories, tracked targets, build jobs, and the
// refs document served alongside published artifacts.
package model

import "time"

// AccessKind identifies how the Git driver should authenticate against a
// repository's clone URL.
type AccessKind string

const (
	AccessNone       AccessKind = "none"
	AccessHTTPSToken AccessKind = "https_token"
	AccessSSHKey     AccessKind = "ssh_key"
)

// Repository is a Git-hosted source tree docfleet tracks refs for.
type Repository struct {
	ID              string
	Name            string
	Provider        string // display tag, e.g. "github", "gitlab", "generic"
	CloneURL        string
	DocsSubpath     string // default "docs"
	Access          AccessKind
	AccessToken     string // set when Access == AccessHTTPSToken; never persisted to .git/config
	AccessSSHKey    string // PEM-encoded private key; set when Access == AccessSSHKey
	VerifyTLS       bool
	Public          bool
	MainTargetID    string // empty when no target is designated "main"
	Metadata        RepositoryMetadata
	CreatedAt       time.Time
}

// RepositoryMetadata is propagated only by the designated main target's
// successful builds (see spec §9 "Metadata propagation").
type RepositoryMetadata struct {
	Name    string
	Version string
	Summary string
	Homepage string
}

// RefKind is either a branch or a tag.
type RefKind string

const (
	RefBranch RefKind = "branch"
	RefTag    RefKind = "tag"
)

// EnvBackend names one of the two environment provisioner backends.
type EnvBackend string

const (
	EnvBackendInherit EnvBackend = "" // inherit the global default
	EnvBackendFast    EnvBackend = "fast"
	EnvBackendPinned  EnvBackend = "pinned"
)

// Target is a (repository, ref) pair: the unit of build scheduling.
type Target struct {
	ID                    string
	RepositoryID          string
	RefKind               RefKind
	RefName               string
	AutoBuild             bool
	EnvBackendOverride    EnvBackend
	LastBuiltCommit       string // empty when never built successfully
	LatestSuccessfulBuild string // build ID, empty when null
}

// Slug is the filesystem- and URL-safe identifier for a target, derived from
// its ref kind and name (e.g. "branch-main", "tag-v1.2.0").
func (t Target) Slug() string {
	return string(t.RefKind) + "-" + sanitizeSlug(t.RefName)
}

func sanitizeSlug(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			out = append(out, r)
		case r == '/':
			out = append(out, '-')
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

// BuildStatus is the lifecycle state of a BuildJob.
type BuildStatus string

const (
	BuildQueued    BuildStatus = "queued"
	BuildRunning   BuildStatus = "running"
	BuildSucceeded BuildStatus = "succeeded"
	BuildFailed    BuildStatus = "failed"
	BuildCancelled BuildStatus = "cancelled"
)

// IsTerminal reports whether s is a terminal status.
func (s BuildStatus) IsTerminal() bool {
	switch s {
	case BuildSucceeded, BuildFailed, BuildCancelled:
		return true
	default:
		return false
	}
}

// Trigger identifies what caused a build to be enqueued.
type Trigger string

const (
	TriggerManual Trigger = "manual"
	TriggerAuto   Trigger = "auto"
)

// BuildJob is one pass through the executor pipeline for a Target.
type BuildJob struct {
	ID              string
	TargetID        string
	Status          BuildStatus
	Trigger         Trigger
	EnqueuedAt      time.Time
	StartedAt       time.Time
	EndedAt         time.Time
	ResolvedCommit  string
	LogPath         string
	ArtifactPath    string // set only on success
	WorkspacePath   string
	ErrorKind       string
	CancelRequested bool
}

// Duration returns the build's wall-clock duration. Zero until the build has
// both started and ended.
func (b BuildJob) Duration() time.Duration {
	if b.StartedAt.IsZero() || b.EndedAt.IsZero() {
		return 0
	}
	return b.EndedAt.Sub(b.StartedAt)
}

// RefsDocument is the JSON payload served at /<repo-id>/refs.json (§6). The
// HTTP surface that serves it is out of scope; docfleet only defines and
// populates the shape so the external server and the injected navigation
// snippet agree on it.
type RefsDocument struct {
	RepositoryID string     `json:"repository_id"`
	Targets      []RefEntry `json:"targets"`
}

// RefEntry describes one tracked target for the refs.json payload.
type RefEntry struct {
	Slug      string `json:"slug"`
	RefType   string `json:"ref_type"`
	RefName   string `json:"ref_name"`
	Available bool   `json:"available"`
	URL       string `json:"url"`
}
