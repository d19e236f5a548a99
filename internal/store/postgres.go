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

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/jeffvincent/docfleet/internal/model"
)

// Postgres is a Store backed by a database/sql connection using lib/pq.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres opens dsn and verifies connectivity with a ping.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{db: db}, nil
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() error { return p.db.Close() }

// Migrate creates docfleet's schema if it doesn't already exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, schemaSQL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS repositories (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	provider       TEXT NOT NULL,
	clone_url      TEXT NOT NULL,
	docs_subpath   TEXT NOT NULL DEFAULT 'docs',
	access_kind    TEXT NOT NULL,
	access_token   TEXT NOT NULL DEFAULT '',
	access_ssh_key TEXT NOT NULL DEFAULT '',
	verify_tls     BOOLEAN NOT NULL DEFAULT TRUE,
	public         BOOLEAN NOT NULL DEFAULT FALSE,
	main_target_id TEXT NOT NULL DEFAULT '',
	meta_name      TEXT NOT NULL DEFAULT '',
	meta_version   TEXT NOT NULL DEFAULT '',
	meta_summary   TEXT NOT NULL DEFAULT '',
	meta_homepage  TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS targets (
	id                    TEXT PRIMARY KEY,
	repository_id         TEXT NOT NULL REFERENCES repositories(id) ON DELETE CASCADE,
	ref_kind              TEXT NOT NULL,
	ref_name              TEXT NOT NULL,
	auto_build            BOOLEAN NOT NULL DEFAULT FALSE,
	env_backend_override  TEXT NOT NULL DEFAULT '',
	last_built_commit     TEXT NOT NULL DEFAULT '',
	latest_successful_build TEXT NOT NULL DEFAULT '',
	UNIQUE (repository_id, ref_kind, ref_name)
);

CREATE TABLE IF NOT EXISTS build_jobs (
	id               TEXT PRIMARY KEY,
	target_id        TEXT NOT NULL REFERENCES targets(id) ON DELETE CASCADE,
	status           TEXT NOT NULL,
	trigger          TEXT NOT NULL,
	enqueued_at      TIMESTAMPTZ NOT NULL,
	started_at       TIMESTAMPTZ,
	ended_at         TIMESTAMPTZ,
	resolved_commit  TEXT NOT NULL DEFAULT '',
	log_path         TEXT NOT NULL DEFAULT '',
	artifact_path    TEXT NOT NULL DEFAULT '',
	workspace_path   TEXT NOT NULL DEFAULT '',
	error_kind       TEXT NOT NULL DEFAULT '',
	cancel_requested BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS build_jobs_status_idx ON build_jobs (status, enqueued_at);
CREATE INDEX IF NOT EXISTS build_jobs_target_idx ON build_jobs (target_id, enqueued_at DESC);
`

func (p *Postgres) PutRepository(ctx context.Context, r model.Repository) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO repositories (id, name, provider, clone_url, docs_subpath, access_kind, access_token, access_ssh_key, verify_tls, public, main_target_id, meta_name, meta_version, meta_summary, meta_homepage, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (id) DO UPDATE SET
			name=$2, provider=$3, clone_url=$4, docs_subpath=$5, access_kind=$6, access_token=$7,
			access_ssh_key=$8, verify_tls=$9, public=$10, main_target_id=$11,
			meta_name=$12, meta_version=$13, meta_summary=$14, meta_homepage=$15`,
		r.ID, r.Name, r.Provider, r.CloneURL, r.DocsSubpath, string(r.Access), r.AccessToken, r.AccessSSHKey,
		r.VerifyTLS, r.Public, r.MainTargetID, r.Metadata.Name, r.Metadata.Version, r.Metadata.Summary, r.Metadata.Homepage, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("put repository %s: %w", r.ID, err)
	}
	return nil
}

func (p *Postgres) GetRepository(ctx context.Context, id string) (model.Repository, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, name, provider, clone_url, docs_subpath, access_kind, access_token, access_ssh_key,
		       verify_tls, public, main_target_id, meta_name, meta_version, meta_summary, meta_homepage, created_at
		FROM repositories WHERE id = $1`, id)
	return scanRepository(row)
}

func (p *Postgres) ListRepositories(ctx context.Context) ([]model.Repository, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name, provider, clone_url, docs_subpath, access_kind, access_token, access_ssh_key,
		       verify_tls, public, main_target_id, meta_name, meta_version, meta_summary, meta_homepage, created_at
		FROM repositories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	defer rows.Close()

	var out []model.Repository
	for rows.Next() {
		r, err := scanRepository(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteRepository(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM repositories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete repository %s: %w", id, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRepository(s scanner) (model.Repository, error) {
	var r model.Repository
	var access string
	err := s.Scan(&r.ID, &r.Name, &r.Provider, &r.CloneURL, &r.DocsSubpath, &access, &r.AccessToken, &r.AccessSSHKey,
		&r.VerifyTLS, &r.Public, &r.MainTargetID, &r.Metadata.Name, &r.Metadata.Version, &r.Metadata.Summary, &r.Metadata.Homepage, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Repository{}, ErrNotFound
	}
	if err != nil {
		return model.Repository{}, fmt.Errorf("scan repository: %w", err)
	}
	r.Access = model.AccessKind(access)
	return r, nil
}

func (p *Postgres) PutTarget(ctx context.Context, t model.Target) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO targets (id, repository_id, ref_kind, ref_name, auto_build, env_backend_override, last_built_commit, latest_successful_build)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET
			auto_build=$5, env_backend_override=$6, last_built_commit=$7, latest_successful_build=$8`,
		t.ID, t.RepositoryID, string(t.RefKind), t.RefName, t.AutoBuild, string(t.EnvBackendOverride), t.LastBuiltCommit, t.LatestSuccessfulBuild)
	if err != nil {
		return fmt.Errorf("put target %s: %w", t.ID, err)
	}
	return nil
}

func (p *Postgres) GetTarget(ctx context.Context, id string) (model.Target, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, repository_id, ref_kind, ref_name, auto_build, env_backend_override, last_built_commit, latest_successful_build
		FROM targets WHERE id = $1`, id)
	return scanTarget(row)
}

func (p *Postgres) ListTargets(ctx context.Context, repositoryID string) ([]model.Target, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, repository_id, ref_kind, ref_name, auto_build, env_backend_override, last_built_commit, latest_successful_build
		FROM targets WHERE repository_id = $1 ORDER BY ref_kind, ref_name`, repositoryID)
	if err != nil {
		return nil, fmt.Errorf("list targets for %s: %w", repositoryID, err)
	}
	defer rows.Close()

	var out []model.Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *Postgres) ListAutoBuildTargets(ctx context.Context) ([]model.Target, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, repository_id, ref_kind, ref_name, auto_build, env_backend_override, last_built_commit, latest_successful_build
		FROM targets WHERE auto_build = TRUE`)
	if err != nil {
		return nil, fmt.Errorf("list auto-build targets: %w", err)
	}
	defer rows.Close()

	var out []model.Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteTarget(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM targets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete target %s: %w", id, err)
	}
	return nil
}

func scanTarget(s scanner) (model.Target, error) {
	var t model.Target
	var refKind, envBackend string
	err := s.Scan(&t.ID, &t.RepositoryID, &refKind, &t.RefName, &t.AutoBuild, &envBackend, &t.LastBuiltCommit, &t.LatestSuccessfulBuild)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Target{}, ErrNotFound
	}
	if err != nil {
		return model.Target{}, fmt.Errorf("scan target: %w", err)
	}
	t.RefKind = model.RefKind(refKind)
	t.EnvBackendOverride = model.EnvBackend(envBackend)
	return t, nil
}

func (p *Postgres) Enqueue(ctx context.Context, j model.BuildJob) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO build_jobs (id, target_id, status, trigger, enqueued_at, workspace_path)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		j.ID, j.TargetID, string(model.BuildQueued), string(j.Trigger), j.EnqueuedAt, j.WorkspacePath)
	if err != nil {
		return fmt.Errorf("enqueue job %s: %w", j.ID, err)
	}
	return nil
}

// Dispatch is the compare-and-set that lets multiple workers race safely:
// the UPDATE only succeeds for a row still in the queued state and not
// cancelled, and the row count tells the caller whether it won.
func (p *Postgres) Dispatch(ctx context.Context, jobID string) (model.BuildJob, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE build_jobs SET status = $1, started_at = now()
		WHERE id = $2 AND status = $3 AND cancel_requested = FALSE`,
		string(model.BuildRunning), jobID, string(model.BuildQueued))
	if err != nil {
		return model.BuildJob{}, fmt.Errorf("dispatch job %s: %w", jobID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.BuildJob{}, fmt.Errorf("dispatch job %s: %w", jobID, err)
	}
	if n == 0 {
		return model.BuildJob{}, ErrAlreadyDispatched
	}
	return p.GetJob(ctx, jobID)
}

func (p *Postgres) Finish(ctx context.Context, j model.BuildJob) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE build_jobs SET status=$1, ended_at=$2, resolved_commit=$3, log_path=$4, artifact_path=$5, error_kind=$6
		WHERE id = $7`,
		string(j.Status), j.EndedAt, j.ResolvedCommit, j.LogPath, j.ArtifactPath, j.ErrorKind, j.ID)
	if err != nil {
		return fmt.Errorf("finish job %s: %w", j.ID, err)
	}
	return nil
}

// RequestCancel transitions a queued job straight to cancelled, since no
// worker has dispatched it yet to observe a cancel_requested flag. A
// running job only has the flag set. Workers do not re-read the flag after
// Dispatch, so a running job stops early only when queue.Queue.RequestCancel
// is called on the process running it, which cancels its context.
func (p *Postgres) RequestCancel(ctx context.Context, jobID string) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE build_jobs SET
			status = CASE WHEN status = $2 THEN $3 ELSE status END,
			ended_at = CASE WHEN status = $2 THEN now() ELSE ended_at END,
			cancel_requested = CASE WHEN status = $4 THEN TRUE ELSE cancel_requested END
		WHERE id = $1 AND status IN ($2, $4)`,
		jobID, string(model.BuildQueued), string(model.BuildCancelled), string(model.BuildRunning))
	if err != nil {
		return fmt.Errorf("request cancel for job %s: %w", jobID, err)
	}
	return nil
}

func (p *Postgres) HasActiveJob(ctx context.Context, targetID string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM build_jobs WHERE target_id = $1 AND status IN ($2, $3))`,
		targetID, string(model.BuildQueued), string(model.BuildRunning)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check active job for target %s: %w", targetID, err)
	}
	return exists, nil
}

func (p *Postgres) GetJob(ctx context.Context, jobID string) (model.BuildJob, error) {
	row := p.db.QueryRowContext(ctx, jobSelectSQL+` WHERE id = $1`, jobID)
	return scanJob(row)
}

const jobSelectSQL = `
	SELECT id, target_id, status, trigger, enqueued_at, started_at, ended_at,
	       resolved_commit, log_path, artifact_path, workspace_path, error_kind, cancel_requested
	FROM build_jobs`

func (p *Postgres) ListQueued(ctx context.Context) ([]model.BuildJob, error) {
	rows, err := p.db.QueryContext(ctx, jobSelectSQL+` WHERE status = $1 ORDER BY enqueued_at ASC`, string(model.BuildQueued))
	if err != nil {
		return nil, fmt.Errorf("list queued jobs: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (p *Postgres) ListRunning(ctx context.Context) ([]model.BuildJob, error) {
	rows, err := p.db.QueryContext(ctx, jobSelectSQL+` WHERE status = $1`, string(model.BuildRunning))
	if err != nil {
		return nil, fmt.Errorf("list running jobs: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (p *Postgres) ListJobsForTarget(ctx context.Context, targetID string, limit int) ([]model.BuildJob, error) {
	rows, err := p.db.QueryContext(ctx, jobSelectSQL+` WHERE target_id = $1 ORDER BY enqueued_at DESC LIMIT $2`, targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs for target %s: %w", targetID, err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

func scanJobs(rows *sql.Rows) ([]model.BuildJob, error) {
	var out []model.BuildJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func scanJob(s scanner) (model.BuildJob, error) {
	var j model.BuildJob
	var status, trigger string
	var startedAt, endedAt sql.NullTime
	err := s.Scan(&j.ID, &j.TargetID, &status, &trigger, &j.EnqueuedAt, &startedAt, &endedAt,
		&j.ResolvedCommit, &j.LogPath, &j.ArtifactPath, &j.WorkspacePath, &j.ErrorKind, &j.CancelRequested)
	if errors.Is(err, sql.ErrNoRows) {
		return model.BuildJob{}, ErrNotFound
	}
	if err != nil {
		return model.BuildJob{}, fmt.Errorf("scan job: %w", err)
	}
	j.Status = model.BuildStatus(status)
	j.Trigger = model.Trigger(trigger)
	j.StartedAt = startedAt.Time
	j.EndedAt = endedAt.Time
	return j, nil
}
