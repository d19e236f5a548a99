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

// Package gitdriver wraps the system git binary for clone, checkout and
// remote-head resolution. It never shells out through a string command —
// every invocation uses an explicit argument slice — and classifies git's
// stderr into the closed builderrors.Kind set so callers don't have to
// pattern-match process output themselves.
package gitdriver

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/jeffvincent/docfleet/internal/builderrors"
	"github.com/jeffvincent/docfleet/internal/model"
)

// Driver clones and inspects repositories over the git binary on PATH.
type Driver struct {
	// GitBinary overrides the binary name, for tests. Defaults to "git".
	GitBinary string
}

// New returns a Driver using the system "git" binary.
func New() *Driver {
	return &Driver{GitBinary: "git"}
}

func (d *Driver) binary() string {
	if d.GitBinary != "" {
		return d.GitBinary
	}
	return "git"
}

// credentialMaterial holds the ephemeral auth artifacts prepared for one
// invocation: an askpass script for HTTPS tokens, or a private key file and
// wrapper script for SSH. Cleanup removes them unconditionally.
type credentialMaterial struct {
	env     []string
	cleanup func()
}

func noCredentials() *credentialMaterial {
	return &credentialMaterial{cleanup: func() {}}
}

// prepare writes any ephemeral credential files needed for repo's access
// kind into a private temp directory and returns environment overrides that
// make git use them non-interactively.
func prepare(repo model.Repository) (*credentialMaterial, error) {
	switch repo.Access {
	case model.AccessNone:
		return noCredentials(), nil

	case model.AccessHTTPSToken:
		dir, err := os.MkdirTemp("", "docfleet-askpass-*")
		if err != nil {
			return nil, fmt.Errorf("create askpass dir: %w", err)
		}
		script := filepath.Join(dir, "askpass.sh")
		body := "#!/bin/sh\necho \"" + repo.AccessToken + "\"\n"
		if err := os.WriteFile(script, []byte(body), 0o700); err != nil {
			os.RemoveAll(dir)
			return nil, fmt.Errorf("write askpass script: %w", err)
		}
		return &credentialMaterial{
			env: []string{
				"GIT_ASKPASS=" + script,
				"GIT_TERMINAL_PROMPT=0",
			},
			cleanup: func() { os.RemoveAll(dir) },
		}, nil

	case model.AccessSSHKey:
		dir, err := os.MkdirTemp("", "docfleet-sshkey-*")
		if err != nil {
			return nil, fmt.Errorf("create ssh key dir: %w", err)
		}
		keyPath := filepath.Join(dir, "id")
		if err := os.WriteFile(keyPath, []byte(repo.AccessSSHKey), 0o600); err != nil {
			os.RemoveAll(dir)
			return nil, fmt.Errorf("write ssh key: %w", err)
		}
		sshCmd := fmt.Sprintf("ssh -i %s -o IdentitiesOnly=yes -o StrictHostKeyChecking=accept-new -o UserKnownHostsFile=/dev/null", keyPath)
		return &credentialMaterial{
			env: []string{
				"GIT_SSH_COMMAND=" + sshCmd,
				"GIT_TERMINAL_PROMPT=0",
			},
			cleanup: func() { os.RemoveAll(dir) },
		}, nil

	default:
		return nil, fmt.Errorf("unknown access kind %q", repo.Access)
	}
}

// run executes git with args, returning combined output. err is nil only on
// exit code 0.
func (d *Driver) run(ctx context.Context, dir string, env []string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, d.binary(), args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.String(), err
}

// Clone clones repo's default branch into dest (created if absent, must be
// empty if present). It does not check out a specific ref; callers call
// Checkout afterward.
func (d *Driver) Clone(ctx context.Context, repo model.Repository, dest string) error {
	creds, err := prepare(repo)
	if err != nil {
		return builderrors.New(builderrors.AuthMaterialInvalid, "clone", err)
	}
	defer creds.cleanup()

	args := []string{"clone", "--no-checkout", "--filter=blob:none", repo.CloneURL, dest}
	if !repo.VerifyTLS {
		args = append([]string{"-c", "http.sslVerify=false"}, args...)
	}

	out, err := d.run(ctx, "", creds.env, args...)
	if err != nil {
		return classify(ctx, "clone", out, err)
	}
	return nil
}

// Checkout resolves refName (a branch or tag name) to a commit and checks
// it out in the clone at dir, returning the resolved commit SHA.
func (d *Driver) Checkout(ctx context.Context, dir string, refKind model.RefKind, refName string) (string, error) {
	var ref string
	switch refKind {
	case model.RefBranch:
		ref = "origin/" + refName
	case model.RefTag:
		ref = "refs/tags/" + refName
	default:
		return "", fmt.Errorf("unknown ref kind %q", refKind)
	}

	if out, err := d.run(ctx, dir, nil, "checkout", "--detach", ref); err != nil {
		return "", classify(ctx, "checkout", out, err)
	}

	out, err := d.run(ctx, dir, nil, "rev-parse", "HEAD")
	if err != nil {
		return "", classify(ctx, "checkout", out, err)
	}
	return strings.TrimSpace(out), nil
}

// RemoteHead resolves refName on repo's remote without cloning, returning
// the commit SHA it currently points to. Used by the auto-build monitor to
// cheaply detect new commits before paying for a full clone.
func (d *Driver) RemoteHead(ctx context.Context, repo model.Repository, refKind model.RefKind, refName string) (string, error) {
	creds, err := prepare(repo)
	if err != nil {
		return "", builderrors.New(builderrors.AuthMaterialInvalid, "remote_head", err)
	}
	defer creds.cleanup()

	var want string
	switch refKind {
	case model.RefBranch:
		want = "refs/heads/" + refName
	case model.RefTag:
		want = "refs/tags/" + refName
	default:
		return "", fmt.Errorf("unknown ref kind %q", refKind)
	}

	out, err := d.run(ctx, "", creds.env, "ls-remote", repo.CloneURL, want)
	if err != nil {
		return "", classify(ctx, "remote_head", out, err)
	}
	trimmed := strings.TrimSpace(out)
	if trimmed == "" {
		return "", builderrors.New(builderrors.RefNotFound, "remote_head", fmt.Errorf("ref %q not found on remote", refName))
	}
	fields := strings.Fields(trimmed)
	return fields[0], nil
}

// classify turns git's exit error and captured output into a *builderrors.BuildError
// tagged with the closest matching Kind, falling back to string heuristics
// over stderr the way upstream git does not give us typed errors to match on.
func classify(ctx context.Context, stage, output string, err error) error {
	if ctx.Err() != nil {
		return builderrors.WithOutput(builderrors.GitTimeout, stage, output, ctx.Err())
	}

	lower := strings.ToLower(output)
	switch {
	case strings.Contains(lower, "authentication failed"),
		strings.Contains(lower, "permission denied (publickey)"),
		strings.Contains(lower, "could not read username"),
		strings.Contains(lower, "invalid credentials"):
		return builderrors.WithOutput(builderrors.AuthMaterialInvalid, stage, output, err)

	case strings.Contains(lower, "couldn't find remote ref"),
		strings.Contains(lower, "did not match any file(s) known to git"),
		strings.Contains(lower, "pathspec"),
		strings.Contains(lower, "repository not found"):
		return builderrors.WithOutput(builderrors.RefNotFound, stage, output, err)

	case strings.Contains(lower, "timed out"),
		strings.Contains(lower, "timeout"),
		strings.Contains(lower, "connection reset"),
		strings.Contains(lower, "could not resolve host"):
		return builderrors.WithOutput(builderrors.GitTimeout, stage, output, err)

	default:
		return builderrors.WithOutput(builderrors.GitOperationFailed, stage, output, err)
	}
}
