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

package gitdriver

import (
	"context"
	"errors"
	"testing"

	"github.com/jeffvincent/docfleet/internal/builderrors"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   builderrors.Kind
	}{
		{"auth failure", "fatal: Authentication failed for 'https://example.com/repo.git'", builderrors.AuthMaterialInvalid},
		{"ssh key rejected", "git@host: Permission denied (publickey).", builderrors.AuthMaterialInvalid},
		{"missing ref", "fatal: couldn't find remote ref refs/heads/nope", builderrors.RefNotFound},
		{"not found", "remote: Repository not found.", builderrors.RefNotFound},
		{"dns failure", "fatal: unable to access: Could not resolve host: example.com", builderrors.GitTimeout},
		{"unrecognized", "fatal: something entirely unexpected happened", builderrors.GitOperationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(context.Background(), "clone", tt.output, errors.New("exit status 128"))
			kind, ok := builderrors.KindOf(err)
			if !ok {
				t.Fatalf("classify did not return a *BuildError")
			}
			if kind != tt.want {
				t.Errorf("classify(%q) kind = %s, want %s", tt.output, kind, tt.want)
			}
		})
	}
}

func TestClassify_ContextDeadlineTakesPrecedence(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := classify(ctx, "clone", "fatal: Authentication failed", errors.New("signal: killed"))
	kind, ok := builderrors.KindOf(err)
	if !ok {
		t.Fatalf("classify did not return a *BuildError")
	}
	if kind != builderrors.GitTimeout {
		t.Errorf("classify with cancelled context kind = %s, want %s", kind, builderrors.GitTimeout)
	}
}
