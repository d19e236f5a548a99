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

// Package builderrors defines the closed set of error kinds a build job can
// fail with, and a wrapping error type that carries captured subprocess
// output alongside the kind so callers can both branch on Kind and show a
// human the tail of what actually happened.
package builderrors

import (
	"errors"
	"fmt"
)

// Kind is one of the error classifications a BuildJob's terminal failure is
// tagged with. Kinds are a closed set: adding a new failure mode means
// adding a new Kind here, not stringly-typing the error message.
type Kind string

const (
	AuthMaterialInvalid  Kind = "auth_material_invalid"
	RefNotFound          Kind = "ref_not_found"
	GitTimeout           Kind = "git_timeout"
	GitOperationFailed   Kind = "git_operation_failed"
	EnvProvisionFailed   Kind = "env_provision_failed"
	DocBuildFailed       Kind = "doc_build_failed"
	PublishFailed        Kind = "publish_failed"
	InterruptedAtStartup Kind = "interrupted_at_startup"
)

// BuildError wraps an underlying error with a Kind and, where available, the
// captured tail of the subprocess output that produced it.
type BuildError struct {
	Kind    Kind
	Stage   string // e.g. "clone", "checkout", "provision", "doc_build", "publish"
	Output  string // captured stdout+stderr tail, may be empty
	Err     error
}

func (e *BuildError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("%s: %s: %v\n--- output ---\n%s", e.Stage, e.Kind, e.Err, e.Output)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// New wraps err with the given kind and stage, with no captured output.
func New(kind Kind, stage string, err error) *BuildError {
	return &BuildError{Kind: kind, Stage: stage, Err: err}
}

// WithOutput wraps err with the given kind, stage, and captured subprocess
// output tail.
func WithOutput(kind Kind, stage, output string, err error) *BuildError {
	return &BuildError{Kind: kind, Stage: stage, Output: output, Err: err}
}

// KindOf extracts the Kind from err if it is (or wraps) a *BuildError, and
// reports ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Kind, true
	}
	return "", false
}
