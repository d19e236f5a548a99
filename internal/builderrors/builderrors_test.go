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

package builderrors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindOf_MatchesWrappedBuildError(t *testing.T) {
	base := New(RefNotFound, "checkout", errors.New("no such ref"))
	wrapped := fmt.Errorf("executor: %w", base)

	kind, ok := KindOf(wrapped)
	if !ok {
		t.Fatal("KindOf() ok = false for a wrapped BuildError")
	}
	if kind != RefNotFound {
		t.Errorf("KindOf() = %s, want %s", kind, RefNotFound)
	}
}

func TestKindOf_FalseForPlainError(t *testing.T) {
	if _, ok := KindOf(errors.New("plain")); ok {
		t.Fatal("KindOf() ok = true for a plain error")
	}
}

func TestBuildError_ErrorIncludesOutputWhenPresent(t *testing.T) {
	err := WithOutput(DocBuildFailed, "doc_build", "traceback...", errors.New("exit 1"))
	msg := err.Error()
	if !errors.Is(err, err) {
		t.Fatal("errors.Is(err, err) = false")
	}
	if msg == "" {
		t.Fatal("Error() returned empty string")
	}
	if !strings.Contains(msg, "traceback...") {
		t.Errorf("Error() = %q, want it to include the captured output", msg)
	}
}

func TestBuildError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	err := New(GitTimeout, "clone", inner)
	if !errors.Is(err, inner) {
		t.Fatal("errors.Is did not find the wrapped inner error")
	}
}
