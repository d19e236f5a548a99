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

package snippet

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jeffvincent/docfleet/internal/model"
)

func sampleDoc() model.RefsDocument {
	return model.RefsDocument{
		RepositoryID: "repo-1",
		Targets: []model.RefEntry{
			{Slug: "branch-main", RefType: "branch", RefName: "main", Available: true, URL: "/repo-1/branch-main/index.html"},
			{Slug: "tag-v1", RefType: "tag", RefName: "v1.0.0", Available: false, URL: ""},
		},
	}
}

func TestInjectDir_SplicesBeforeBodyClose(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "index.html")
	original := "<html><body><h1>Hello</h1></body></html>"
	if err := os.WriteFile(page, []byte(original), 0o644); err != nil {
		t.Fatal(err)
	}

	n, err := InjectDir(dir, sampleDoc())
	if err != nil {
		t.Fatalf("InjectDir() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("InjectDir() injected = %d, want 1", n)
	}

	out, err := os.ReadFile(page)
	if err != nil {
		t.Fatal(err)
	}
	content := string(out)

	if !strings.Contains(content, "docfleet-ref-nav") {
		t.Error("output does not contain the nav snippet")
	}
	if !strings.HasSuffix(strings.TrimSpace(content), "</html>") {
		t.Error("output lost its trailing </html>")
	}
	bodyIdx := strings.Index(content, "</body>")
	navIdx := strings.Index(content, "docfleet-ref-nav")
	if navIdx > bodyIdx {
		t.Error("nav snippet was not spliced before </body>")
	}
}

func TestInjectDir_SkipsFilesWithoutBodyClose(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "fragment.html")
	original := "<div>just a fragment</div>"
	if err := os.WriteFile(page, []byte(original), 0o644); err != nil {
		t.Fatal(err)
	}

	n, err := InjectDir(dir, sampleDoc())
	if err != nil {
		t.Fatalf("InjectDir() error = %v", err)
	}
	if n != 0 {
		t.Fatalf("InjectDir() injected = %d, want 0", n)
	}

	out, err := os.ReadFile(page)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != original {
		t.Error("fragment without </body> was modified")
	}
}

func TestInjectDir_IgnoresNonHTMLFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "data.json"), []byte(`{"a":1}`), 0o644); err != nil {
		t.Fatal(err)
	}

	n, err := InjectDir(dir, sampleDoc())
	if err != nil {
		t.Fatalf("InjectDir() error = %v", err)
	}
	if n != 0 {
		t.Fatalf("InjectDir() injected = %d, want 0", n)
	}
}
