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

// Package snippet injects a small navigation widget into every generated
// HTML page so a reader can jump between a repository's tracked refs. It
// splices the widget immediately before the closing </body> tag rather than
// relying on the documentation generator having a templating hook for it.
package snippet

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeffvincent/docfleet/internal/model"
)

const bodyClose = "</body>"

var navTemplate = template.Must(template.New("nav").Parse(`
<div id="docfleet-ref-nav" style="position:fixed;bottom:0;right:0;z-index:9999;background:#222;color:#eee;font:12px sans-serif;padding:6px 10px;border-top-left-radius:6px;">
  <label for="docfleet-ref-select">version:</label>
  <select id="docfleet-ref-select" onchange="if(this.value) window.location.href=this.value;">
    {{range .Targets}}<option value="{{.URL}}"{{if not .Available}} disabled{{end}}>{{.RefName}}</option>
    {{end}}
  </select>
</div>
`))

// Render returns the navigation snippet's HTML for doc.
func Render(doc model.RefsDocument) (string, error) {
	var buf bytes.Buffer
	if err := navTemplate.Execute(&buf, doc); err != nil {
		return "", fmt.Errorf("render nav snippet: %w", err)
	}
	return buf.String(), nil
}

// InjectDir walks every .html file under root and splices the rendered
// snippet for doc immediately before </body>. Files with no closing body
// tag are left untouched rather than appended to blindly, since that would
// usually indicate a fragment, not a full page.
func InjectDir(root string, doc model.RefsDocument) (int, error) {
	html, err := Render(doc)
	if err != nil {
		return 0, err
	}

	injected := 0
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".html" {
			return nil
		}
		ok, err := injectFile(path, html)
		if err != nil {
			return fmt.Errorf("inject %s: %w", path, err)
		}
		if ok {
			injected++
		}
		return nil
	})
	if err != nil {
		return injected, err
	}
	return injected, nil
}

func injectFile(path, html string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	content := string(data)
	idx := strings.LastIndex(strings.ToLower(content), bodyClose)
	if idx == -1 {
		return false, nil
	}
	out := content[:idx] + html + content[idx:]

	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(path, []byte(out), info.Mode()); err != nil {
		return false, err
	}
	return true, nil
}
