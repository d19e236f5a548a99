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

// Package manifest reads a cloned project's pyproject.toml to discover the
// Python version constraint and the "docs" extras group the environment
// provisioner should install, across the three shapes a pyproject.toml can
// take: PEP 621 core metadata, Poetry's legacy [tool.poetry] table, and PEP
// 735 dependency groups.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// DocsExtraName is the conventional extras/group name docfleet looks for
// when deciding which optional dependencies to install alongside a build.
const DocsExtraName = "docs"

// Requirements is what the provisioner needs to build an environment for a
// cloned project: the interpreter constraint and the extra/group dependency
// specifiers to install on top of the base project.
type Requirements struct {
	// InterpreterConstraint is a PEP 440-style version specifier, e.g.
	// ">=3.10,<3.13". Empty when the manifest doesn't declare one.
	InterpreterConstraint string

	// ExtraDependencies are the raw dependency specifiers found in the
	// docs extra/group, in the manifest's own syntax (pip-installable).
	ExtraDependencies []string

	// HasDocsExtra reports whether a docs extra/group was found at all, so
	// callers can distinguish "no extra dependencies" from "no docs extra
	// declared" when deciding whether to skip doc generation entirely.
	HasDocsExtra bool

	// ProjectName, if declared, feeds repository metadata propagation.
	ProjectName string
	// ProjectVersion, if declared, feeds repository metadata propagation.
	ProjectVersion string
	// ProjectSummary, if declared, feeds repository metadata propagation.
	ProjectSummary string
	// ProjectHomepage, if declared, feeds repository metadata propagation.
	ProjectHomepage string
}

type pep621Doc struct {
	Project struct {
		Name              string              `toml:"name"`
		Version           string              `toml:"version"`
		Description       string              `toml:"description"`
		RequiresPython    string              `toml:"requires-python"`
		OptionalDependencies map[string][]string `toml:"optional-dependencies"`
		Urls              struct {
			Homepage string `toml:"homepage"`
		} `toml:"urls"`
	} `toml:"project"`

	DependencyGroups map[string][]string `toml:"dependency-groups"`

	Tool struct {
		Poetry struct {
			Name            string              `toml:"name"`
			Version         string              `toml:"version"`
			Description     string              `toml:"description"`
			Homepage        string              `toml:"homepage"`
			Dependencies    map[string]toml.Primitive `toml:"dependencies"`
			Extras          map[string][]string `toml:"extras"`
			Group           map[string]struct {
				Dependencies map[string]toml.Primitive `toml:"dependencies"`
			} `toml:"group"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

// Load reads <repoDir>/pyproject.toml and derives Requirements. A missing
// file is not an error: it returns a zero-value Requirements so callers can
// fall back to defaults for projects with no Python manifest at all.
func Load(repoDir string) (Requirements, error) {
	path := filepath.Join(repoDir, "pyproject.toml")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Requirements{}, nil
	}
	if err != nil {
		return Requirements{}, fmt.Errorf("read %s: %w", path, err)
	}

	var doc pep621Doc
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return Requirements{}, fmt.Errorf("parse %s: %w", path, err)
	}

	req := Requirements{
		InterpreterConstraint: doc.Project.RequiresPython,
		ProjectName:           doc.Project.Name,
		ProjectVersion:        doc.Project.Version,
		ProjectSummary:        doc.Project.Description,
		ProjectHomepage:       doc.Project.Urls.Homepage,
	}
	if req.ProjectName == "" {
		req.ProjectName = doc.Tool.Poetry.Name
	}
	if req.ProjectVersion == "" {
		req.ProjectVersion = doc.Tool.Poetry.Version
	}
	if req.ProjectSummary == "" {
		req.ProjectSummary = doc.Tool.Poetry.Description
	}
	if req.ProjectHomepage == "" {
		req.ProjectHomepage = doc.Tool.Poetry.Homepage
	}

	if deps, ok := doc.Project.OptionalDependencies[DocsExtraName]; ok {
		req.HasDocsExtra = true
		req.ExtraDependencies = append(req.ExtraDependencies, deps...)
	}

	if deps, ok := doc.DependencyGroups[DocsExtraName]; ok {
		req.HasDocsExtra = true
		req.ExtraDependencies = append(req.ExtraDependencies, deps...)
	}

	if group, ok := doc.Tool.Poetry.Group[DocsExtraName]; ok {
		req.HasDocsExtra = true
		for name := range group.Dependencies {
			req.ExtraDependencies = append(req.ExtraDependencies, name)
		}
	} else if deps, ok := doc.Tool.Poetry.Extras[DocsExtraName]; ok {
		req.HasDocsExtra = true
		req.ExtraDependencies = append(req.ExtraDependencies, deps...)
	}

	return req, nil
}
