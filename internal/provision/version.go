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

package provision

import (
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// candidateVersions is the interpreter catalog a backend picks from when
// resolving a constraint. It's a package variable (not a constant) so tests
// can substitute a small fixed list instead of shelling out.
var candidateVersions = []string{
	"3.9.20", "3.10.15", "3.11.10", "3.12.7", "3.13.0",
}

// VersionMatcher resolves a PEP 440-ish constraint string to a concrete
// interpreter version, given the name of the binary/version-manager that
// would ultimately run it.
type VersionMatcher interface {
	Resolve(toolName, constraint string) (string, error)
}

// DefaultMatcher translates the manifest's requires-python constraint
// (PEP 440 syntax, e.g. ">=3.10,<3.13") into Masterminds/semver constraint
// syntax and picks the newest candidate version satisfying it.
type DefaultMatcher struct{}

func (DefaultMatcher) Resolve(toolName, constraint string) (string, error) {
	if constraint == "" {
		return newestVersion(candidateVersions)
	}

	semverConstraint, err := semver.NewConstraint(pep440ToSemver(constraint))
	if err != nil {
		return "", fmt.Errorf("parse interpreter constraint %q: %w", constraint, err)
	}

	var matches []*semver.Version
	for _, c := range candidateVersions {
		v, err := semver.NewVersion(c)
		if err != nil {
			continue
		}
		if semverConstraint.Check(v) {
			matches = append(matches, v)
		}
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no interpreter available for %s satisfies constraint %q", toolName, constraint)
	}
	sort.Sort(semver.Collection(matches))
	return matches[len(matches)-1].Original(), nil
}

// pep440ToSemver rewrites the common PEP 440 operators a requires-python
// field uses into Masterminds/semver's constraint syntax. PEP 440 and
// semver agree on >=, <=, >, <, == (mapped to =) and comma-separated AND;
// this is not a general PEP 440 parser, just enough for interpreter specs.
func pep440ToSemver(constraint string) string {
	parts := strings.Split(constraint, ",")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		p = strings.ReplaceAll(p, "==", "=")
		parts[i] = p
	}
	return strings.Join(parts, ", ")
}

func newestVersion(versions []string) (string, error) {
	var parsed []*semver.Version
	for _, c := range versions {
		v, err := semver.NewVersion(c)
		if err != nil {
			continue
		}
		parsed = append(parsed, v)
	}
	if len(parsed) == 0 {
		return "", fmt.Errorf("no candidate interpreter versions configured")
	}
	sort.Sort(semver.Collection(parsed))
	return parsed[len(parsed)-1].Original(), nil
}

// detectSystemInterpreterVersion shells out to toolName --version to learn
// what's actually installed, returning the second field of its output
// (e.g. "3.12.7" from "Python 3.12.7"). No backend calls it; both report
// the version their Matcher picks from candidateVersions.
func detectSystemInterpreterVersion(toolName string) (string, error) {
	out, err := exec.Command(toolName, "--version").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("detect version of %s: %w", toolName, err)
	}
	fields := strings.Fields(string(out))
	if len(fields) < 2 {
		return "", fmt.Errorf("unexpected output from %s --version: %q", toolName, out)
	}
	return fields[1], nil
}
