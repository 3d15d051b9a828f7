package manifest

import (
	"bufio"
	"bytes"
	"strings"

	"depscan/internal/scan"
)

// parseRequirements handles the common requirements.txt forms: pinned
// (name==1.2.3), constrained (name>=1.2) and bare names. Includes, editable
// installs and option lines are ignored.
func parseRequirements(content []byte) ([]scan.Component, error) {
	var components []scan.Component

	s := bufio.NewScanner(bytes.NewReader(content))
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		if i := strings.Index(line, "#"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		// Drop environment markers.
		if i := strings.Index(line, ";"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}

		name, version := line, ""
		for _, op := range []string{"==", ">=", "<=", "~=", "!=", ">", "<"} {
			if n, v, ok := strings.Cut(line, op); ok {
				name, version = strings.TrimSpace(n), strings.TrimSpace(v)
				break
			}
		}
		// Strip extras: name[extra1,extra2]
		if i := strings.Index(name, "["); i >= 0 {
			name = name[:i]
		}
		if name == "" {
			continue
		}
		components = append(components, scan.Component{
			Name:      name,
			Version:   version,
			Kind:      "runtime",
			Ecosystem: "pypi",
		})
	}
	return components, s.Err()
}

func parsePythonVersion(content []byte) ([]scan.Component, error) {
	version := strings.TrimSpace(string(content))
	if version == "" {
		return nil, nil
	}
	return []scan.Component{{
		Name:      "python",
		Version:   version,
		Kind:      "runtime",
		Ecosystem: "python",
	}}, nil
}
