package manifest

import (
	"encoding/json"
	"sort"
	"strings"

	"depscan/internal/scan"
)

type packageJSON struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

func parsePackageJSON(content []byte) ([]scan.Component, error) {
	var pkg packageJSON
	if err := json.Unmarshal(content, &pkg); err != nil {
		return nil, err
	}

	components := make([]scan.Component, 0, len(pkg.Dependencies)+len(pkg.DevDependencies))
	for name, version := range pkg.Dependencies {
		components = append(components, scan.Component{
			Name:      name,
			Version:   strings.TrimLeft(version, "^~"),
			Kind:      "runtime",
			Ecosystem: "npm",
		})
	}
	for name, version := range pkg.DevDependencies {
		components = append(components, scan.Component{
			Name:      name,
			Version:   strings.TrimLeft(version, "^~"),
			Kind:      "dev",
			Ecosystem: "npm",
		})
	}
	sort.Slice(components, func(i, j int) bool { return components[i].Name < components[j].Name })
	return components, nil
}

func parseNvmrc(content []byte) ([]scan.Component, error) {
	version := strings.TrimSpace(string(content))
	if version == "" {
		return nil, nil
	}
	return []scan.Component{{
		Name:      "node",
		Version:   strings.TrimPrefix(version, "v"),
		Kind:      "runtime",
		Ecosystem: "node",
	}}, nil
}
