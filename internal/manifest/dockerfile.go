package manifest

import (
	"bufio"
	"bytes"
	"strings"

	"depscan/internal/scan"
)

// parseDockerfile extracts base images from FROM instructions. Stage aliases
// referenced by later FROM lines are not components.
func parseDockerfile(content []byte) ([]scan.Component, error) {
	var components []scan.Component
	stages := make(map[string]struct{})

	s := bufio.NewScanner(bytes.NewReader(content))
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if !strings.HasPrefix(strings.ToUpper(line), "FROM ") {
			continue
		}
		fields := strings.Fields(line)[1:]
		// FROM [--platform=...] image[:tag] [AS alias]
		image := ""
		for _, f := range fields {
			if strings.HasPrefix(f, "--") {
				continue
			}
			image = f
			break
		}
		if image == "" {
			continue
		}
		for i, f := range fields {
			if strings.EqualFold(f, "AS") && i+1 < len(fields) {
				stages[strings.ToLower(fields[i+1])] = struct{}{}
			}
		}
		if _, isStage := stages[strings.ToLower(image)]; isStage {
			continue
		}

		name, version := image, ""
		if n, tag, ok := strings.Cut(image, "@"); ok {
			name, version = n, tag
		} else if i := strings.LastIndex(image, ":"); i > strings.LastIndex(image, "/") {
			name, version = image[:i], image[i+1:]
		}
		components = append(components, scan.Component{
			Name:      name,
			Version:   version,
			Kind:      "baseImage",
			Ecosystem: "docker",
		})
	}
	return components, s.Err()
}
