package manifest

import (
	"bufio"
	"bytes"
	"strings"

	"depscan/internal/scan"
)

// parseGoMod line-scans a go.mod for require directives, both the block form
// and single-line requires.
func parseGoMod(content []byte) ([]scan.Component, error) {
	var components []scan.Component
	inBlock := false

	s := bufio.NewScanner(bytes.NewReader(content))
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		switch {
		case line == "require (":
			inBlock = true
			continue
		case inBlock && line == ")":
			inBlock = false
			continue
		}

		var spec string
		if inBlock {
			spec = line
		} else if rest, ok := strings.CutPrefix(line, "require "); ok {
			spec = rest
		} else {
			continue
		}

		indirect := strings.Contains(spec, "// indirect")
		if i := strings.Index(spec, "//"); i >= 0 {
			spec = spec[:i]
		}
		fields := strings.Fields(spec)
		if len(fields) != 2 {
			continue
		}

		kind := "direct"
		if indirect {
			kind = "indirect"
		}
		components = append(components, scan.Component{
			Name:      fields[0],
			Version:   strings.TrimPrefix(fields[1], "v"),
			Kind:      kind,
			Ecosystem: "gomod",
		})
	}
	return components, s.Err()
}
