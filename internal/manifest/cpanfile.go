package manifest

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"

	"depscan/internal/scan"
)

// requires 'Some::Module', '1.23';  (version optional, quotes vary)
var cpanRequireRe = regexp.MustCompile(`^\s*(requires|recommends|suggests)\s+['"]([^'"]+)['"]\s*(?:,\s*['"]?([^'";]*)['"]?)?\s*;`)

func parseCpanfile(content []byte) ([]scan.Component, error) {
	var components []scan.Component

	s := bufio.NewScanner(bytes.NewReader(content))
	for s.Scan() {
		m := cpanRequireRe.FindStringSubmatch(s.Text())
		if m == nil {
			continue
		}
		kind := "runtime"
		if m[1] != "requires" {
			kind = m[1]
		}
		components = append(components, scan.Component{
			Name:      m[2],
			Version:   strings.TrimSpace(m[3]),
			Kind:      kind,
			Ecosystem: "cpan",
		})
	}
	return components, s.Err()
}
