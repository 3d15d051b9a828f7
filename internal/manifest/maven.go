package manifest

import (
	"encoding/xml"

	"depscan/internal/scan"
)

type pomProject struct {
	Dependencies struct {
		Dependency []pomDependency `xml:"dependency"`
	} `xml:"dependencies"`
}

type pomDependency struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
	Scope      string `xml:"scope"`
}

func parsePomXML(content []byte) ([]scan.Component, error) {
	var pom pomProject
	if err := xml.Unmarshal(content, &pom); err != nil {
		return nil, err
	}

	var components []scan.Component
	for _, d := range pom.Dependencies.Dependency {
		if d.GroupID == "" || d.ArtifactID == "" {
			continue
		}
		kind := d.Scope
		if kind == "" {
			kind = "compile"
		}
		components = append(components, scan.Component{
			Name:      d.GroupID + ":" + d.ArtifactID,
			Version:   d.Version, // may be a ${property} reference; kept as declared
			Kind:      kind,
			Ecosystem: "maven",
		})
	}
	return components, nil
}
