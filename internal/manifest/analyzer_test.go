package manifest

import (
	"context"
	"testing"

	"depscan/internal/scan"
)

func findComponent(t *testing.T, components []scan.Component, name string) scan.Component {
	t.Helper()
	for _, c := range components {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("component %q not found in %+v", name, components)
	return scan.Component{}
}

func TestAnalyzer_DiscoversServicesAcrossDirectories(t *testing.T) {
	tree := scan.NewMemTree(map[string][]byte{
		"package.json":           []byte(`{"dependencies":{"express":"^4.18.2"}}`),
		"api/go.mod":             []byte("module example.com/api\n\ngo 1.22\n\nrequire github.com/spf13/cobra v1.8.0\n"),
		"worker/requirements.txt": []byte("requests==2.31.0\n"),
		"node_modules/x/package.json": []byte(`{"dependencies":{"leftover":"1.0.0"}}`),
		"README.md":              []byte("docs"),
	})

	a := NewAnalyzer()
	services, err := a.Analyze(context.Background(), scan.RepoRef{ID: "r1", Name: "shop"}, tree)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if len(services) != 3 {
		t.Fatalf("got %d services, want 3: %+v", len(services), services)
	}

	byManifest := make(map[string]scan.ServiceSummary)
	for _, s := range services {
		byManifest[s.Manifest] = s
	}

	root := byManifest["package.json"]
	if root.Name != "shop" {
		t.Fatalf("root service name = %q, want repo name", root.Name)
	}
	express := findComponent(t, root.Components, "express")
	if express.Version != "4.18.2" || express.Ecosystem != "npm" {
		t.Fatalf("express = %+v", express)
	}

	api := byManifest["api/go.mod"]
	if api.Name != "api" {
		t.Fatalf("nested service name = %q, want directory name", api.Name)
	}
	cobra := findComponent(t, api.Components, "github.com/spf13/cobra")
	if cobra.Version != "1.8.0" || cobra.Ecosystem != "gomod" {
		t.Fatalf("cobra = %+v", cobra)
	}

	if _, ok := byManifest["node_modules/x/package.json"]; ok {
		t.Fatal("node_modules manifest should have been skipped")
	}
}

func TestAnalyzer_NoManifestsYieldsEmptyResult(t *testing.T) {
	tree := scan.NewMemTree(map[string][]byte{
		"main.go":   []byte("package main"),
		"README.md": []byte("docs"),
	})

	a := NewAnalyzer()
	services, err := a.Analyze(context.Background(), scan.RepoRef{ID: "r1", Name: "bare"}, tree)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(services) != 0 {
		t.Fatalf("got %d services, want 0", len(services))
	}
}

func TestAnalyzer_MalformedManifestIsSkippedNotFatal(t *testing.T) {
	tree := scan.NewMemTree(map[string][]byte{
		"package.json":     []byte(`{not json`),
		"api/package.json": []byte(`{"dependencies":{"koa":"2.15.0"}}`),
	})

	a := NewAnalyzer()
	services, err := a.Analyze(context.Background(), scan.RepoRef{ID: "r1", Name: "shop"}, tree)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(services) != 1 || services[0].Manifest != "api/package.json" {
		t.Fatalf("got %+v, want only the valid manifest", services)
	}
}

func TestParsePackageJSON(t *testing.T) {
	content := []byte(`{
		"dependencies": {"express": "^4.18.2", "lodash": "~4.17.21"},
		"devDependencies": {"jest": "29.7.0"}
	}`)

	components, err := parsePackageJSON(content)
	if err != nil {
		t.Fatalf("parsePackageJSON: %v", err)
	}
	if len(components) != 3 {
		t.Fatalf("got %d components, want 3", len(components))
	}
	if c := findComponent(t, components, "lodash"); c.Version != "4.17.21" || c.Kind != "runtime" {
		t.Fatalf("lodash = %+v", c)
	}
	if c := findComponent(t, components, "jest"); c.Kind != "dev" {
		t.Fatalf("jest = %+v", c)
	}
}

func TestParseGoMod(t *testing.T) {
	content := []byte(`module example.com/svc

go 1.22

require (
	github.com/google/uuid v1.6.0
	golang.org/x/sys v0.15.0 // indirect
)

require github.com/spf13/cobra v1.8.0
`)

	components, err := parseGoMod(content)
	if err != nil {
		t.Fatalf("parseGoMod: %v", err)
	}
	if len(components) != 3 {
		t.Fatalf("got %d components, want 3: %+v", len(components), components)
	}
	if c := findComponent(t, components, "github.com/google/uuid"); c.Version != "1.6.0" || c.Kind != "direct" {
		t.Fatalf("uuid = %+v", c)
	}
	if c := findComponent(t, components, "golang.org/x/sys"); c.Kind != "indirect" {
		t.Fatalf("x/sys = %+v", c)
	}
	if c := findComponent(t, components, "github.com/spf13/cobra"); c.Version != "1.8.0" {
		t.Fatalf("cobra = %+v", c)
	}
}

func TestParseRequirements(t *testing.T) {
	content := []byte(`# comment
requests==2.31.0
flask>=2.0  # inline comment
uvicorn[standard]==0.23.2
pyyaml; python_version < "3.8"
-r other.txt
`)

	components, err := parseRequirements(content)
	if err != nil {
		t.Fatalf("parseRequirements: %v", err)
	}
	if len(components) != 4 {
		t.Fatalf("got %d components, want 4: %+v", len(components), components)
	}
	if c := findComponent(t, components, "requests"); c.Version != "2.31.0" {
		t.Fatalf("requests = %+v", c)
	}
	if c := findComponent(t, components, "uvicorn"); c.Version != "0.23.2" {
		t.Fatalf("uvicorn extras not stripped: %+v", c)
	}
	if c := findComponent(t, components, "pyyaml"); c.Version != "" {
		t.Fatalf("pyyaml = %+v", c)
	}
}

func TestParsePomXML(t *testing.T) {
	content := []byte(`<?xml version="1.0"?>
<project>
  <dependencies>
    <dependency>
      <groupId>org.springframework</groupId>
      <artifactId>spring-core</artifactId>
      <version>6.1.3</version>
    </dependency>
    <dependency>
      <groupId>junit</groupId>
      <artifactId>junit</artifactId>
      <version>4.13.2</version>
      <scope>test</scope>
    </dependency>
  </dependencies>
</project>`)

	components, err := parsePomXML(content)
	if err != nil {
		t.Fatalf("parsePomXML: %v", err)
	}
	if len(components) != 2 {
		t.Fatalf("got %d components, want 2", len(components))
	}
	if c := findComponent(t, components, "org.springframework:spring-core"); c.Version != "6.1.3" || c.Kind != "compile" {
		t.Fatalf("spring-core = %+v", c)
	}
	if c := findComponent(t, components, "junit:junit"); c.Kind != "test" {
		t.Fatalf("junit = %+v", c)
	}
}

func TestParseDockerfile(t *testing.T) {
	content := []byte(`FROM golang:1.22-alpine AS build
RUN go build ./...
FROM build AS test
FROM gcr.io/distroless/static:nonroot
COPY --from=build /app /app
`)

	components, err := parseDockerfile(content)
	if err != nil {
		t.Fatalf("parseDockerfile: %v", err)
	}
	if len(components) != 2 {
		t.Fatalf("got %d components, want 2 (stage refs excluded): %+v", len(components), components)
	}
	if c := findComponent(t, components, "golang"); c.Version != "1.22-alpine" || c.Kind != "baseImage" {
		t.Fatalf("golang = %+v", c)
	}
	if c := findComponent(t, components, "gcr.io/distroless/static"); c.Version != "nonroot" {
		t.Fatalf("distroless = %+v", c)
	}
}

func TestParseCpanfile(t *testing.T) {
	content := []byte(`requires 'Mojolicious', '9.35';
requires 'DBI';
recommends 'JSON::XS', '4.03';
# requires 'Commented::Out', '1.0';
`)

	components, err := parseCpanfile(content)
	if err != nil {
		t.Fatalf("parseCpanfile: %v", err)
	}
	if len(components) != 3 {
		t.Fatalf("got %d components, want 3: %+v", len(components), components)
	}
	if c := findComponent(t, components, "Mojolicious"); c.Version != "9.35" || c.Kind != "runtime" {
		t.Fatalf("Mojolicious = %+v", c)
	}
	if c := findComponent(t, components, "JSON::XS"); c.Kind != "recommends" {
		t.Fatalf("JSON::XS = %+v", c)
	}
}

func TestParseVersionFiles(t *testing.T) {
	node, err := parseNvmrc([]byte("v20.11.1\n"))
	if err != nil {
		t.Fatalf("parseNvmrc: %v", err)
	}
	if len(node) != 1 || node[0].Name != "node" || node[0].Version != "20.11.1" {
		t.Fatalf("nvmrc = %+v", node)
	}

	py, err := parsePythonVersion([]byte("3.12.1\n"))
	if err != nil {
		t.Fatalf("parsePythonVersion: %v", err)
	}
	if len(py) != 1 || py[0].Name != "python" || py[0].Version != "3.12.1" {
		t.Fatalf("python-version = %+v", py)
	}
}
