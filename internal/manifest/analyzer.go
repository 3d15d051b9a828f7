package manifest

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"depscan/internal/scan"
)

// parseFunc turns one manifest file's contents into components. A parse
// error skips that manifest; it never fails the repository.
type parseFunc func(content []byte) ([]scan.Component, error)

// parsers keys lowercase manifest base names to their format parser.
// Registering a format here is all it takes to have it discovered.
var parsers = map[string]parseFunc{
	"package.json":     parsePackageJSON,
	"go.mod":           parseGoMod,
	"requirements.txt": parseRequirements,
	"pom.xml":          parsePomXML,
	"dockerfile":       parseDockerfile,
	"cpanfile":         parseCpanfile,
	".nvmrc":           parseNvmrc,
	".python-version":  parsePythonVersion,
}

// skipDirs are path segments whose subtrees never hold first-party
// manifests.
var skipDirs = map[string]struct{}{
	"node_modules": {},
	"vendor":       {},
	".git":         {},
	"dist":         {},
	"target":       {},
}

// Analyzer discovers manifest files in a repository tree and normalizes each
// into a ServiceSummary. Implements scan.ManifestAnalyzer.
type Analyzer struct {
	// maxManifests bounds how many manifests are read per repository, since
	// provider-backed trees pay one API call per read.
	maxManifests int
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{maxManifests: 200}
}

func (a *Analyzer) Analyze(ctx context.Context, repo scan.RepoRef, tree scan.FileTree) ([]scan.ServiceSummary, error) {
	if tree == nil {
		return nil, fmt.Errorf("analyze %s: tree is nil", repo.Name)
	}

	var manifests []string
	for _, p := range tree.Paths() {
		if skippablePath(p) {
			continue
		}
		if _, ok := parsers[strings.ToLower(path.Base(p))]; ok {
			manifests = append(manifests, p)
		}
	}
	sort.Strings(manifests)
	if len(manifests) > a.maxManifests {
		manifests = manifests[:a.maxManifests]
	}

	// A repository with no manifests is a valid result with zero services.
	var services []scan.ServiceSummary
	for _, m := range manifests {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content, err := tree.Read(ctx, m)
		if err != nil {
			return nil, fmt.Errorf("read manifest %s: %w", m, err)
		}
		components, err := parsers[strings.ToLower(path.Base(m))](content)
		if err != nil {
			// Malformed manifest: skip it, keep the rest of the repo.
			continue
		}
		services = append(services, scan.ServiceSummary{
			Name:       serviceName(repo, m),
			Path:       path.Dir(m),
			Manifest:   m,
			Components: components,
		})
	}
	return services, nil
}

func skippablePath(p string) bool {
	for _, seg := range strings.Split(path.Dir(p), "/") {
		if _, skip := skipDirs[seg]; skip {
			return true
		}
	}
	return false
}

// serviceName labels the deployable unit a manifest belongs to: the manifest
// directory for nested services, the repository name at the root.
func serviceName(repo scan.RepoRef, manifestPath string) string {
	dir := path.Dir(manifestPath)
	if dir == "." || dir == "/" || dir == "" {
		return repo.Name
	}
	return path.Base(dir)
}
