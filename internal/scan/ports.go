package scan

import "context"

// RepositoryFetcher retrieves a repository's file tree from its provider.
// Implementations live in internal/fetcher, one per Provider.
type RepositoryFetcher interface {
	// Fetch returns the tree for the given branch. An empty branch means the
	// repository's default branch. Depth is advisory: incremental fetchers may
	// return a reduced tree, full fetchers return everything.
	Fetch(ctx context.Context, repo RepoRef, branch string, depth Depth) (FileTree, error)
}

// FetcherResolver selects the fetcher serving a provider. Resolution failure
// (unknown or unconfigured provider) fails that repository's fetch phase,
// never the run.
type FetcherResolver interface {
	Resolve(p Provider) (RepositoryFetcher, error)
}

// ManifestAnalyzer discovers manifest files in a tree and normalizes them
// into services with their declared components. Finding no manifests is not
// an error; it yields an empty slice.
type ManifestAnalyzer interface {
	Analyze(ctx context.Context, repo RepoRef, tree FileTree) ([]ServiceSummary, error)
}

// EnrichmentService annotates components with latest-version, end-of-life and
// vulnerability metadata. It is best-effort: a failed lookup leaves that
// component's enrichment fields unset, and the returned slice always has the
// same length and order as the input.
type EnrichmentService interface {
	Enrich(ctx context.Context, components []Component) []Component
}
