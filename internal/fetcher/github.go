package fetcher

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/sync/singleflight"

	gh "depscan/internal/github"
	"depscan/internal/scan"
)

// GitHub fetches repository trees through the GitHub git trees API. Blob
// contents are read lazily, one API call per file the analyzer actually
// opens, so a large tree with two manifests costs three requests.
//
// Identical concurrent fetches (same repo and branch, e.g. the same
// repository submitted twice across overlapping runs) are deduplicated with
// singleflight.
type GitHub struct {
	client *gh.Client
	budget *RequestBudget
	group  singleflight.Group
}

func NewGitHub(client *gh.Client, budget *RequestBudget) (*GitHub, error) {
	if client == nil {
		return nil, fmt.Errorf("github fetcher: client is nil")
	}
	if budget == nil {
		budget = NewRequestBudget()
	}
	return &GitHub{client: client, budget: budget}, nil
}

func (g *GitHub) Fetch(ctx context.Context, repo scan.RepoRef, branch string, depth scan.Depth) (scan.FileTree, error) {
	owner, name, err := splitOwnerRepo(repo)
	if err != nil {
		return nil, err
	}
	if branch == "" {
		branch = "HEAD"
	}

	key := fmt.Sprintf("github/%s/%s@%s?depth=%s", owner, name, branch, depth)
	v, err, _ := g.group.Do(key, func() (any, error) {
		return g.fetchTree(ctx, owner, name, branch, depth)
	})
	if err != nil {
		return nil, err
	}
	return v.(scan.FileTree), nil
}

func (g *GitHub) fetchTree(ctx context.Context, owner, name, branch string, depth scan.Depth) (scan.FileTree, error) {
	if err := g.budget.Acquire(ctx); err != nil {
		return nil, err
	}

	// Incremental scans settle for the top-level tree; full scans walk the
	// whole repository recursively.
	recursive := depth != scan.DepthIncremental
	tree, resp, err := g.client.Client.Git.GetTree(ctx, owner, name, branch, recursive)
	if resp != nil {
		g.budget.UpdateFromResponse(resp.Response)
	}
	if err != nil {
		return nil, fmt.Errorf("get tree %s/%s@%s: %w", owner, name, branch, err)
	}

	t := &githubTree{g: g, owner: owner, name: name, shas: make(map[string]string)}
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" {
			continue
		}
		t.paths = append(t.paths, entry.GetPath())
		t.shas[entry.GetPath()] = entry.GetSHA()
	}
	return t, nil
}

type githubTree struct {
	g     *GitHub
	owner string
	name  string
	paths []string
	shas  map[string]string
}

func (t *githubTree) Paths() []string {
	return t.paths
}

func (t *githubTree) Read(ctx context.Context, path string) ([]byte, error) {
	sha, ok := t.shas[path]
	if !ok {
		return nil, fmt.Errorf("no such file in tree: %s", path)
	}
	if err := t.g.budget.Acquire(ctx); err != nil {
		return nil, err
	}

	blob, resp, err := t.g.client.Client.Git.GetBlob(ctx, t.owner, t.name, sha)
	if resp != nil {
		t.g.budget.UpdateFromResponse(resp.Response)
	}
	if err != nil {
		return nil, fmt.Errorf("get blob %s/%s %s: %w", t.owner, t.name, path, err)
	}

	content := blob.GetContent()
	if blob.GetEncoding() == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(content, "\n", ""))
		if err != nil {
			return nil, fmt.Errorf("decode blob %s: %w", path, err)
		}
		return decoded, nil
	}
	return []byte(content), nil
}

// splitOwnerRepo derives owner and repository name from a RepoRef: an
// "owner/repo" Name wins, otherwise the RemoteURL path is used.
func splitOwnerRepo(repo scan.RepoRef) (owner, name string, err error) {
	if owner, name, ok := strings.Cut(repo.Name, "/"); ok && owner != "" && name != "" {
		return owner, name, nil
	}
	if repo.RemoteURL != "" {
		u, err := url.Parse(repo.RemoteURL)
		if err != nil {
			return "", "", fmt.Errorf("invalid remote url %q: %w", repo.RemoteURL, err)
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) >= 2 {
			return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
		}
	}
	return "", "", fmt.Errorf("cannot determine owner/repo for %q (need name as owner/repo or a remote url)", repo.Name)
}
